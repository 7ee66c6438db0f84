// Package storage persists per-guild configuration across restarts.
// Playback state and listening settings are deliberately process-lifetime;
// only the control panel channel binding survives a restart.
package storage

import (
	"encoding/json"
	"fmt"

	"github.com/keshon/datastore"
)

type Storage struct {
	ds *datastore.DataStore
}

// Record is everything we keep for one guild, keyed by guild ID.
type Record struct {
	BoundTextChannel string `json:"bound_text_channel"`
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) getOrCreateGuildRecord(guildID string) (*Record, error) {
	data, exists := s.ds.Get(guildID)
	if !exists {
		newRecord := &Record{}
		s.ds.Add(guildID, newRecord)
		return newRecord, nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("error marshalling data: %w", err)
	}

	var record Record
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("error unmarshalling to *Record: %w", err)
	}
	return &record, nil
}

// BoundTextChannel returns the text channel the guild pinned its control panel
// to, or "" when the guild never pinned one.
func (s *Storage) BoundTextChannel(guildID string) (string, error) {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return "", err
	}
	return record.BoundTextChannel, nil
}

func (s *Storage) SetBoundTextChannel(guildID, channelID string) error {
	record, err := s.getOrCreateGuildRecord(guildID)
	if err != nil {
		return err
	}
	record.BoundTextChannel = channelID
	s.ds.Add(guildID, record)
	return nil
}

func (s *Storage) ClearBoundTextChannel(guildID string) error {
	return s.SetBoundTextChannel(guildID, "")
}
