// Package settings keeps per-guild playback preferences that the audio
// backend does not track itself: shuffle, repeat mode and the last volume.
// Entries live for the lifetime of the process.
package settings

import "sync"

type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatOne RepeatMode = "one"
	RepeatAll RepeatMode = "all"
)

// Valid reports whether m is one of the three repeat modes.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatOne, RepeatAll:
		return true
	}
	return false
}

const DefaultVolume = 100

// Settings is the per-guild preference record.
type Settings struct {
	ShuffleEnabled bool       `json:"shuffleEnabled"`
	RepeatMode     RepeatMode `json:"repeatMode"`
	Volume         int        `json:"volume"`
}

// Patch carries a partial update; nil fields keep their stored value.
type Patch struct {
	ShuffleEnabled *bool
	RepeatMode     *RepeatMode
	Volume         *int
}

// Store is a guild-keyed settings map. Operations are total: Get returns
// defaults for unknown guilds and Set creates the entry if needed. Callers
// do semantic validation; the store only clamps values into range.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Settings
}

func NewStore() *Store {
	return &Store{entries: make(map[string]Settings)}
}

// Get returns the stored settings for a guild, or the defaults.
func (s *Store) Get(guildID string) Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.entries[guildID]; ok {
		return e
	}
	return Settings{ShuffleEnabled: false, RepeatMode: RepeatOff, Volume: DefaultVolume}
}

// Set merges a patch into the guild's settings and returns the result.
// Unspecified fields are retained. Volume is clamped to [0,100] and an
// invalid repeat mode falls back to "off".
func (s *Store) Set(guildID string, p Patch) Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[guildID]
	if !ok {
		e = Settings{ShuffleEnabled: false, RepeatMode: RepeatOff, Volume: DefaultVolume}
	}
	if p.ShuffleEnabled != nil {
		e.ShuffleEnabled = *p.ShuffleEnabled
	}
	if p.RepeatMode != nil {
		e.RepeatMode = *p.RepeatMode
		if !e.RepeatMode.Valid() {
			e.RepeatMode = RepeatOff
		}
	}
	if p.Volume != nil {
		e.Volume = clampVolume(*p.Volume)
	}
	s.entries[guildID] = e
	return e
}

// Delete drops a guild's entry. Only called when the clear-on-stop policy
// is enabled; by default settings survive the player being destroyed.
func (s *Store) Delete(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, guildID)
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Helpers for building patches inline.

func Bool(v bool) *bool             { return &v }
func Int(v int) *int                { return &v }
func Mode(v RepeatMode) *RepeatMode { return &v }
