// Package botclient is the dashboard's HTTP client for the bot process.
// The two run as separate processes and share canonical state only through
// the bot's control server, so every call here must tolerate the bot being
// unreachable.
package botclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrBotOffline means the bot process could not be reached at all, as
// opposed to reaching it and being told no.
var ErrBotOffline = errors.New("bot offline")

// Track mirrors the control server's track wire shape.
type Track struct {
	Title     string `json:"title"`
	Author    string `json:"author"`
	Duration  int64  `json:"duration"`
	URI       string `json:"uri,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Settings mirrors the per-guild settings wire shape.
type Settings struct {
	ShuffleEnabled bool   `json:"shuffleEnabled"`
	RepeatMode     string `json:"repeatMode"`
	Volume         int    `json:"volume"`
}

// PlayerSnapshot mirrors one entry of the players endpoint.
type PlayerSnapshot struct {
	GuildID      string   `json:"guildId"`
	VoiceChannel string   `json:"voiceChannel"`
	TextChannel  string   `json:"textChannel"`
	Connected    bool     `json:"connected"`
	Playing      bool     `json:"playing"`
	Paused       bool     `json:"paused"`
	Position     int64    `json:"position"`
	Volume       int      `json:"volume"`
	Current      *Track   `json:"current"`
	Queue        []Track  `json:"queue"`
	Settings     Settings `json:"settings"`
}

// Status mirrors the status endpoint.
type Status struct {
	Online  bool             `json:"online"`
	Guilds  int              `json:"guilds"`
	Users   int              `json:"users"`
	Players int              `json:"players"`
	Nodes   []map[string]any `json:"nodes"`
}

// ControlRequest is the control endpoint payload.
type ControlRequest struct {
	Action  string `json:"action"`
	GuildID string `json:"guildId"`
	Query   string `json:"query,omitempty"`
	Index   *int   `json:"index,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Mode    string `json:"mode,omitempty"`
}

// ControlResponse is what came back, along with the HTTP status it came
// back with. Exactly one of Message/Error is set.
type ControlResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Players fetches the current session snapshots. An unreachable bot reads
// as no sessions; the dashboard's read surface degrades instead of erroring.
func (c *Client) Players(ctx context.Context) ([]PlayerSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/players", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, ErrBotOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("players endpoint returned %d", resp.StatusCode)
	}
	var players []PlayerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&players); err != nil {
		return nil, fmt.Errorf("decode players: %w", err)
	}
	return players, nil
}

// Status fetches process-level bot status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return Status{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, ErrBotOffline
	}
	defer resp.Body.Close()

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

// Control submits a control action and returns the bot's verdict together
// with its HTTP status code. A transport failure is ErrBotOffline; the
// caller must surface it, never pretend success.
func (c *Client) Control(ctx context.Context, creq ControlRequest) (ControlResponse, int, error) {
	body, err := json.Marshal(creq)
	if err != nil {
		return ControlResponse{}, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/control", bytes.NewReader(body))
	if err != nil {
		return ControlResponse{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return ControlResponse{}, 0, ErrBotOffline
	}
	defer resp.Body.Close()

	var cresp ControlResponse
	if err := json.NewDecoder(resp.Body).Decode(&cresp); err != nil {
		return ControlResponse{}, resp.StatusCode, fmt.Errorf("decode control response: %w", err)
	}
	return cresp, resp.StatusCode, nil
}
