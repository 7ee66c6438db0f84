package botclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestControlRoundTrip checks that a control request reaches the server as
// JSON and the verdict comes back with the server's status code.
func TestControlRoundTrip(t *testing.T) {
	var got ControlRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/control" {
			t.Fatalf("path = %q, want /control", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(ControlResponse{Success: true, Message: "Paused playback"})
	}))
	defer ts.Close()

	resp, status, err := New(ts.URL).Control(context.Background(), ControlRequest{Action: "pause", GuildID: "g1"})
	if err != nil {
		t.Fatalf("Control() error = %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("Control() status = %d, want %d", status, http.StatusOK)
	}
	if resp.Message != "Paused playback" {
		t.Fatalf("Control() message = %q, want %q", resp.Message, "Paused playback")
	}
	if got.Action != "pause" || got.GuildID != "g1" {
		t.Fatalf("server saw %+v, want action pause for g1", got)
	}
}

// TestControlErrorPassesThrough checks that a rejection keeps its status
// and error message without becoming a transport error.
func TestControlErrorPassesThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ControlResponse{Error: "Volume must be between 0 and 100"})
	}))
	defer ts.Close()

	resp, status, err := New(ts.URL).Control(context.Background(), ControlRequest{Action: "volume", GuildID: "g1", Query: "150"})
	if err != nil {
		t.Fatalf("Control() error = %v", err)
	}
	if status != http.StatusBadRequest {
		t.Fatalf("Control() status = %d, want %d", status, http.StatusBadRequest)
	}
	if resp.Error != "Volume must be between 0 and 100" {
		t.Fatalf("Control() error body = %q, want volume range message", resp.Error)
	}
}

// TestUnreachableBotIsErrBotOffline checks that every call maps a transport
// failure to ErrBotOffline.
func TestUnreachableBotIsErrBotOffline(t *testing.T) {
	// Closed server: the address is valid but nothing listens on it.
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	c := New(ts.URL)

	if _, err := c.Players(context.Background()); !errors.Is(err, ErrBotOffline) {
		t.Fatalf("Players() error = %v, want ErrBotOffline", err)
	}
	if _, err := c.Status(context.Background()); !errors.Is(err, ErrBotOffline) {
		t.Fatalf("Status() error = %v, want ErrBotOffline", err)
	}
	if _, _, err := c.Control(context.Background(), ControlRequest{Action: "pause", GuildID: "g1"}); !errors.Is(err, ErrBotOffline) {
		t.Fatalf("Control() error = %v, want ErrBotOffline", err)
	}
}

// TestPlayersDecodesSnapshots checks the players wire shape decodes into
// snapshots with nested track and settings data.
func TestPlayersDecodesSnapshots(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/players" {
			t.Fatalf("path = %q, want /players", r.URL.Path)
		}
		w.Write([]byte(`[{"guildId":"g1","playing":true,"position":5000,"volume":80,
			"current":{"title":"Song","duration":180000},
			"queue":[{"title":"Next"}],
			"settings":{"shuffleEnabled":true,"repeatMode":"all","volume":80}}]`))
	}))
	defer ts.Close()

	players, err := New(ts.URL).Players(context.Background())
	if err != nil {
		t.Fatalf("Players() error = %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("Players() = %d entries, want 1", len(players))
	}
	p := players[0]
	if p.GuildID != "g1" || !p.Playing || p.Position != 5000 {
		t.Fatalf("snapshot = %+v, want g1 playing at 5000", p)
	}
	if p.Current == nil || p.Current.Title != "Song" {
		t.Fatalf("current = %+v, want Song", p.Current)
	}
	if len(p.Queue) != 1 || p.Queue[0].Title != "Next" {
		t.Fatalf("queue = %+v, want [Next]", p.Queue)
	}
	if !p.Settings.ShuffleEnabled || p.Settings.RepeatMode != "all" {
		t.Fatalf("settings = %+v, want shuffle on, repeat all", p.Settings)
	}
}
