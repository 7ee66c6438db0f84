package discordvoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"melodash/internal/audio"
)

type fakeConn struct {
	mu           sync.Mutex
	disconnected bool
}

func (c *fakeConn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected = true
	return nil
}

type fakeJoiner struct {
	mu    sync.Mutex
	joins []string
	conns []*fakeConn
}

func (j *fakeJoiner) Join(guildID, channelID string) (Conn, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.joins = append(j.joins, guildID+"/"+channelID)
	conn := &fakeConn{}
	j.conns = append(j.conns, conn)
	return conn, nil
}

type fakeResolver struct {
	tracks []audio.Track
}

func (r *fakeResolver) Resolve(ctx context.Context, query string) ([]audio.Track, error) {
	return r.tracks, nil
}

func newTestBackend(t *testing.T) (*Backend, *fakeJoiner) {
	t.Helper()
	joiner := &fakeJoiner{}
	return New(joiner, &fakeResolver{}), joiner
}

// TestConnectJoinsOnce checks that a second Connect for the same guild
// reuses the existing voice connection.
func TestConnectJoinsOnce(t *testing.T) {
	b, joiner := newTestBackend(t)

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() again error = %v", err)
	}
	if len(joiner.joins) != 1 {
		t.Fatalf("joins = %d, want 1", len(joiner.joins))
	}
}

// TestStartTrackRequiresConnection checks that playback on a guild without
// a voice connection fails instead of playing into the void.
func TestStartTrackRequiresConnection(t *testing.T) {
	b, _ := newTestBackend(t)

	if err := b.StartTrack("g1", audio.Track{Title: "A", Duration: 1000}); err != ErrNotConnected {
		t.Fatalf("StartTrack() error = %v, want ErrNotConnected", err)
	}
}

// TestPositionAdvancesWithClock checks that position follows the injected
// clock while playing and freezes while paused.
func TestPositionAdvancesWithClock(t *testing.T) {
	b, _ := newTestBackend(t)
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.StartTrack("g1", audio.Track{Title: "A", Duration: 60000}); err != nil {
		t.Fatalf("StartTrack() error = %v", err)
	}

	now = now.Add(1500 * time.Millisecond)
	if got := b.Position("g1"); got != 1500 {
		t.Fatalf("Position() = %d, want 1500", got)
	}

	if err := b.SetPaused("g1", true); err != nil {
		t.Fatalf("SetPaused(true) error = %v", err)
	}
	now = now.Add(5 * time.Second)
	if got := b.Position("g1"); got != 1500 {
		t.Fatalf("Position() while paused = %d, want 1500", got)
	}

	if err := b.SetPaused("g1", false); err != nil {
		t.Fatalf("SetPaused(false) error = %v", err)
	}
	now = now.Add(500 * time.Millisecond)
	if got := b.Position("g1"); got != 2000 {
		t.Fatalf("Position() after resume = %d, want 2000", got)
	}
}

// TestSeekMovesClock checks that a seek rebases the position.
func TestSeekMovesClock(t *testing.T) {
	b, _ := newTestBackend(t)
	now := time.Unix(100, 0)
	b.now = func() time.Time { return now }

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.StartTrack("g1", audio.Track{Title: "A", Duration: 60000}); err != nil {
		t.Fatalf("StartTrack() error = %v", err)
	}
	if err := b.SeekTo("g1", 30000); err != nil {
		t.Fatalf("SeekTo() error = %v", err)
	}

	now = now.Add(time.Second)
	if got := b.Position("g1"); got != 31000 {
		t.Fatalf("Position() after seek = %d, want 31000", got)
	}
}

// TestTrackEndFiresAfterDuration checks that a short track produces exactly
// one track-end event.
func TestTrackEndFiresAfterDuration(t *testing.T) {
	b, _ := newTestBackend(t)

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.StartTrack("g1", audio.Track{Title: "A", Duration: 20}); err != nil {
		t.Fatalf("StartTrack() error = %v", err)
	}

	select {
	case evt := <-b.Events():
		if evt.GuildID != "g1" || evt.Type != audio.EventTrackEnd {
			t.Fatalf("event = %+v, want track end for g1", evt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no track-end event within 2s")
	}

	select {
	case evt := <-b.Events():
		t.Fatalf("unexpected second event %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestStopCancelsTrackEnd checks that stopping a track suppresses its
// pending track-end event.
func TestStopCancelsTrackEnd(t *testing.T) {
	b, _ := newTestBackend(t)

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.StartTrack("g1", audio.Track{Title: "A", Duration: 50}); err != nil {
		t.Fatalf("StartTrack() error = %v", err)
	}
	if err := b.StopTrack("g1"); err != nil {
		t.Fatalf("StopTrack() error = %v", err)
	}

	select {
	case evt := <-b.Events():
		t.Fatalf("unexpected event after stop: %+v", evt)
	case <-time.After(200 * time.Millisecond):
	}
}

// TestDisconnectClosesConnection checks that Disconnect tears down the
// voice connection and clears the session.
func TestDisconnectClosesConnection(t *testing.T) {
	b, joiner := newTestBackend(t)

	if err := b.Connect("g1", "vc1"); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.Disconnect("g1"); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if !joiner.conns[0].disconnected {
		t.Fatal("voice connection not disconnected")
	}
	if got := b.Position("g1"); got != 0 {
		t.Fatalf("Position() after disconnect = %d, want 0", got)
	}
}
