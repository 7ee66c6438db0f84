package audio

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
)

// fakeBackend records commands and reports a scripted position.
type fakeBackend struct {
	mu       sync.Mutex
	started  []string
	stopped  int
	paused   *bool
	volume   int
	position int64
	loop     LoopMode
	events   chan Event
	startErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{events: make(chan Event, 8)}
}

func (f *fakeBackend) Connect(guildID, voiceChannelID string) error { return nil }
func (f *fakeBackend) Disconnect(guildID string) error              { return nil }

func (f *fakeBackend) StartTrack(guildID string, track Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, track.Title)
	return nil
}

func (f *fakeBackend) StopTrack(guildID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeBackend) SetPaused(guildID string, paused bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = &paused
	return nil
}

func (f *fakeBackend) SetVolume(guildID string, volume int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = volume
	return nil
}

func (f *fakeBackend) SeekTo(guildID string, position int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = position
	return nil
}

func (f *fakeBackend) SetLoop(guildID string, mode LoopMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loop = mode
	return nil
}

func (f *fakeBackend) Position(guildID string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeBackend) Resolve(ctx context.Context, query string) ([]Track, error) {
	return []Track{{Title: query}}, nil
}

func (f *fakeBackend) Events() <-chan Event { return f.events }

func (f *fakeBackend) startedTitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func tracks(titles ...string) []Track {
	ts := make([]Track, len(titles))
	for i, title := range titles {
		ts[i] = Track{Title: title}
	}
	return ts
}

func titles(ts []Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title
	}
	return out
}

// TestStartPlaysQueueHead ensures Start pops the queue and tells the
// backend to play the popped track.
func TestStartPlaysQueueHead(t *testing.T) {
	b := newFakeBackend()
	p := newPlayer(b, "g1", "voice", "text")
	p.Enqueue(tracks("A", "B")...)

	if err := p.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if cur, ok := p.Current(); !ok || cur.Title != "A" {
		t.Fatalf("Current = %v %v, want A", cur, ok)
	}
	if got := titles(p.Queue()); len(got) != 1 || got[0] != "B" {
		t.Fatalf("Queue = %v, want [B]", got)
	}
	if got := b.startedTitles(); len(got) != 1 || got[0] != "A" {
		t.Fatalf("backend started %v, want [A]", got)
	}
}

// TestStartFailsOnEmptyQueue ensures Start reports an empty queue.
func TestStartFailsOnEmptyQueue(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	if err := p.Start(); !errors.Is(err, ErrNoTracksInQueue) {
		t.Fatalf("Start error = %v, want %v", err, ErrNoTracksInQueue)
	}
}

// TestSkipAdvancesAndRecordsHistory ensures Skip moves the current track
// into history and starts the next queued track.
func TestSkipAdvancesAndRecordsHistory(t *testing.T) {
	b := newFakeBackend()
	p := newPlayer(b, "g1", "voice", "text")
	p.Enqueue(tracks("A", "B")...)
	if err := p.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	skipped, err := p.Skip()
	if err != nil {
		t.Fatalf("Skip returned error: %v", err)
	}
	if skipped.Title != "A" {
		t.Fatalf("skipped %q, want A", skipped.Title)
	}
	if cur, _ := p.Current(); cur.Title != "B" {
		t.Fatalf("Current = %q, want B", cur.Title)
	}
	if got := titles(p.History()); len(got) != 1 || got[0] != "A" {
		t.Fatalf("History = %v, want [A]", got)
	}
}

// TestSkipWithoutCurrentFails ensures Skip rejects an idle player.
func TestSkipWithoutCurrentFails(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	if _, err := p.Skip(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("Skip error = %v, want %v", err, ErrNoTrackPlaying)
	}
}

// TestPreviousRequeuesLastHistoryEntry ensures Previous is
// insert-and-advance: the last played track is unshifted and played.
func TestPreviousRequeuesLastHistoryEntry(t *testing.T) {
	b := newFakeBackend()
	p := newPlayer(b, "g1", "voice", "text")
	p.Enqueue(tracks("A", "B")...)
	if err := p.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if _, err := p.Skip(); err != nil { // now playing B, history [A]
		t.Fatalf("Skip returned error: %v", err)
	}

	if err := p.Previous(); err != nil {
		t.Fatalf("Previous returned error: %v", err)
	}
	if cur, _ := p.Current(); cur.Title != "A" {
		t.Fatalf("Current = %q, want A", cur.Title)
	}
}

// TestPreviousWithoutHistoryFails ensures Previous rejects an empty history.
func TestPreviousWithoutHistoryFails(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	if err := p.Previous(); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Previous error = %v, want %v", err, ErrNoHistory)
	}
}

// TestPauseResumeStateConflicts ensures pause/resume only work from the
// right state.
func TestPauseResumeStateConflicts(t *testing.T) {
	b := newFakeBackend()
	p := newPlayer(b, "g1", "voice", "text")

	if err := p.Pause(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("Pause on idle player = %v, want %v", err, ErrNoTrackPlaying)
	}

	p.Enqueue(tracks("A")...)
	if err := p.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := p.Resume(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("Resume while playing = %v, want %v", err, ErrNoTrackPlaying)
	}
	if err := p.Pause(); err != nil {
		t.Fatalf("Pause returned error: %v", err)
	}
	if err := p.Pause(); !errors.Is(err, ErrNoTrackPlaying) {
		t.Fatalf("double Pause = %v, want %v", err, ErrNoTrackPlaying)
	}
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume returned error: %v", err)
	}
	if !p.Playing() {
		t.Fatal("Playing = false after resume")
	}
}

// TestMoveToFrontAndRemoveBounds ensures splice operations validate the
// index and otherwise behave as O(1) splices.
func TestMoveToFrontAndRemoveBounds(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	p.Enqueue(tracks("A", "B", "C")...)

	if _, err := p.MoveToFront(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("MoveToFront(3) = %v, want %v", err, ErrIndexOutOfRange)
	}
	if _, err := p.Remove(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Remove(-1) = %v, want %v", err, ErrIndexOutOfRange)
	}

	moved, err := p.MoveToFront(2)
	if err != nil {
		t.Fatalf("MoveToFront returned error: %v", err)
	}
	if moved.Title != "C" {
		t.Fatalf("moved %q, want C", moved.Title)
	}
	if got := titles(p.Queue()); fmt.Sprint(got) != "[C A B]" {
		t.Fatalf("Queue = %v, want [C A B]", got)
	}

	removed, err := p.Remove(1)
	if err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if removed.Title != "A" {
		t.Fatalf("removed %q, want A", removed.Title)
	}
}

// TestShuffleIsAPermutation ensures shuffling keeps exactly the same
// multiset of tracks.
func TestShuffleIsAPermutation(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	p.Enqueue(tracks("A", "B", "C", "D", "E")...)

	p.Shuffle(rand.New(rand.NewSource(7)))

	got := titles(p.Queue())
	sort.Strings(got)
	want := []string{"A", "B", "C", "D", "E"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("shuffled multiset = %v, want %v", got, want)
	}
}

// TestShuffleIsNearUniform runs many trials and checks each track lands in
// the first slot roughly equally often. A biased shuffle fails this.
func TestShuffleIsNearUniform(t *testing.T) {
	const trials = 6000
	rng := rand.New(rand.NewSource(1))
	counts := map[string]int{}

	for range trials {
		p := newPlayer(newFakeBackend(), "g1", "voice", "text")
		p.Enqueue(tracks("A", "B", "C", "D")...)
		p.Shuffle(rng)
		counts[p.Queue()[0].Title]++
	}

	expected := trials / 4
	for title, n := range counts {
		if n < expected*8/10 || n > expected*12/10 {
			t.Fatalf("track %s first in %d of %d trials, expected about %d", title, n, trials, expected)
		}
	}
}

// TestRestoreOrderUsesEnqueueSequence ensures unshuffle can bring back the
// original order when the policy asks for it.
func TestRestoreOrderUsesEnqueueSequence(t *testing.T) {
	p := newPlayer(newFakeBackend(), "g1", "voice", "text")
	p.Enqueue(tracks("A", "B", "C", "D")...)
	p.Shuffle(rand.New(rand.NewSource(3)))

	p.RestoreOrder()

	if got := titles(p.Queue()); fmt.Sprint(got) != "[A B C D]" {
		t.Fatalf("restored Queue = %v, want [A B C D]", got)
	}
}

// TestAdvanceOnTrackEndLoopModes checks what plays after a track end under
// each loop mode.
func TestAdvanceOnTrackEndLoopModes(t *testing.T) {
	tcs := []struct {
		mode     LoopMode
		wantNext string
	}{
		{LoopNone, "B"},
		{LoopTrack, "A"},
		{LoopQueue, "B"},
	}
	for _, tc := range tcs {
		t.Run(string(tc.mode), func(t *testing.T) {
			b := newFakeBackend()
			p := newPlayer(b, "g1", "voice", "text")
			p.Enqueue(tracks("A", "B")...)
			if err := p.Start(); err != nil {
				t.Fatalf("Start returned error: %v", err)
			}
			if err := p.SetLoop(tc.mode); err != nil {
				t.Fatalf("SetLoop returned error: %v", err)
			}

			active, err := p.AdvanceOnTrackEnd()
			if err != nil {
				t.Fatalf("AdvanceOnTrackEnd returned error: %v", err)
			}
			if !active {
				t.Fatal("AdvanceOnTrackEnd = inactive, want active")
			}
			if cur, _ := p.Current(); cur.Title != tc.wantNext {
				t.Fatalf("Current = %q, want %q", cur.Title, tc.wantNext)
			}
		})
	}
}

// TestAdvanceOnTrackEndReportsExhaustion ensures the caller learns when the
// queue empties with loop off so the player can be destroyed.
func TestAdvanceOnTrackEndReportsExhaustion(t *testing.T) {
	b := newFakeBackend()
	p := newPlayer(b, "g1", "voice", "text")
	p.Enqueue(tracks("A")...)
	if err := p.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	active, err := p.AdvanceOnTrackEnd()
	if err != nil {
		t.Fatalf("AdvanceOnTrackEnd returned error: %v", err)
	}
	if active {
		t.Fatal("AdvanceOnTrackEnd = active, want inactive on empty queue")
	}
}

// TestRegistryGetOrCreateReusesPlayer ensures one player per guild.
func TestRegistryGetOrCreateReusesPlayer(t *testing.T) {
	r := NewRegistry(newFakeBackend())

	p1 := r.GetOrCreate("g1", "voice", "text")
	p2 := r.GetOrCreate("g1", "other", "other")
	if p1 != p2 {
		t.Fatal("GetOrCreate returned a second player for the same guild")
	}
	if _, ok := r.Get("g2"); ok {
		t.Fatal("Get returned a player for an unknown guild")
	}

	r.Remove("g1")
	if _, ok := r.Get("g1"); ok {
		t.Fatal("player still present after Remove")
	}
}

// TestRegistrySnapshotsAreStable ensures snapshots come back in guild order.
func TestRegistrySnapshotsAreStable(t *testing.T) {
	r := NewRegistry(newFakeBackend())
	r.GetOrCreate("g2", "v", "t")
	r.GetOrCreate("g1", "v", "t")

	snaps := r.Snapshots()
	if len(snaps) != 2 || snaps[0].GuildID != "g1" || snaps[1].GuildID != "g2" {
		t.Fatalf("Snapshots order = %v", snaps)
	}
}
