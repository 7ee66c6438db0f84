// Package audio holds the canonical per-guild player state and the registry
// that owns it. The player mirrors what the streaming backend is doing and
// is the single source of truth for queue order, history and flags; both
// control surfaces read it through snapshots and mutate it only through the
// control gateway.
package audio

import (
	"errors"
	"log"
	"math/rand"
	"slices"
	"sync"
)

var (
	ErrNoTrackPlaying  = errors.New("no track is currently playing")
	ErrNoTracksInQueue = errors.New("no tracks in queue")
	ErrNoHistory       = errors.New("no previous track available")
	ErrIndexOutOfRange = errors.New("queue index out of range")
)

// Player is one guild's playback context.
type Player struct {
	mu sync.Mutex

	guildID        string
	voiceChannelID string
	textChannelID  string

	backend Backend

	current *Track
	queue   []Track
	history []Track
	paused  bool
	volume  int
	loop    LoopMode

	nextSeq int
}

// Snapshot is a read-only copy of the player state plus the backend's
// reported position. Field names match the dashboard wire format.
type Snapshot struct {
	GuildID      string  `json:"guildId"`
	VoiceChannel string  `json:"voiceChannel"`
	TextChannel  string  `json:"textChannel"`
	Connected    bool    `json:"connected"`
	Playing      bool    `json:"playing"`
	Paused       bool    `json:"paused"`
	Position     int64   `json:"position"`
	Volume       int     `json:"volume"`
	Current      *Track  `json:"-"`
	Queue        []Track `json:"-"`
}

func newPlayer(backend Backend, guildID, voiceChannelID, textChannelID string) *Player {
	return &Player{
		backend:        backend,
		guildID:        guildID,
		voiceChannelID: voiceChannelID,
		textChannelID:  textChannelID,
		volume:         100,
		loop:           LoopNone,
	}
}

func (p *Player) GuildID() string { return p.guildID }

func (p *Player) TextChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textChannelID
}

// Enqueue appends tracks to the queue, stamping each with its enqueue order.
func (p *Player) Enqueue(tracks ...Track) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range tracks {
		t.Seq = p.nextSeq
		p.nextSeq++
		p.queue = append(p.queue, t)
	}
	log.Printf("[Player] %s: added %d track(s) | queueLen=%d", p.guildID, len(tracks), len(p.queue))
}

// Start connects to the voice channel and begins playing the queue head.
// No-op with an error if the queue is empty.
func (p *Player) Start() error {
	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return ErrNoTracksInQueue
	}
	track := p.queue[0]
	p.queue = p.queue[1:]
	voiceID := p.voiceChannelID
	p.mu.Unlock()

	if err := p.backend.Connect(p.guildID, voiceID); err != nil {
		return err
	}
	if err := p.backend.StartTrack(p.guildID, track); err != nil {
		return err
	}

	p.mu.Lock()
	p.current = &track
	p.paused = false
	p.mu.Unlock()

	log.Printf("[Player] %s: now playing %q", p.guildID, track.Title)
	return nil
}

// Skip ends the current track and starts the next one if any. Returns the
// track that was skipped.
func (p *Player) Skip() (Track, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return Track{}, ErrNoTrackPlaying
	}
	skipped := *p.current
	p.history = append(p.history, skipped)
	p.current = nil

	var next *Track
	if len(p.queue) > 0 {
		t := p.queue[0]
		p.queue = p.queue[1:]
		next = &t
	}
	p.mu.Unlock()

	if next == nil {
		if err := p.backend.StopTrack(p.guildID); err != nil {
			log.Printf("[WARN] [Player] %s: stop after skip failed: %v", p.guildID, err)
		}
		return skipped, nil
	}

	if err := p.backend.StartTrack(p.guildID, *next); err != nil {
		return skipped, err
	}
	p.mu.Lock()
	p.current = next
	p.paused = false
	p.mu.Unlock()
	return skipped, nil
}

// Previous re-queues the most recent history entry at the front and skips
// the current track. This is insert-and-advance, not a rewind: the backend
// has no native previous-track primitive.
func (p *Player) Previous() error {
	p.mu.Lock()
	if len(p.history) == 0 {
		p.mu.Unlock()
		return ErrNoHistory
	}
	prev := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.queue = append([]Track{prev}, p.queue...)
	p.mu.Unlock()

	if _, err := p.Skip(); err != nil {
		return err
	}
	return nil
}

// Pause suspends playback. Fails if nothing is playing or already paused.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.current == nil || p.paused {
		p.mu.Unlock()
		return ErrNoTrackPlaying
	}
	p.paused = true
	p.mu.Unlock()
	return p.backend.SetPaused(p.guildID, true)
}

// Resume continues a paused track. Fails if there is nothing paused.
func (p *Player) Resume() error {
	p.mu.Lock()
	if p.current == nil || !p.paused {
		p.mu.Unlock()
		return ErrNoTrackPlaying
	}
	p.paused = false
	p.mu.Unlock()
	return p.backend.SetPaused(p.guildID, false)
}

// Destroy stops playback, clears the queue and leaves the voice channel.
func (p *Player) Destroy() {
	p.mu.Lock()
	p.current = nil
	p.queue = nil
	p.history = nil
	p.mu.Unlock()

	if err := p.backend.StopTrack(p.guildID); err != nil {
		log.Printf("[WARN] [Player] %s: stop failed: %v", p.guildID, err)
	}
	if err := p.backend.Disconnect(p.guildID); err != nil {
		log.Printf("[WARN] [Player] %s: disconnect failed: %v", p.guildID, err)
	}
	log.Printf("[Player] %s: destroyed", p.guildID)
}

// SetVolume forwards the new level to the backend and records it.
func (p *Player) SetVolume(volume int) error {
	if err := p.backend.SetVolume(p.guildID, volume); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

// SeekTo moves playback to a position within the current track.
func (p *Player) SeekTo(position int64) error {
	return p.backend.SeekTo(p.guildID, position)
}

// SetLoop forwards the loop mode to the backend and records it.
func (p *Player) SetLoop(mode LoopMode) error {
	if err := p.backend.SetLoop(p.guildID, mode); err != nil {
		return err
	}
	p.mu.Lock()
	p.loop = mode
	p.mu.Unlock()
	return nil
}

// MoveToFront splices the track at index i out of the queue and reinserts
// it at the head. Returns the moved track.
func (p *Player) MoveToFront(i int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.queue) {
		return Track{}, ErrIndexOutOfRange
	}
	t := p.queue[i]
	p.queue = append(p.queue[:i], p.queue[i+1:]...)
	p.queue = append([]Track{t}, p.queue...)
	return t, nil
}

// Remove splices the track at index i out of the queue and returns it.
func (p *Player) Remove(i int) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if i < 0 || i >= len(p.queue) {
		return Track{}, ErrIndexOutOfRange
	}
	t := p.queue[i]
	p.queue = append(p.queue[:i], p.queue[i+1:]...)
	return t, nil
}

// Shuffle randomizes the queue in place with a Fisher–Yates pass, which
// yields a uniform permutation.
func (p *Player) Shuffle(rng *rand.Rand) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.queue) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		p.queue[i], p.queue[j] = p.queue[j], p.queue[i]
	}
}

// RestoreOrder sorts the queue back to enqueue order using the sequence
// numbers stamped by Enqueue.
func (p *Player) RestoreOrder() {
	p.mu.Lock()
	defer p.mu.Unlock()

	slices.SortStableFunc(p.queue, func(a, b Track) int { return a.Seq - b.Seq })
}

// AdvanceOnTrackEnd applies the loop mode after the backend reports a track
// end and starts whatever should play next. Returns false when nothing is
// left to play, which is the caller's cue to destroy the player.
func (p *Player) AdvanceOnTrackEnd() (bool, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return len(p.queue) > 0, nil
	}
	ended := *p.current
	p.current = nil

	switch p.loop {
	case LoopTrack:
		p.queue = append([]Track{ended}, p.queue...)
	case LoopQueue:
		p.queue = append(p.queue, ended)
	default:
		p.history = append(p.history, ended)
	}

	if len(p.queue) == 0 {
		p.mu.Unlock()
		return false, nil
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.mu.Unlock()

	if err := p.backend.StartTrack(p.guildID, next); err != nil {
		return false, err
	}
	p.mu.Lock()
	p.current = &next
	p.paused = false
	p.mu.Unlock()
	return true, nil
}

// Current returns a copy of the current track, if any.
func (p *Player) Current() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Track{}, false
	}
	return *p.current, true
}

// Queue returns a copy of the upcoming tracks.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.queue)
}

// History returns a copy of the played tracks.
func (p *Player) History() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Playing reports whether a track is loaded and not paused.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && !p.paused
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) Loop() LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// Snapshot captures the player state for the HTTP surface and the control
// panel. Position comes from the backend, which is authoritative for it.
func (p *Player) Snapshot() Snapshot {
	pos := p.backend.Position(p.guildID)

	p.mu.Lock()
	defer p.mu.Unlock()

	var current *Track
	if p.current != nil {
		c := *p.current
		current = &c
	}
	return Snapshot{
		GuildID:      p.guildID,
		VoiceChannel: p.voiceChannelID,
		TextChannel:  p.textChannelID,
		Connected:    p.voiceChannelID != "",
		Playing:      p.current != nil && !p.paused,
		Paused:       p.paused,
		Position:     pos,
		Volume:       p.volume,
		Current:      current,
		Queue:        slices.Clone(p.queue),
	}
}
