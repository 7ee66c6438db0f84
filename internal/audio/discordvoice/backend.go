// Package discordvoice implements the audio backend over a Discord voice
// connection. It owns the voice session lifecycle and the playback clock:
// each started track is scheduled against wall time and reported back as a
// track-end event when its duration elapses. Decoding and frame transport
// live behind the voice connection and are not this package's concern.
package discordvoice

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"melodash/internal/audio"
)

var ErrNotConnected = errors.New("no voice connection for guild")

// Conn is the slice of a voice connection the backend needs.
type Conn interface {
	Disconnect() error
}

// Joiner opens voice connections.
type Joiner interface {
	Join(guildID, channelID string) (Conn, error)
}

// SessionJoiner adapts a discordgo session to Joiner.
type SessionJoiner struct {
	Session *discordgo.Session
}

func (j SessionJoiner) Join(guildID, channelID string) (Conn, error) {
	return j.Session.ChannelVoiceJoin(guildID, channelID, false, true)
}

// Resolver turns play queries into track metadata.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]audio.Track, error)
}

type session struct {
	conn Conn

	track   audio.Track
	playing bool
	paused  bool
	// basePos is the position when the clock last restarted; startedAt is
	// when it did. Position is basePos plus elapsed wall time.
	basePos   int64
	startedAt time.Time

	volume int
	loop   audio.LoopMode

	timer *time.Timer
	// gen invalidates a pending timer when the track it was scheduled for
	// is no longer the one playing.
	gen uint64
}

type Backend struct {
	joiner   Joiner
	resolver Resolver

	now    func() time.Time
	events chan audio.Event

	mu       sync.Mutex
	sessions map[string]*session
}

func New(joiner Joiner, resolver Resolver) *Backend {
	return &Backend{
		joiner:   joiner,
		resolver: resolver,
		now:      time.Now,
		events:   make(chan audio.Event, 16),
		sessions: make(map[string]*session),
	}
}

func (b *Backend) Connect(guildID, voiceChannelID string) error {
	b.mu.Lock()
	if s, ok := b.sessions[guildID]; ok && s.conn != nil {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	conn, err := b.joiner.Join(guildID, voiceChannelID)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sessions[guildID]; ok {
		s.conn = conn
		return nil
	}
	b.sessions[guildID] = &session{conn: conn, volume: 100, loop: audio.LoopNone}
	return nil
}

func (b *Backend) Disconnect(guildID string) error {
	b.mu.Lock()
	s, ok := b.sessions[guildID]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.sessions, guildID)
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	conn := s.conn
	b.mu.Unlock()

	if conn != nil {
		return conn.Disconnect()
	}
	return nil
}

func (b *Backend) StartTrack(guildID string, track audio.Track) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}

	s.track = track
	s.playing = true
	s.paused = false
	s.basePos = 0
	s.startedAt = b.now()
	b.scheduleLocked(guildID, s)
	return nil
}

func (b *Backend) StopTrack(guildID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}
	b.cancelTimerLocked(s)
	s.playing = false
	s.basePos = 0
	return nil
}

func (b *Backend) SetPaused(guildID string, paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}
	if !s.playing || s.paused == paused {
		s.paused = paused
		return nil
	}

	if paused {
		s.basePos = b.positionLocked(s)
		s.paused = true
		b.cancelTimerLocked(s)
		return nil
	}

	s.paused = false
	s.startedAt = b.now()
	b.scheduleLocked(guildID, s)
	return nil
}

func (b *Backend) SetVolume(guildID string, volume int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}
	s.volume = volume
	return nil
}

func (b *Backend) SeekTo(guildID string, position int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}
	s.basePos = position
	s.startedAt = b.now()
	if s.playing && !s.paused {
		b.scheduleLocked(guildID, s)
	}
	return nil
}

func (b *Backend) SetLoop(guildID string, mode audio.LoopMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return ErrNotConnected
	}
	s.loop = mode
	return nil
}

func (b *Backend) Position(guildID string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[guildID]
	if !ok {
		return 0
	}
	return b.positionLocked(s)
}

func (b *Backend) Resolve(ctx context.Context, query string) ([]audio.Track, error) {
	return b.resolver.Resolve(ctx, query)
}

func (b *Backend) Events() <-chan audio.Event {
	return b.events
}

func (b *Backend) positionLocked(s *session) int64 {
	if !s.playing {
		return 0
	}
	if s.paused {
		return s.basePos
	}
	pos := s.basePos + b.now().Sub(s.startedAt).Milliseconds()
	if s.track.Duration > 0 && pos > s.track.Duration {
		pos = s.track.Duration
	}
	return pos
}

// scheduleLocked arms the track-end timer for whatever remains of the
// current track. Tracks without a known duration (live streams) never end
// on their own.
func (b *Backend) scheduleLocked(guildID string, s *session) {
	b.cancelTimerLocked(s)
	if s.track.Duration <= 0 {
		return
	}

	remaining := time.Duration(s.track.Duration-b.positionLocked(s)) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}

	gen := s.gen
	s.timer = time.AfterFunc(remaining, func() {
		b.fireTrackEnd(guildID, gen)
	})
}

func (b *Backend) cancelTimerLocked(s *session) {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (b *Backend) fireTrackEnd(guildID string, gen uint64) {
	b.mu.Lock()
	s, ok := b.sessions[guildID]
	if !ok || s.gen != gen {
		b.mu.Unlock()
		return
	}
	s.playing = false
	s.timer = nil
	b.mu.Unlock()

	select {
	case b.events <- audio.Event{GuildID: guildID, Type: audio.EventTrackEnd}:
	default:
		log.Printf("[WARN] [Voice] %s: dropping track-end event, consumer is behind", guildID)
	}
}
