// Package playersync reconciles the dashboard's locally-interpolated idea
// of playback position with the authoritative position that only arrives at
// poll granularity. Between polls the position advances at wall-clock rate;
// each poll resyncs it to server truth, unless a seek is in flight, in
// which case resyncs are suppressed until the server catches up to the
// target or a bounded timeout passes, so a dropped seek can never leave the
// client desynchronized forever.
package playersync

import (
	"sync"
	"time"
)

// Player is one session as reported by the bot's players endpoint.
type Player struct {
	GuildID  string
	Playing  bool
	Paused   bool
	Position int64
	Volume   int
	Title    string
	Duration int64
	Queue    []string
	Shuffle  bool
	Repeat   string
}

type State int

const (
	StateIdle State = iota
	StateInterpolating
	StateSeeking
)

// Config bounds the seek reconciliation window.
type Config struct {
	// SeekTolerance is how close (ms) the server position must come to the
	// seek target before the client trusts server positions again.
	SeekTolerance int64
	// SeekTimeout caps how long resyncs stay suppressed after a seek. Past
	// it the client assumes the backend dropped the seek.
	SeekTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{SeekTolerance: 2000, SeekTimeout: 5 * time.Second}
}

// Engine is the per-dashboard sync state machine: Idle → Interpolating →
// Seeking → Interpolating. Safe for concurrent use; the poll loop and UI
// gestures run on different goroutines.
type Engine struct {
	mu    sync.Mutex
	cfg   Config
	clock func() time.Time

	players  []Player
	selected string

	state      State
	position   int64 // base position at syncedAt
	syncedAt   time.Time
	playing    bool
	duration   int64
	seekTarget int64
	seekSince  time.Time
	scrubbing  bool
}

func NewEngine(cfg Config, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{cfg: cfg, clock: clock}
}

// ShouldPoll reports whether the poll loop should fetch right now. Polls
// are skipped while the operator is scrubbing the timeline so optimistic
// and authoritative positions do not fight visually.
func (e *Engine) ShouldPoll() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.scrubbing
}

// SetScrubbing marks the timeline drag gesture.
func (e *Engine) SetScrubbing(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrubbing = v
}

// Selected returns the currently selected guild, or "".
func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Select switches the engine to another session from the last snapshot.
func (e *Engine) Select(guildID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.players {
		if p.GuildID == guildID {
			e.selected = guildID
			e.adoptLocked(p)
			return
		}
	}
}

// State returns the machine state for the selected session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Players returns the last snapshot.
func (e *Engine) Players() []Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Player(nil), e.players...)
}

// ApplySnapshot ingests a poll response. The selected session falls back to
// the first available one when it disappeared from the snapshot; the
// engine never keeps pointing at a session ID the server no longer reports.
func (e *Engine) ApplySnapshot(players []Player) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.players = append([]Player(nil), players...)

	cur, ok := e.find(e.selected)
	if !ok {
		if len(players) == 0 {
			e.selected = ""
			e.state = StateIdle
			e.position = 0
			e.playing = false
			return
		}
		e.selected = players[0].GuildID
		e.adoptLocked(players[0])
		return
	}

	e.playing = cur.Playing
	e.duration = cur.Duration

	switch e.state {
	case StateSeeking:
		now := e.clock()
		diff := cur.Position - e.seekTarget
		if diff < 0 {
			diff = -diff
		}
		if diff <= e.cfg.SeekTolerance || now.Sub(e.seekSince) >= e.cfg.SeekTimeout {
			// Converged, or waited long enough: server truth wins again.
			e.state = StateInterpolating
			e.position = cur.Position
			e.syncedAt = now
		}
		// Otherwise keep showing the optimistic target.
	default:
		e.state = StateInterpolating
		e.position = cur.Position
		e.syncedAt = e.clock()
	}
}

// BeginSeek applies a seek gesture optimistically: the displayed position
// jumps to the target immediately and resyncs are suppressed until the
// server converges or the timeout passes.
func (e *Engine) BeginSeek(target int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if target < 0 {
		target = 0
	}
	if e.duration > 0 && target > e.duration {
		target = e.duration
	}
	e.state = StateSeeking
	e.seekTarget = target
	e.seekSince = e.clock()
	e.position = target
	e.syncedAt = e.seekSince
}

// Position returns the position to display right now: the optimistic seek
// target while seeking, otherwise the last synced position advanced at
// wall-clock rate while playing.
func (e *Engine) Position() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSeeking {
		return e.seekTarget
	}
	pos := e.position
	if e.state == StateInterpolating && e.playing {
		pos += e.clock().Sub(e.syncedAt).Milliseconds()
	}
	if e.duration > 0 && pos > e.duration {
		pos = e.duration
	}
	return pos
}

func (e *Engine) find(guildID string) (Player, bool) {
	for _, p := range e.players {
		if p.GuildID == guildID {
			return p, true
		}
	}
	return Player{}, false
}

func (e *Engine) adoptLocked(p Player) {
	e.state = StateInterpolating
	e.position = p.Position
	e.syncedAt = e.clock()
	e.playing = p.Playing
	e.duration = p.Duration
}
