// Package gateway is the single mutation entry point for playback control.
// Both control surfaces, Discord commands/buttons and the dashboard HTTP
// API, submit actions here; nothing else touches a player or its settings.
// Actions for the same guild run to completion one at a time, including the
// control panel refresh, so simultaneous presses cannot race on state.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"melodash/internal/audio"
	"melodash/internal/controlpanel"
	"melodash/internal/settings"
)

const noPlayerMessage = "No active player found for this server. Please start playback from Discord first."

// Policy holds behavior choices that observed deployments disagree on.
type Policy struct {
	// RestoreOrderOnUnshuffle sorts the queue back to enqueue order when
	// shuffle is disabled. Off by default: the shuffled order simply stays.
	RestoreOrderOnUnshuffle bool
	// ClearSettingsOnStop drops the guild's settings entry when the player
	// is destroyed. Off by default: settings survive a reappearing session.
	ClearSettingsOnStop bool
}

// Result is the success half of an action outcome. The failure half is
// always a *ControlError.
type Result struct {
	Message string
}

type Gateway struct {
	registry *audio.Registry
	settings *settings.Store
	panel    *controlpanel.Manager
	backend  audio.Backend
	policy   Policy

	locks *keyedMutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

func New(registry *audio.Registry, store *settings.Store, panel *controlpanel.Manager, backend audio.Backend, policy Policy, rng *rand.Rand) *Gateway {
	return &Gateway{
		registry: registry,
		settings: store,
		panel:    panel,
		backend:  backend,
		policy:   policy,
		locks:    newKeyedMutex(),
		rng:      rng,
	}
}

// Apply runs one action against a guild's player. On success the control
// panel has been refreshed (or cleared, when the player was destroyed)
// before Apply returns, so the chat surface reflects the new state without
// waiting for a poll. On failure nothing was mutated and no panel render
// happened. The returned error, if any, is always a *ControlError.
func (g *Gateway) Apply(ctx context.Context, guildID string, action Action) (Result, error) {
	g.locks.Lock(guildID)
	defer g.locks.Unlock(guildID)

	res, cerr := g.apply(ctx, guildID, action)
	if cerr != nil {
		if cerr.Kind == KindInternal {
			log.Printf("[ERR] [Gateway] %s: %T failed: %v", guildID, action, cerr.Err)
		}
		return Result{}, cerr
	}

	g.refresh(guildID)
	return res, nil
}

// HandleTrackEnd advances the guild's player after the backend reports a
// track end, honoring the loop mode, and destroys the player when nothing
// is left to play. Runs under the same per-guild serialization as Apply.
func (g *Gateway) HandleTrackEnd(guildID string) {
	g.locks.Lock(guildID)
	defer g.locks.Unlock(guildID)

	p, ok := g.registry.Get(guildID)
	if !ok {
		return
	}
	active, err := p.AdvanceOnTrackEnd()
	if err != nil {
		log.Printf("[ERR] [Gateway] %s: advance after track end failed: %v", guildID, err)
		active = false
	}
	if !active {
		g.destroy(guildID, p)
		return
	}
	g.refresh(guildID)
}

func (g *Gateway) apply(ctx context.Context, guildID string, action Action) (Result, *ControlError) {
	switch a := action.(type) {
	case Play:
		return g.applyPlay(ctx, guildID, a)

	case Pause:
		p, ok := g.registry.Get(guildID)
		if !ok || !p.Playing() {
			return Result{}, conflictErr("Nothing is currently playing.")
		}
		if err := p.Pause(); err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: "Paused playback"}, nil

	case Skip:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		skipped, err := p.Skip()
		if errors.Is(err, audio.ErrNoTrackPlaying) {
			return Result{}, conflictErr("No track to skip.")
		}
		if err != nil {
			return Result{}, internalErr(err)
		}
		g.reapIfExhausted(guildID, p)
		return Result{Message: fmt.Sprintf("Skipped %q", skipped.Title)}, nil

	case Previous:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		err := p.Previous()
		if errors.Is(err, audio.ErrNoHistory) {
			return Result{}, conflictErr("No previous track available to play.")
		}
		if err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: "Playing previous track"}, nil

	case Stop:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		g.destroy(guildID, p)
		return Result{Message: "Stopped and cleared queue"}, nil

	case Volume:
		if a.Level < 0 || a.Level > 100 {
			return Result{}, validationErr("Volume must be between 0 and 100")
		}
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		// Player and settings move together or not at all.
		if err := p.SetVolume(a.Level); err != nil {
			return Result{}, internalErr(err)
		}
		g.settings.Set(guildID, settings.Patch{Volume: settings.Int(a.Level)})
		return Result{Message: fmt.Sprintf("Set volume to %d%%", a.Level)}, nil

	case Seek:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		cur, playing := p.Current()
		if !playing || a.Position < 0 || a.Position > cur.Duration {
			return Result{}, validationErr("Invalid seek position")
		}
		if err := p.SeekTo(a.Position); err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: "Seeked to position"}, nil

	case PlayNext:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		moved, err := p.MoveToFront(a.Index)
		if errors.Is(err, audio.ErrIndexOutOfRange) {
			return Result{}, validationErr("Invalid track index")
		}
		if err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: fmt.Sprintf("Moved %q to play next", moved.Title)}, nil

	case Remove:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		removed, err := p.Remove(a.Index)
		if errors.Is(err, audio.ErrIndexOutOfRange) {
			return Result{}, validationErr("Invalid track index")
		}
		if err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: fmt.Sprintf("Removed %q from queue", removed.Title)}, nil

	case Shuffle:
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		g.settings.Set(guildID, settings.Patch{ShuffleEnabled: settings.Bool(a.Enabled)})
		if a.Enabled {
			g.rngMu.Lock()
			p.Shuffle(g.rng)
			g.rngMu.Unlock()
			return Result{Message: "Shuffle enabled"}, nil
		}
		if g.policy.RestoreOrderOnUnshuffle {
			p.RestoreOrder()
		}
		return Result{Message: "Shuffle disabled"}, nil

	case Repeat:
		if !a.Mode.Valid() {
			return Result{}, validationErr("Invalid repeat mode")
		}
		p, ok := g.registry.Get(guildID)
		if !ok {
			return Result{}, notFoundErr(noPlayerMessage)
		}
		// Re-requesting the active mode advances the cycle; the panel's
		// repeat button relies on this.
		mode := a.Mode
		if mode == g.settings.Get(guildID).RepeatMode {
			mode = NextRepeatMode(mode)
		}
		if err := p.SetLoop(loopModeFor(mode)); err != nil {
			return Result{}, internalErr(err)
		}
		g.settings.Set(guildID, settings.Patch{RepeatMode: settings.Mode(mode)})
		return Result{Message: fmt.Sprintf("Repeat mode set to %s", mode)}, nil
	}

	return Result{}, validationErr("Invalid action")
}

func (g *Gateway) applyPlay(ctx context.Context, guildID string, a Play) (Result, *ControlError) {
	if a.Query == "" {
		// Bare play is resume.
		p, ok := g.registry.Get(guildID)
		if !ok || !p.Paused() {
			return Result{}, conflictErr("Player is not paused or nothing to resume.")
		}
		if err := p.Resume(); err != nil {
			return Result{}, internalErr(err)
		}
		return Result{Message: "Resumed playback"}, nil
	}

	p, ok := g.registry.Get(guildID)
	if !ok {
		if a.VoiceChannelID == "" {
			return Result{}, conflictErr("Requester is not in a voice channel.")
		}
		p = g.registry.GetOrCreate(guildID, a.VoiceChannelID, a.TextChannelID)
	}

	tracks, err := g.backend.Resolve(ctx, a.Query)
	if err != nil {
		log.Printf("[WARN] [Gateway] %s: resolve %q failed: %v", guildID, a.Query, err)
		return Result{}, notFoundErr("No tracks found.")
	}
	if len(tracks) == 0 {
		return Result{}, notFoundErr("No tracks found.")
	}
	track := tracks[0]
	track.Requester = a.Requester
	p.Enqueue(track)

	if !p.Playing() && !p.Paused() {
		if err := p.Start(); err != nil {
			return Result{}, internalErr(err)
		}
	}
	return Result{Message: fmt.Sprintf("Added %q to queue", track.Title)}, nil
}

// refresh re-renders the control panel from current state. Panel failures
// are message-lifecycle failures, recovered locally, never action failures.
func (g *Gateway) refresh(guildID string) {
	p, ok := g.registry.Get(guildID)
	if !ok {
		g.panel.Clear(guildID)
		return
	}
	snap := p.Snapshot()
	st := g.settings.Get(guildID)

	if _, err := g.panel.Render(guildID, snap.TextChannel, controlpanel.Panel{
		Track:      snap.Current,
		QueueLen:   len(snap.Queue),
		Volume:     snap.Volume,
		Playing:    snap.Playing,
		RepeatMode: st.RepeatMode,
	}); err != nil {
		log.Printf("[WARN] [Gateway] %s: control panel render failed: %v", guildID, err)
	}
}

// destroy tears a player down and clears everything tied to the session.
func (g *Gateway) destroy(guildID string, p *audio.Player) {
	p.Destroy()
	g.registry.Remove(guildID)
	g.panel.Clear(guildID)
	if g.policy.ClearSettingsOnStop {
		g.settings.Delete(guildID)
	}
}

// reapIfExhausted destroys the player when a skip drained both the current
// track and the queue.
func (g *Gateway) reapIfExhausted(guildID string, p *audio.Player) {
	if _, playing := p.Current(); playing {
		return
	}
	if len(p.Queue()) > 0 {
		return
	}
	g.destroy(guildID, p)
}

// Settings exposes the settings store for snapshot assembly.
func (g *Gateway) Settings(guildID string) settings.Settings {
	return g.settings.Get(guildID)
}

func loopModeFor(m settings.RepeatMode) audio.LoopMode {
	switch m {
	case settings.RepeatOne:
		return audio.LoopTrack
	case settings.RepeatAll:
		return audio.LoopQueue
	default:
		return audio.LoopNone
	}
}
