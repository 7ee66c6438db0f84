// Package controlpanel owns the lifecycle of the single "now playing"
// control message per guild. Whatever happens, at most one panel message is
// live at a time: the previous one is deleted (best effort) before a new one
// becomes authoritative. A duplicate panel is not just cosmetic: its stale
// buttons would no longer reflect true state.
package controlpanel

import (
	"fmt"
	"log"
	"sync"

	"melodash/internal/audio"
	"melodash/internal/settings"
)

// Ref points at the live panel message. Both IDs are kept because the panel
// may live in a different channel than the current one if the binding
// changed while playing.
type Ref struct {
	ChannelID string
	MessageID string
}

// Panel is everything the chat surface needs to draw the control message.
type Panel struct {
	Track      *audio.Track
	QueueLen   int
	Volume     int
	Playing    bool
	RepeatMode settings.RepeatMode
}

// Button custom IDs, shared between rendering and interaction routing.
const (
	ButtonPrevious   = "player_previous"
	ButtonPlayPause  = "player_playpause"
	ButtonSkip       = "player_skip"
	ButtonStop       = "player_stop"
	ButtonShuffle    = "player_shuffle"
	ButtonVolumeDown = "player_volumedown"
	ButtonVolumeUp   = "player_volumeup"
	ButtonRepeat     = "player_repeat"
)

// RepeatEmoji returns the cycling symbol for a repeat mode.
func RepeatEmoji(mode settings.RepeatMode) string {
	switch mode {
	case settings.RepeatOne:
		return "🔂"
	case settings.RepeatAll:
		return "🔁"
	default:
		return "➡️"
	}
}

// PlayPauseEmoji returns the toggle symbol for the play/pause button.
func PlayPauseEmoji(playing bool) string {
	if playing {
		return "⏸️"
	}
	return "▶️"
}

// FormatDuration renders milliseconds as m:ss.
func FormatDuration(ms int64) string {
	if ms <= 0 {
		return "0:00"
	}
	seconds := ms / 1000
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// Messenger is the chat-platform side of the panel. Implemented by the
// Discord session wrapper; faked in tests.
type Messenger interface {
	SendPanel(channelID string, panel Panel) (messageID string, err error)
	DeleteMessage(channelID, messageID string) error
	FirstTextChannel(guildID string) (string, error)
}

// Manager tracks the live panel ref per guild.
type Manager struct {
	messenger Messenger

	mu    sync.Mutex
	refs  map[string]Ref
	locks map[string]*sync.Mutex
}

func NewManager(messenger Messenger) *Manager {
	return &Manager{
		messenger: messenger,
		refs:      make(map[string]Ref),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *Manager) guildLock(guildID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[guildID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[guildID] = l
	}
	return l
}

// Ref returns the live panel ref for a guild, if any.
func (m *Manager) Ref(guildID string) (Ref, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.refs[guildID]
	return ref, ok
}

// Render replaces the guild's panel: the previous message is deleted first
// (delete failures are expected when users removed it themselves, so they
// are logged and swallowed), then a new panel is posted to the preferred
// channel, falling back to the guild's first text channel. Renders for the
// same guild are serialized so two rapid calls cannot leave two live panels.
func (m *Manager) Render(guildID, preferredChannelID string, panel Panel) (Ref, error) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()

	m.deleteCurrent(guildID)

	channelID := preferredChannelID
	if channelID == "" {
		fallback, err := m.messenger.FirstTextChannel(guildID)
		if err != nil {
			return Ref{}, fmt.Errorf("no channel for control panel: %w", err)
		}
		channelID = fallback
	}

	messageID, err := m.messenger.SendPanel(channelID, panel)
	if err != nil {
		// Bound channel may be gone or unwritable; retry once on the
		// guild's first text channel.
		fallback, ferr := m.messenger.FirstTextChannel(guildID)
		if ferr != nil || fallback == channelID {
			return Ref{}, fmt.Errorf("send control panel: %w", err)
		}
		channelID = fallback
		messageID, err = m.messenger.SendPanel(channelID, panel)
		if err != nil {
			return Ref{}, fmt.Errorf("send control panel: %w", err)
		}
	}

	ref := Ref{ChannelID: channelID, MessageID: messageID}
	m.mu.Lock()
	m.refs[guildID] = ref
	m.mu.Unlock()
	return ref, nil
}

// Clear deletes the guild's live panel, if any, and forgets it.
func (m *Manager) Clear(guildID string) {
	l := m.guildLock(guildID)
	l.Lock()
	defer l.Unlock()
	m.deleteCurrent(guildID)
}

func (m *Manager) deleteCurrent(guildID string) {
	m.mu.Lock()
	ref, ok := m.refs[guildID]
	delete(m.refs, guildID)
	m.mu.Unlock()

	if !ok {
		return
	}
	if err := m.messenger.DeleteMessage(ref.ChannelID, ref.MessageID); err != nil {
		log.Printf("[WARN] [Panel] %s: delete of message %s failed: %v", guildID, ref.MessageID, err)
	}
}
