package audio

import "context"

// LoopMode is the backend's native repeat primitive.
type LoopMode string

const (
	LoopNone  LoopMode = "none"
	LoopTrack LoopMode = "track"
	LoopQueue LoopMode = "queue"
)

// Track is a read-only projection of a playable item. Duration is in
// milliseconds. Seq is assigned at enqueue time and preserves the original
// queue order so unshuffle can restore it when that policy is enabled.
type Track struct {
	Title     string
	Author    string
	URI       string
	Duration  int64
	Thumbnail string
	Requester string
	Seq       int
}

type EventType int

const (
	// EventTrackEnd fires when the backend finished streaming a track for
	// any reason other than an explicit stop.
	EventTrackEnd EventType = iota
)

type Event struct {
	GuildID string
	Type    EventType
}

// Backend is the audio streaming engine. It owns voice connections, decodes
// and streams tracks, tracks playback position and resolves search queries.
// All of that is outside this layer; the bot only issues commands and reacts
// to events. Implementations must be safe for concurrent use.
type Backend interface {
	Connect(guildID, voiceChannelID string) error
	Disconnect(guildID string) error
	StartTrack(guildID string, track Track) error
	StopTrack(guildID string) error
	SetPaused(guildID string, paused bool) error
	SetVolume(guildID string, volume int) error
	SeekTo(guildID string, position int64) error
	SetLoop(guildID string, mode LoopMode) error
	Position(guildID string) int64
	Resolve(ctx context.Context, query string) ([]Track, error)
	Events() <-chan Event
}
