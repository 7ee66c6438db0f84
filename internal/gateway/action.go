package gateway

import "melodash/internal/settings"

// Action is a closed set of control operations. Each variant carries its own
// payload so Apply can match exhaustively instead of switching on a string
// tag with a default branch.
type Action interface {
	isAction()
}

// Play resolves a query and enqueues the best match. When the guild has no
// player yet one is created, bound to the requester's voice channel; without
// voice context that fails. With an empty query, Play resumes a paused
// player instead.
type Play struct {
	Query string

	// Where to create a player if none exists; only the chat surface can
	// fill these from the requester's state.
	VoiceChannelID string
	TextChannelID  string
	Requester      string
}

type Pause struct{}
type Skip struct{}
type Previous struct{}
type Stop struct{}

type Volume struct {
	Level int
}

type Seek struct {
	Position int64
}

type PlayNext struct {
	Index int
}

type Remove struct {
	Index int
}

type Shuffle struct {
	Enabled bool
}

type Repeat struct {
	Mode settings.RepeatMode
}

func (Play) isAction()     {}
func (Pause) isAction()    {}
func (Skip) isAction()     {}
func (Previous) isAction() {}
func (Stop) isAction()     {}
func (Volume) isAction()   {}
func (Seek) isAction()     {}
func (PlayNext) isAction() {}
func (Remove) isAction()   {}
func (Shuffle) isAction()  {}
func (Repeat) isAction()   {}

// NextRepeatMode advances the off → one → all → off cycle used by the
// panel's repeat button. Requesting the mode that is already active also
// advances the cycle, so the button can be pressed repeatedly.
func NextRepeatMode(m settings.RepeatMode) settings.RepeatMode {
	switch m {
	case settings.RepeatOff:
		return settings.RepeatOne
	case settings.RepeatOne:
		return settings.RepeatAll
	default:
		return settings.RepeatOff
	}
}
