package discord

import (
	"melodash/internal/controlserver"
	"melodash/internal/version"
)

// Bot implements controlserver.StatusProvider so the status endpoint can
// report gateway-level figures.

func (b *Bot) Online() bool {
	return b.dg.DataReady
}

func (b *Bot) GuildCount() int {
	return len(b.dg.State.Guilds)
}

func (b *Bot) UserCount() int {
	total := 0
	for _, g := range b.dg.State.Guilds {
		total += g.MemberCount
	}
	return total
}

// Nodes reports the single embedded audio backend. The wire shape allows
// for several so clients need no special case.
func (b *Bot) Nodes() []controlserver.NodeStatus {
	return []controlserver.NodeStatus{{
		Identifier: version.AppName,
		Connected:  b.Online(),
		Stats: map[string]any{
			"players": b.registry.Count(),
		},
	}}
}
