package discord

import (
	"context"
	"errors"
	"log"

	"github.com/bwmarrin/discordgo"

	"melodash/internal/controlpanel"
	"melodash/internal/gateway"
)

const volumeStep = 10

// handleComponent routes control panel button presses. A successful action
// re-renders the panel, so the interaction itself is acknowledged silently;
// only failures surface as ephemeral replies.
func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID

	action, ok := b.actionForButton(i.GuildID, customID)
	if !ok {
		log.Printf("[WARN] No matching action for customID: %s", customID)
		return
	}

	if err := AcknowledgeComponent(s, i); err != nil {
		log.Println("[ERR] Failed to acknowledge component:", err)
		return
	}

	if _, err := b.gw.Apply(context.Background(), i.GuildID, action); err != nil {
		var cerr *gateway.ControlError
		if errors.As(err, &cerr) {
			if ferr := FollowupEmbedEphemeral(s, i, errorTextEmbed(cerr.Message)); ferr != nil {
				log.Println("[ERR] Failed to send button error followup:", ferr)
			}
		}
	}
}

// actionForButton maps a panel button to a gateway action. Buttons carry no
// arguments; steppers and cyclers derive the next value from current state.
func (b *Bot) actionForButton(guildID, customID string) (gateway.Action, bool) {
	switch customID {
	case controlpanel.ButtonPrevious:
		return gateway.Previous{}, true
	case controlpanel.ButtonPlayPause:
		if p, ok := b.registry.Get(guildID); ok && p.Paused() {
			return gateway.Play{}, true
		}
		return gateway.Pause{}, true
	case controlpanel.ButtonSkip:
		return gateway.Skip{}, true
	case controlpanel.ButtonStop:
		return gateway.Stop{}, true
	case controlpanel.ButtonShuffle:
		return gateway.Shuffle{Enabled: !b.gw.Settings(guildID).ShuffleEnabled}, true
	case controlpanel.ButtonVolumeDown:
		return gateway.Volume{Level: max(0, b.gw.Settings(guildID).Volume-volumeStep)}, true
	case controlpanel.ButtonVolumeUp:
		return gateway.Volume{Level: min(100, b.gw.Settings(guildID).Volume+volumeStep)}, true
	case controlpanel.ButtonRepeat:
		return gateway.Repeat{Mode: gateway.NextRepeatMode(b.gw.Settings(guildID).RepeatMode)}, true
	default:
		return nil, false
	}
}
