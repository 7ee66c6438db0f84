package discord

import (
	"fmt"
	"sort"

	"github.com/bwmarrin/discordgo"

	"melodash/internal/controlpanel"
	"melodash/internal/storage"
)

// sessionMessenger backs the control panel manager with a live Discord
// session. The panel is a normal channel message the manager deletes and
// re-sends; this type only knows how to build and ship one.
type sessionMessenger struct {
	dg    *discordgo.Session
	store *storage.Storage
}

func (m *sessionMessenger) SendPanel(channelID string, panel controlpanel.Panel) (string, error) {
	msg, err := m.dg.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{panelEmbed(panel)},
		Components: panelComponents(panel),
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (m *sessionMessenger) DeleteMessage(channelID, messageID string) error {
	return m.dg.ChannelMessageDelete(channelID, messageID)
}

// FirstTextChannel picks where to put the panel when no binding exists or
// the bound channel is gone: the stored binding first, then the guild's
// lowest-positioned text channel.
func (m *sessionMessenger) FirstTextChannel(guildID string) (string, error) {
	if bound, err := m.store.BoundTextChannel(guildID); err == nil && bound != "" {
		return bound, nil
	}

	channels, err := m.dg.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("list guild channels: %w", err)
	}
	sort.Slice(channels, func(a, b int) bool { return channels[a].Position < channels[b].Position })
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			return ch.ID, nil
		}
	}
	return "", fmt.Errorf("guild %s has no text channels", guildID)
}

func panelEmbed(panel controlpanel.Panel) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "NOW PLAYING",
		Color: EmbedColor,
	}
	if panel.Track == nil {
		embed.Description = "Nothing is playing."
		return embed
	}

	embed.Description = fmt.Sprintf("[%s](%s)", panel.Track.Title, panel.Track.URI)
	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Author", Value: orDash(panel.Track.Author), Inline: true},
		{Name: "Requested by", Value: orDash(panel.Track.Requester), Inline: true},
		{Name: "Duration", Value: controlpanel.FormatDuration(panel.Track.Duration), Inline: true},
		{Name: "Volume", Value: fmt.Sprintf("%d%%", panel.Volume), Inline: true},
		{Name: "Queue", Value: fmt.Sprintf("%d track(s)", panel.QueueLen), Inline: true},
	}
	if panel.Track.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: panel.Track.Thumbnail}
	}
	return embed
}

func panelComponents(panel controlpanel.Panel) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(controlpanel.ButtonPrevious, "⏮️"),
			button(controlpanel.ButtonPlayPause, controlpanel.PlayPauseEmoji(panel.Playing)),
			button(controlpanel.ButtonSkip, "⏭️"),
			button(controlpanel.ButtonStop, "⏹️"),
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			button(controlpanel.ButtonShuffle, "🔀"),
			button(controlpanel.ButtonVolumeDown, "🔉"),
			button(controlpanel.ButtonVolumeUp, "🔊"),
			button(controlpanel.ButtonRepeat, controlpanel.RepeatEmoji(panel.RepeatMode)),
		}},
	}
}

func button(customID, emoji string) discordgo.Button {
	return discordgo.Button{
		Style:    discordgo.SecondaryButton,
		CustomID: customID,
		Emoji:    &discordgo.ComponentEmoji{Name: emoji},
	}
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
