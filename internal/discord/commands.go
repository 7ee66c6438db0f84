package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	"melodash/internal/controlpanel"
	"melodash/internal/gateway"
	"melodash/internal/settings"
)

// commandDefinitions returns the slash command set registered per guild.
func commandDefinitions() []*discordgo.ApplicationCommand {
	var minZero float64 = 0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a track or add it to the queue",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "query",
				Description: "Song name or URL",
				Required:    true,
			}},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume paused playback"},
		{Name: "skip", Description: "Skip the current track"},
		{Name: "previous", Description: "Play the previous track"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "queue", Description: "Show the current queue"},
		{Name: "nowplaying", Description: "Show the current track"},
		{
			Name:        "volume",
			Description: "Set playback volume",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "level",
				Description: "Volume from 0 to 100",
				Required:    true,
				MinValue:    &minZero,
				MaxValue:    100,
			}},
		},
		{
			Name:        "seek",
			Description: "Seek to a position in the current track",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "seconds",
				Description: "Position in seconds",
				Required:    true,
				MinValue:    &minZero,
			}},
		},
		{
			Name:        "shuffle",
			Description: "Toggle or set shuffle",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Leave empty to toggle",
			}},
		},
		{
			Name:        "repeat",
			Description: "Set the repeat mode",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "Repeat mode",
				Required:    true,
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "off", Value: "off"},
					{Name: "one", Value: "one"},
					{Name: "all", Value: "all"},
				},
			}},
		},
		{Name: "join", Description: "Join your voice channel and pin the control panel here"},
	}
}

// handleSlashCommand translates a slash command into a gateway action and
// reports the outcome back on the interaction.
func (b *Bot) handleSlashCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	opts := optionMap(data.Options)

	switch data.Name {
	case "play":
		b.runPlay(s, i, opts["query"].StringValue())
	case "resume":
		b.runAction(s, i, gateway.Play{})
	case "pause":
		b.runAction(s, i, gateway.Pause{})
	case "skip":
		b.runAction(s, i, gateway.Skip{})
	case "previous":
		b.runAction(s, i, gateway.Previous{})
	case "stop":
		b.runAction(s, i, gateway.Stop{})
	case "volume":
		b.runAction(s, i, gateway.Volume{Level: int(opts["level"].IntValue())})
	case "seek":
		b.runAction(s, i, gateway.Seek{Position: opts["seconds"].IntValue() * 1000})
	case "shuffle":
		enabled := !b.gw.Settings(i.GuildID).ShuffleEnabled
		if opt, ok := opts["enabled"]; ok {
			enabled = opt.BoolValue()
		}
		b.runAction(s, i, gateway.Shuffle{Enabled: enabled})
	case "repeat":
		b.runAction(s, i, gateway.Repeat{Mode: settings.RepeatMode(opts["mode"].StringValue())})
	case "queue":
		b.runQueue(s, i)
	case "nowplaying":
		b.runNowPlaying(s, i)
	case "join":
		b.runJoin(s, i)
	default:
		log.Printf("[WARN] Unknown command: %s", data.Name)
	}
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// runPlay resolves the requester's voice channel before handing off, since
// only this surface can see voice states.
func (b *Bot) runPlay(s *discordgo.Session, i *discordgo.InteractionCreate, query string) {
	// Resolving a query can be slow; defer so the interaction token
	// doesn't expire under us.
	if err := RespondDeferred(s, i); err != nil {
		log.Println("[ERR] Failed to defer play response:", err)
		return
	}

	voiceID, _ := b.findUserVoiceState(i.GuildID, interactionUserID(i))
	action := gateway.Play{
		Query:          query,
		VoiceChannelID: voiceID,
		TextChannelID:  i.ChannelID,
		Requester:      interactionUserName(i),
	}

	res, err := b.gw.Apply(context.Background(), i.GuildID, action)
	if err != nil {
		if ferr := FollowupEmbed(s, i, errorEmbed(err)); ferr != nil {
			log.Println("[ERR] Failed to send play error followup:", ferr)
		}
		return
	}
	if err := FollowupEmbed(s, i, resultEmbed(res.Message)); err != nil {
		log.Println("[ERR] Failed to send play followup:", err)
	}
}

// runAction applies a gateway action and replies with its one-line verdict.
func (b *Bot) runAction(s *discordgo.Session, i *discordgo.InteractionCreate, action gateway.Action) {
	res, err := b.gw.Apply(context.Background(), i.GuildID, action)
	if err != nil {
		if rerr := RespondEmbedEphemeral(s, i, errorEmbed(err)); rerr != nil {
			log.Println("[ERR] Failed to respond with action error:", rerr)
		}
		return
	}
	if err := RespondEmbed(s, i, resultEmbed(res.Message)); err != nil {
		log.Println("[ERR] Failed to respond with action result:", err)
	}
}

func (b *Bot) runQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p, ok := b.registry.Get(i.GuildID)
	if !ok {
		respondNoPlayer(s, i)
		return
	}

	var sb strings.Builder
	if current, playing := p.Current(); playing {
		fmt.Fprintf(&sb, "**Now playing:** %s\n\n", current.Title)
	}
	queue := p.Queue()
	if len(queue) == 0 {
		sb.WriteString("The queue is empty.")
	}
	for n, track := range queue {
		fmt.Fprintf(&sb, "`%d.` %s `%s`\n", n+1, track.Title, controlpanel.FormatDuration(track.Duration))
	}

	err := RespondEmbed(s, i, &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       EmbedColor,
	})
	if err != nil {
		log.Println("[ERR] Failed to respond with queue:", err)
	}
}

func (b *Bot) runNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	p, ok := b.registry.Get(i.GuildID)
	if !ok {
		respondNoPlayer(s, i)
		return
	}
	current, playing := p.Current()
	if !playing {
		if err := RespondEmbedEphemeral(s, i, errorTextEmbed("Nothing is currently playing.")); err != nil {
			log.Println("[ERR] Failed to respond with nowplaying:", err)
		}
		return
	}

	snap := p.Snapshot()
	embed := &discordgo.MessageEmbed{
		Title: "Now playing",
		Description: fmt.Sprintf("[%s](%s)\n`%s / %s`",
			current.Title, current.URI,
			controlpanel.FormatDuration(snap.Position),
			controlpanel.FormatDuration(current.Duration)),
		Color: EmbedColor,
	}
	if current.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: current.Thumbnail}
	}
	if err := RespondEmbed(s, i, embed); err != nil {
		log.Println("[ERR] Failed to respond with nowplaying:", err)
	}
}

// runJoin connects to the requester's voice channel and pins the control
// panel to the channel the command was issued in.
func (b *Bot) runJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	voiceID, ok := b.findUserVoiceState(i.GuildID, interactionUserID(i))
	if !ok {
		if err := RespondEmbedEphemeral(s, i, errorTextEmbed("Requester is not in a voice channel.")); err != nil {
			log.Println("[ERR] Failed to respond to join:", err)
		}
		return
	}

	if err := b.store.SetBoundTextChannel(i.GuildID, i.ChannelID); err != nil {
		log.Println("[ERR] Failed to store panel channel binding:", err)
	}

	b.registry.GetOrCreate(i.GuildID, voiceID, i.ChannelID)
	if err := b.backend.Connect(i.GuildID, voiceID); err != nil {
		if rerr := RespondEmbedEphemeral(s, i, errorTextEmbed("Failed to join the voice channel.")); rerr != nil {
			log.Println("[ERR] Failed to respond to join:", rerr)
		}
		return
	}

	if err := RespondEmbed(s, i, resultEmbed("Joined your voice channel")); err != nil {
		log.Println("[ERR] Failed to respond to join:", err)
	}
}

func respondNoPlayer(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := RespondEmbedEphemeral(s, i, errorTextEmbed("No active player found for this server. Please start playback from Discord first.")); err != nil {
		log.Println("[ERR] Failed to respond with no-player error:", err)
	}
}

func errorEmbed(err error) *discordgo.MessageEmbed {
	var cerr *gateway.ControlError
	if errors.As(err, &cerr) {
		return errorTextEmbed(cerr.Message)
	}
	return errorTextEmbed("Failed to control player")
}

func errorTextEmbed(text string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: "⚠️ " + text, Color: EmbedColor}
}

func resultEmbed(message string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Description: message, Color: EmbedColor}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func interactionUserName(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
