// Package discord is the chat-platform surface: slash commands and control
// panel buttons, all routed through the gateway so Discord and the web
// dashboard never disagree about how playback changes.
package discord

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"melodash/internal/audio"
	"melodash/internal/audio/discordvoice"
	"melodash/internal/config"
	"melodash/internal/controlpanel"
	"melodash/internal/gateway"
	"melodash/internal/settings"
	"melodash/internal/storage"
	"melodash/internal/version"
)

// Bot is the Discord bot
type Bot struct {
	dg       *discordgo.Session
	cfg      *config.Config
	store    *storage.Storage
	backend  audio.Backend
	registry *audio.Registry
	settings *settings.Store
	gw       *gateway.Gateway
}

// New builds the bot and the control stack around it. The session is
// created but not opened; Run does that. The voice backend is built here
// because it needs the session for voice connections.
func New(cfg *config.Config, store *storage.Storage, resolver discordvoice.Resolver) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	backend := discordvoice.New(discordvoice.SessionJoiner{Session: dg}, resolver)
	b := &Bot{
		dg:       dg,
		cfg:      cfg,
		store:    store,
		backend:  backend,
		registry: audio.NewRegistry(backend),
		settings: settings.NewStore(),
	}

	panel := controlpanel.NewManager(&sessionMessenger{dg: dg, store: store})
	policy := gateway.Policy{
		RestoreOrderOnUnshuffle: cfg.RestoreOrderOnUnshuffle,
		ClearSettingsOnStop:     cfg.ClearSettingsOnStop,
	}
	b.gw = gateway.New(b.registry, b.settings, panel, backend, policy, rand.New(rand.NewSource(time.Now().UnixNano())))

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)

	return b, nil
}

// Gateway exposes the control gateway so the control server can share it.
func (b *Bot) Gateway() *gateway.Gateway { return b.gw }

// Registry exposes the session registry for the players endpoint.
func (b *Bot) Registry() *audio.Registry { return b.registry }

// Run opens the Discord session and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.consumeBackendEvents(ctx)

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

// configureIntents configures the Discord intents
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates
}

// consumeBackendEvents forwards track-end notifications into the gateway.
// This is the only path by which playback advances without a user action.
func (b *Bot) consumeBackendEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-b.backend.Events():
			if !ok {
				return
			}
			if evt.Type == audio.EventTrackEnd {
				b.gw.HandleTrackEnd(evt.GuildID)
			}
		}
	}
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}

	for _, g := range r.Guilds {
		if !b.isGuildAllowed(g.ID) {
			log.Printf("[INFO] Leaving non-allowlisted guild: %s", g.ID)
			if err := s.GuildLeave(g.ID); err != nil {
				log.Printf("[ERR] Failed to leave guild %s: %v", g.ID, err)
			}
			continue
		}

		if err := b.registerCommands(g.ID); err != nil {
			log.Println("[ERR] Error registering slash commands for guild", g.ID, ":", err)
		}
	}

	log.Printf("[INFO] ✅ %s %s is running as %v.", version.AppName, version.AppVersion, botInfo.Username)
}

// onGuildCreate is called when the bot joins a guild
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)

	if !b.isGuildAllowed(g.Guild.ID) {
		log.Printf("[INFO] Leaving non-allowlisted guild: %s (%s)", g.Guild.ID, g.Guild.Name)
		if err := s.GuildLeave(g.Guild.ID); err != nil {
			log.Printf("[ERR] Failed to leave guild %s: %v", g.Guild.ID, err)
		}
		return
	}

	if err := b.registerCommands(g.Guild.ID); err != nil {
		log.Printf("[ERR] Failed to register commands for new guild %s: %v", g.Guild.ID, err)
	}
}

// isGuildAllowed applies the allowlist; an empty allowlist admits every guild.
func (b *Bot) isGuildAllowed(guildID string) bool {
	if len(b.cfg.DiscordGuildIDs) == 0 {
		return true
	}
	return slices.Contains(b.cfg.DiscordGuildIDs, guildID)
}

// registerCommands registers slash commands for one guild
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	if _, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, commandDefinitions()); err != nil {
		return fmt.Errorf("bulk overwrite commands: %w", err)
	}
	return nil
}

// onInteractionCreate routes slash commands and panel buttons
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleSlashCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

// findUserVoiceState finds the voice state of a user
func (b *Bot) findUserVoiceState(guildID, userID string) (string, bool) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID, true
		}
	}
	return "", false
}
