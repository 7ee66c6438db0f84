package config

import (
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, falling back to system environment variables")
	}
}

// Config holds settings for both processes. The bot process reads the Discord
// and control-server fields; the dashboard process reads the dashboard fields
// and reaches the bot over BotServerURL.
type Config struct {
	DiscordToken      string   `env:"DISCORD_TOKEN"`
	DiscordGuildIDs   []string `env:"DISCORD_GUILD_IDS" envSeparator:","`
	ControlAddr       string   `env:"CONTROL_ADDR" envDefault:":34567"`
	StoragePath       string   `env:"STORAGE_PATH" envDefault:"datastore.json"`
	DashboardAddr     string   `env:"DASHBOARD_ADDR" envDefault:":3000"`
	DashboardPassword string   `env:"DASHBOARD_PASSWORD"`
	BotServerURL      string   `env:"BOT_SERVER_URL" envDefault:"http://localhost:34567"`

	// Unresolved behavior in the wild: neither choice is clearly right, so
	// both are configuration rather than hard-coded policy.
	RestoreOrderOnUnshuffle bool `env:"RESTORE_ORDER_ON_UNSHUFFLE" envDefault:"false"`
	ClearSettingsOnStop     bool `env:"CLEAR_SETTINGS_ON_STOP" envDefault:"false"`
}

// New parses configuration from the environment.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireToken exits if no Discord token is configured. The bot process
// cannot do anything useful without one.
func (c *Config) RequireToken() {
	if c.DiscordToken == "" {
		log.Fatal("DISCORD_TOKEN is not set")
	}
}
