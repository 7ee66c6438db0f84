// cmd/bot/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"melodash/internal/audio/youtube"
	"melodash/internal/config"
	"melodash/internal/controlserver"
	"melodash/internal/discord"
	"melodash/internal/storage"
	v "melodash/internal/version"
)

func main() {
	log.Printf("[INFO] Starting %v bot...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	cfg.RequireToken()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	bot, err := discord.New(cfg, store, youtube.NewSource())
	if err != nil {
		log.Fatal(err)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	ctrl := controlserver.New(bot.Gateway(), bot.Registry(), bot)
	go func() {
		if err := ctrl.Run(ctx, cfg.ControlAddr); err != nil {
			errCh <- err
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Printf("[INFO] Received signal %s, shutting down...\n", s)
		cancel()
	case err := <-errCh:
		log.Println("[ERR] Bot error:", err)
		cancel()
	}

	log.Println("[INFO] Bot exited cleanly")
}
