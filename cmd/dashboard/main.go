// cmd/dashboard/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"melodash/internal/botclient"
	"melodash/internal/config"
	"melodash/internal/dashboard"
	v "melodash/internal/version"
)

func main() {
	log.Printf("[INFO] Starting %v dashboard...", v.AppName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.DashboardPassword == "" {
		log.Fatal("DASHBOARD_PASSWORD is not set")
	}

	srv := dashboard.New(cfg.DashboardPassword, botclient.New(cfg.BotServerURL))
	go srv.RunPollLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx, cfg.DashboardAddr); err != nil {
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
		log.Println("[ERR] Dashboard error:", err)
		cancel()
	}

	log.Println("[INFO] Dashboard exited cleanly")
}
