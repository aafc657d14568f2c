// Package main — entry point. Loads configuration, wires the application
// and runs until SIGINT/SIGTERM with a graceful shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"voxnote.app/whatsapp-bot/internal/app"
	"voxnote.app/whatsapp-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== voxnote starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Could not load configuration")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The WhatsApp transport plugs in here; until the gateway is wired the
	// scheduler's notifications go to the log.
	send := func(phone, text string) {
		log.WithFields(log.Fields{"phone": phone, "len": len(text)}).Info("Outbound message queued")
	}

	application, err := app.New(ctx, cfg, send)
	if err != nil {
		log.WithError(err).Fatal("Could not initialize application")
	}
	defer application.Close()

	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Info("=== voxnote ready ===")

	sig := <-quit
	log.Infof("Received %s, shutting down...", sig)

	cancel()

	log.Info("=== voxnote stopped ===")
}

// setupLogging configures the log format.
func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
