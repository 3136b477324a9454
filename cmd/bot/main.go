// Package main is the bot entry point. It loads configuration,
// initializes the application and runs it, with graceful shutdown on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"manaverse.gg/discord-bot/internal/app"
	"manaverse.gg/discord-bot/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== bot starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := log.ParseLevel(cfg.AppLogLevel)
	if err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize application")
	}
	defer application.DB.Close()

	application.Scheduler.Start(ctx)
	defer application.Scheduler.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := application.Bot.Start(ctx); err != nil {
			log.WithError(err).Error("bot stopped with error")
			quit <- syscall.SIGTERM
		}
	}()

	log.Info("=== bot ready ===")

	sig := <-quit
	log.Infof("received signal %s, shutting down...", sig)

	// Cancelling the context closes the gateway session and the jobs.
	cancel()

	// One last flush so nothing earned in the final moments is lost.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := application.Ledger.Flush(flushCtx); err != nil {
		log.WithError(err).Error("final ledger flush failed")
	}

	log.Info("=== bot stopped ===")
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
