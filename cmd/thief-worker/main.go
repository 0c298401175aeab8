package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatthief/internal/bootstrap"
	"chatthief/internal/config"
	"chatthief/internal/discord"
	"chatthief/internal/market"

	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger(cfg.LogLevel)
	app, err := bootstrap.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	var announcer market.Announcer
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		a, err := discord.NewAnnouncer(cfg.DiscordToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Error("discord announcer init failed", "err", err)
			app.Close()
			os.Exit(1)
		}
		announcer = a
	} else {
		logger.Warn("no discord channel configured, market results are only logged")
	}

	hand := market.NewHand(app.Economy, app.Store, announcer, market.Config{
		Window:    cfg.PresenceWindow,
		Blacklist: cfg.RewardBlacklist,
	}, logger)

	if cfg.WorkerRunOnce {
		round, err := hand.RunOnce(ctx)
		if err != nil && !errors.Is(err, market.ErrNoChatters) {
			logger.Error("market round failed", "err", err)
			app.Close()
			os.Exit(1)
		}
		logger.Info("worker run-once completed", "chatters", len(round.Chatters))
		return
	}

	if err := hand.Run(ctx, cfg.RewardEvery); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("market stopped", "err", err)
	}
	logger.Info("worker shutdown")
}
