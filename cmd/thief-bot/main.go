package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"chatthief/internal/bootstrap"
	"chatthief/internal/config"
	"chatthief/internal/discord"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
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
	if err := cfg.RequireDiscord(); err != nil {
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

	bot, err := discord.New(cfg.DiscordToken, cfg.DiscordChannelID, app.Router, app.Store, logger)
	if err != nil {
		logger.Error("discord init failed", "err", err)
		app.Close()
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Catalog.Watch(gctx)
	})
	g.Go(func() error {
		return bot.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("bot failed", "err", err)
		app.Close()
		os.Exit(1)
	}
	logger.Info("bot shutdown")
}
