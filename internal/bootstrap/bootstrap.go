// Package bootstrap wires configuration into the store, catalog and economy
// shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"chatthief/internal/catalog"
	"chatthief/internal/chat"
	"chatthief/internal/config"
	"chatthief/internal/db"
	"chatthief/internal/economy"
	"chatthief/internal/store/memory"
	"chatthief/internal/store/postgres"
	"chatthief/internal/store/sqlite"
)

// Backend is a Store that also tracks chat presence. Every store package
// provides one.
type Backend interface {
	economy.Store
	economy.Presence
}

type App struct {
	Config  config.Config
	Log     *slog.Logger
	Store   Backend
	Catalog *catalog.Catalog
	Economy *economy.Service
	Router  *chat.Router

	closers []func()
}

func NewLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Open connects the configured store, runs its migration and loads the
// catalog. Callers must Close the app.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Log: logger}

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	app.Catalog, err = catalog.Load(cfg.CatalogFile, cfg.SoundsDir, logger)
	switch {
	case errors.Is(err, catalog.ErrNoSource) && cfg.Store == config.StoreMemory:
		app.Catalog = catalog.Default()
	case err != nil:
		app.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("catalog loaded", "effects", app.Catalog.Len())

	app.Economy = economy.NewService(store, app.Catalog, economy.NewStaticRoles(cfg.StreamLords...), logger)
	app.Router = chat.NewRouter(app.Economy, cfg.CommandPrefix, logger)
	return app, nil
}

func (a *App) openStore(ctx context.Context) (Backend, error) {
	switch a.Config.Store {
	case config.StoreMemory:
		a.Log.Warn("using in-memory store, balances are lost on exit")
		return memory.New(), nil
	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = conn.Close() })
		store := sqlite.New(conn, a.Log)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		pool, err := db.Connect(ctx, a.Config.DatabaseURL, db.PoolOptions{AppName: filepath.Base(os.Args[0])})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		store := postgres.New(pool, a.Log)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", a.Config.Store)
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
