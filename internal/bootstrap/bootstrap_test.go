package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"chatthief/internal/config"
	"chatthief/internal/store/memory"
	"chatthief/internal/store/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemorySeedsDefaultCatalog(t *testing.T) {
	app, err := Open(context.Background(), config.Config{Store: config.StoreMemory, StreamLords: []string{"beginbot"}}, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &memory.Store{}, app.Store)
	assert.Contains(t, app.Catalog.Names(), "clap")
	assert.True(t, app.Economy.IsPrivileged("@beginbot"))
	assert.Equal(t, "!", app.Router.Prefix())
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	catalogFile := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogFile, []byte("effects:\n  kazoo: 4\n"), 0o644))

	cfg := config.Config{
		Store:         config.StoreSQLite,
		SQLitePath:    filepath.Join(dir, "data", "thief.db"),
		CatalogFile:   catalogFile,
		CommandPrefix: "?",
	}
	app, err := Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.IsType(t, &sqlite.Store{}, app.Store)
	assert.Equal(t, []string{"kazoo"}, app.Catalog.Names())

	resp, err := app.Router.Route(ctx, "amy", "?perms kazoo")
	require.NoError(t, err)
	assert.Equal(t, "!kazoo | Cost: 4 | Health: 0 | Like Ratio 100%", resp.Text)
}

func TestOpenNeedsCatalogOutsideMemory(t *testing.T) {
	cfg := config.Config{Store: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "thief.db")}
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
