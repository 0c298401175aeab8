package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DATABASE_URL", "THIEF_API_ADDR", "THIEF_API_BASE_URL", "THIEF_STORE",
		"THIEF_SQLITE_PATH", "THIEF_CATALOG_FILE", "THIEF_SOUNDS_DIR", "THIEF_STREAM_LORDS",
		"THIEF_REWARD_EVERY", "THIEF_PRESENCE_WINDOW", "THIEF_REWARD_BLACKLIST",
		"THIEF_WORKER_RUN_ONCE", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID",
		"THIEF_COMMAND_PREFIX", "THIEF_LOG_LEVEL", "THIEF_CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("THIEF_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.APIAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 5*time.Minute, cfg.RewardEvery)
	assert.Equal(t, 10*time.Minute, cfg.PresenceWindow)
	assert.Equal(t, "!", cfg.CommandPrefix)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.StreamLords)
	assert.Error(t, cfg.RequireDiscord())
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("THIEF_STORE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/thief")
	t.Setenv("THIEF_SOUNDS_DIR", "/sounds")
	t.Setenv("THIEF_STREAM_LORDS", "beginbot, beginbotbot")
	t.Setenv("THIEF_REWARD_BLACKLIST", "nightbot")
	t.Setenv("THIEF_REWARD_EVERY", "30s")
	t.Setenv("THIEF_LOG_LEVEL", "debug")
	t.Setenv("THIEF_WORKER_RUN_ONCE", "true")
	t.Setenv("DISCORD_BOT_TOKEN", "tok")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.APIAddr)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, []string{"beginbot", "beginbotbot"}, cfg.StreamLords)
	assert.Equal(t, []string{"nightbot"}, cfg.RewardBlacklist)
	assert.Equal(t, 30*time.Second, cfg.RewardEvery)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.WorkerRunOnce)
	assert.NoError(t, cfg.RequireDiscord())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "thief.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
thief_store: sqlite
thief_sqlite_path: /data/thief.db
thief_catalog_file: /data/catalog.yaml
thief_stream_lords:
  - beginbot
thief_presence_window: 15m
`), 0o644))
	t.Setenv("THIEF_CONFIG_FILE", path)
	t.Setenv("THIEF_PRESENCE_WINDOW", "20m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/data/thief.db", cfg.SQLitePath)
	assert.Equal(t, "/data/catalog.yaml", cfg.CatalogFile)
	assert.Equal(t, []string{"beginbot"}, cfg.StreamLords)
	assert.Equal(t, 20*time.Minute, cfg.PresenceWindow, "env overrides the file")
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"THIEF_STORE": "redis"}},
		{"postgres without url", map[string]string{"THIEF_STORE": "postgres", "THIEF_SOUNDS_DIR": "/s"}},
		{"sqlite without catalog", map[string]string{"THIEF_STORE": "sqlite"}},
		{"bad duration", map[string]string{"THIEF_STORE": "memory", "THIEF_REWARD_EVERY": "soon"}},
		{"bad level", map[string]string{"THIEF_STORE": "memory", "THIEF_LOG_LEVEL": "loud"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadCLI(t *testing.T) {
	clearEnv(t)
	assert.Equal(t, "http://localhost:8080", LoadCLI().APIBaseURL)
	t.Setenv("THIEF_API_BASE_URL", "https://thief.example/")
	assert.Equal(t, "https://thief.example", LoadCLI().APIBaseURL)
}
