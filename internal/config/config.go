package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config is shared by every binary. Keys are read from the environment and,
// when THIEF_CONFIG_FILE names one, from a YAML file using the same keys in
// lower case.
type Config struct {
	APIAddr     string
	APIBaseURL  string
	CORSOrigins []string

	Store       string
	DatabaseURL string
	SQLitePath  string

	CatalogFile string
	SoundsDir   string
	StreamLords []string

	RewardEvery     time.Duration
	PresenceWindow  time.Duration
	RewardBlacklist []string
	WorkerRunOnce   bool

	DiscordToken     string
	DiscordChannelID string
	CommandPrefix    string

	LogLevel slog.Level
}

func defaults(v *viper.Viper) {
	v.SetDefault("thief_api_addr", ":8080")
	v.SetDefault("thief_api_base_url", "http://localhost:8080")
	v.SetDefault("thief_cors_origins", "http://localhost:*,http://127.0.0.1:*")
	v.SetDefault("thief_store", StoreSQLite)
	v.SetDefault("thief_sqlite_path", "thief.db")
	v.SetDefault("thief_reward_every", "5m")
	v.SetDefault("thief_presence_window", "10m")
	v.SetDefault("thief_command_prefix", "!")
	v.SetDefault("thief_log_level", "info")
	v.SetDefault("thief_worker_run_once", false)
}

func Load() (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()
	// Keys without a default are only seen by AutomaticEnv when bound.
	for _, key := range []string{
		"port", "database_url", "thief_catalog_file", "thief_sounds_dir",
		"thief_stream_lords", "thief_reward_blacklist",
		"discord_bot_token", "discord_channel_id", "thief_config_file",
	} {
		_ = v.BindEnv(key)
	}

	if file := strings.TrimSpace(v.GetString("thief_config_file")); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	addr := strings.TrimSpace(v.GetString("port"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = strings.TrimSpace(v.GetString("thief_api_addr"))
	}

	cfg := Config{
		APIAddr:          addr,
		APIBaseURL:       strings.TrimRight(strings.TrimSpace(v.GetString("thief_api_base_url")), "/"),
		CORSOrigins:      list(v, "thief_cors_origins"),
		Store:            strings.ToLower(strings.TrimSpace(v.GetString("thief_store"))),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		SQLitePath:       strings.TrimSpace(v.GetString("thief_sqlite_path")),
		CatalogFile:      strings.TrimSpace(v.GetString("thief_catalog_file")),
		SoundsDir:        strings.TrimSpace(v.GetString("thief_sounds_dir")),
		StreamLords:      list(v, "thief_stream_lords"),
		RewardBlacklist:  list(v, "thief_reward_blacklist"),
		WorkerRunOnce:    v.GetBool("thief_worker_run_once"),
		DiscordToken:     strings.TrimSpace(v.GetString("discord_bot_token")),
		DiscordChannelID: strings.TrimSpace(v.GetString("discord_channel_id")),
		CommandPrefix:    strings.TrimSpace(v.GetString("thief_command_prefix")),
	}

	var err error
	if cfg.RewardEvery, err = duration(v, "thief_reward_every"); err != nil {
		return cfg, err
	}
	if cfg.PresenceWindow, err = duration(v, "thief_presence_window"); err != nil {
		return cfg, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("thief_log_level"))); err != nil {
		return cfg, fmt.Errorf("THIEF_LOG_LEVEL: %w", err)
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreSQLite:
		if cfg.SQLitePath == "" {
			return cfg, fmt.Errorf("THIEF_SQLITE_PATH is required for the sqlite store")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return cfg, fmt.Errorf("THIEF_STORE %q: want memory, sqlite or postgres", cfg.Store)
	}
	if cfg.Store != StoreMemory && cfg.CatalogFile == "" && cfg.SoundsDir == "" {
		return cfg, fmt.Errorf("THIEF_CATALOG_FILE or THIEF_SOUNDS_DIR is required")
	}
	return cfg, nil
}

type CLIConfig struct {
	APIBaseURL string
}

// LoadCLI reads only what the command line client needs.
func LoadCLI() CLIConfig {
	v := viper.New()
	v.SetDefault("thief_api_base_url", "http://localhost:8080")
	v.AutomaticEnv()
	return CLIConfig{APIBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("thief_api_base_url")), "/")}
}

// RequireDiscord reports whether the bot credentials are present.
func (c Config) RequireDiscord() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	return nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToUpper(key), err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", strings.ToUpper(key))
	}
	return d, nil
}

// list accepts a YAML sequence or a comma separated string.
func list(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		out = append(out, strings.FieldsFunc(item, func(r rune) bool {
			return r == ',' || r == ' '
		})...)
	}
	return out
}
