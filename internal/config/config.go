package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultEnvFile = "configs/.env"
	// EnvPrefix namespaces environment overrides (READER_LANGUAGE, READER_LOG_LEVEL, ...).
	EnvPrefix = "reader"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName     string `mapstructure:"app_name"`
	Env         string `mapstructure:"app_env"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
	Language    string `mapstructure:"language"`
	SourcesFile string `mapstructure:"sources_file"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`

	HTTPTimeoutSeconds int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout        time.Duration `mapstructure:"-"`
	UserAgent          string        `mapstructure:"user_agent"`

	CursorTTLSeconds int64         `mapstructure:"cursor_ttl_seconds"`
	CursorTTL        time.Duration `mapstructure:"-"`
	ScrollThrottleMs int64         `mapstructure:"scroll_throttle_ms"`
	ScrollThrottle   time.Duration `mapstructure:"-"`
	LoadMoreBuffer   int           `mapstructure:"load_more_buffer"`
	PrefetchEvery    int           `mapstructure:"prefetch_every"`
}

// Load reads configuration from the default env file and environment variables.
func Load() (*Config, error) {
	return LoadEnv(DefaultEnvFile)
}

// LoadEnv reads configuration from envFile (if present) and environment variables.
func LoadEnv(envFile string) (*Config, error) {
	if strings.TrimSpace(envFile) != "" {
		_ = godotenv.Load(envFile)
	}

	v := viper.New()

	v.SetDefault("app_name", "samvad-news-reader")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("language", "telugu")
	v.SetDefault("sources_file", "")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", DefaultBBoltPath())
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("user_agent", "samvad-news-reader/1.0")
	v.SetDefault("cursor_ttl_seconds", int64((3*time.Hour)/time.Second))
	v.SetDefault("scroll_throttle_ms", 100)
	v.SetDefault("load_more_buffer", 500)
	v.SetDefault("prefetch_every", 7)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Language = strings.ToLower(strings.TrimSpace(cfg.Language))
	if cfg.Language == "" {
		return nil, fmt.Errorf("invalid language (must not be empty)")
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.CursorTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid cursor_ttl_seconds (must be positive seconds)")
	}
	cfg.CursorTTL = time.Duration(cfg.CursorTTLSeconds) * time.Second

	if cfg.ScrollThrottleMs < 0 {
		return nil, fmt.Errorf("invalid scroll_throttle_ms (must not be negative)")
	}
	cfg.ScrollThrottle = time.Duration(cfg.ScrollThrottleMs) * time.Millisecond

	if cfg.LoadMoreBuffer < 0 {
		return nil, fmt.Errorf("invalid load_more_buffer (must not be negative)")
	}
	if cfg.PrefetchEvery <= 0 {
		return nil, fmt.Errorf("invalid prefetch_every (must be positive)")
	}

	return &cfg, nil
}

// DefaultBBoltPath places the durable store under the user's XDG data directory.
func DefaultBBoltPath() string {
	return filepath.Join(xdg.DataHome, "samvad-news-reader", "reader.db")
}

// DefaultLogPath is used by the terminal UI when no log_file is configured.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "samvad-news-reader", "reader.log")
}
