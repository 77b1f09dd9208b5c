// Package config loads repometa settings from defaults, an optional YAML
// file and REPOMETA_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backends accepted for cache.backend.
const (
	BackendFS     = "fs"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config holds all configuration for repometa.
type Config struct {
	Cache    CacheConfig       `mapstructure:"cache"`
	Fetch    FetchConfig       `mapstructure:"fetch"`
	HTTP     HTTPConfig        `mapstructure:"http"`
	Batch    BatchConfig       `mapstructure:"batch"`
	BaseURLs map[string]string `mapstructure:"base_urls"`
	Log      LogConfig         `mapstructure:"log"`
}

// CacheConfig holds cache sizing, freshness and durable storage settings.
type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	StaleWindow time.Duration `mapstructure:"stale_window"`
	MaxEntries  int           `mapstructure:"max_entries"`
	Backend     string        `mapstructure:"backend"` // "fs", "sqlite" or "none"
	Dir         string        `mapstructure:"dir"`
	Prefix      string        `mapstructure:"prefix"`
}

// FetchConfig holds retry settings.
type FetchConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Deadline    time.Duration `mapstructure:"deadline"`
}

// HTTPConfig holds settings for outgoing requests.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// BatchConfig holds batch pacing settings.
type BatchConfig struct {
	Size  int           `mapstructure:"size"`
	Delay time.Duration `mapstructure:"delay"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			TTL:         5 * time.Minute,
			StaleWindow: time.Minute,
			MaxEntries:  100,
			Backend:     BackendFS,
			Dir:         defaultCacheDir(),
			Prefix:      "repometa:",
		},
		Fetch: FetchConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Deadline:    30 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:   10 * time.Second,
			UserAgent: "repometa",
		},
		Batch: BatchConfig{
			Size:  5,
			Delay: 150 * time.Millisecond,
		},
		BaseURLs: map[string]string{
			"github": "",
			"gitlab": "",
			"gitea":  "",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Load reads configuration. When path is empty, repometa.yaml is looked up
// in the current directory and $HOME/.config/repometa and a missing file is
// not an error. Environment variables override both, e.g.
// REPOMETA_CACHE_TTL=10m or REPOMETA_BASE_URLS_GITEA=https://gitea.example.com/api/v1.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("repometa")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "repometa"))
		}
	}

	v.SetEnvPrefix("REPOMETA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendFS, BackendSQLite, BackendNone:
	default:
		return fmt.Errorf("cache.backend: unknown backend %q (want fs, sqlite or none)", c.Cache.Backend)
	}
	if c.Cache.Backend != BackendNone && c.Cache.Dir == "" {
		return errors.New("cache.dir: required for a durable backend")
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries: must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl: must be positive, got %s", c.Cache.TTL)
	}
	if c.Cache.StaleWindow < 0 || c.Cache.StaleWindow >= c.Cache.TTL {
		return fmt.Errorf("cache.stale_window: must be in [0, ttl), got %s", c.Cache.StaleWindow)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts: must be at least 1, got %d", c.Fetch.MaxAttempts)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format %q (want text or json)", c.Log.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.stale_window", d.Cache.StaleWindow)
	v.SetDefault("cache.max_entries", d.Cache.MaxEntries)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.prefix", d.Cache.Prefix)

	v.SetDefault("fetch.max_attempts", d.Fetch.MaxAttempts)
	v.SetDefault("fetch.base_delay", d.Fetch.BaseDelay)
	v.SetDefault("fetch.deadline", d.Fetch.Deadline)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("batch.size", d.Batch.Size)
	v.SetDefault("batch.delay", d.Batch.Delay)

	// Per-key defaults so REPOMETA_BASE_URLS_<PLATFORM> is picked up.
	for platform, url := range d.BaseURLs {
		v.SetDefault("base_urls."+platform, url)
	}

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "repometa")
	}
	return ".repometa-cache"
}
