// Package config loads and validates prospector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Fetcher FetcherConfig `mapstructure:"fetcher"`
	Pool    PoolConfig    `mapstructure:"pool"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Sink    SinkConfig    `mapstructure:"sink"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetcherConfig governs the keyword data API client and its throttle.
type FetcherConfig struct {
	BaseURL          string  `mapstructure:"base_url"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	UserAgent        string  `mapstructure:"user_agent"`
	PerCallMinMs     int     `mapstructure:"per_call_min_ms"`
	PerCallMaxMs     int     `mapstructure:"per_call_max_ms"`
	JitterFraction   float64 `mapstructure:"jitter_fraction"`
	WindowSize       int     `mapstructure:"window_size"`
	WindowPauseMinMs int     `mapstructure:"window_pause_min_ms"`
	WindowPauseMaxMs int     `mapstructure:"window_pause_max_ms"`
	MaxRPS           float64 `mapstructure:"max_rps"`
	Burst            int     `mapstructure:"burst"`
}

// PoolConfig sets frontier crawl defaults applied when a task omits them.
type PoolConfig struct {
	TargetSizeDefault int    `mapstructure:"target_size_default"`
	MinVolumeDefault  int    `mapstructure:"min_volume_default"`
	CountryDefault    string `mapstructure:"country_default"`
}

// CacheConfig controls the durable arbitrage cache.
type CacheConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	TTLDays  int    `mapstructure:"ttl_days"`
	MaxConns int    `mapstructure:"max_conns"`
}

// QueueConfig controls the durable task queue and the consumer loop.
type QueueConfig struct {
	DSN                 string `mapstructure:"dsn"`
	Table               string `mapstructure:"table"`
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"`
}

// SinkConfig points at the downstream delivery endpoint.
type SinkConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PubSubConfig holds metadata for task-completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ArchiveConfig selects the report artifact backend.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("fetcher.timeout_seconds", 15)
	v.SetDefault("fetcher.user_agent", "keyword-arbitrage-bot/0.1")
	v.SetDefault("fetcher.per_call_min_ms", 500)
	v.SetDefault("fetcher.per_call_max_ms", 1500)
	v.SetDefault("fetcher.jitter_fraction", 0.25)
	v.SetDefault("fetcher.window_size", 5)
	v.SetDefault("fetcher.window_pause_min_ms", 3000)
	v.SetDefault("fetcher.window_pause_max_ms", 5000)
	v.SetDefault("pool.target_size_default", 50)
	v.SetDefault("pool.min_volume_default", 0)
	v.SetDefault("pool.country_default", "us")
	v.SetDefault("cache.table", "arbitrage_cache")
	v.SetDefault("cache.ttl_days", 30)
	v.SetDefault("cache.max_conns", 4)
	v.SetDefault("queue.table", "prospect_tasks")
	v.SetDefault("queue.poll_interval_seconds", 5)
	v.SetDefault("sink.timeout_seconds", 30)
	v.SetDefault("archive.backend", "local")
	v.SetDefault("archive.local_dir", "reports")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetcher.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetcher.timeout_seconds must be > 0")
	}
	if c.Pool.TargetSizeDefault <= 0 {
		return fmt.Errorf("pool.target_size_default must be > 0")
	}
	if c.Cache.TTLDays <= 0 {
		return fmt.Errorf("cache.ttl_days must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Archive.Backend {
	case "local", "memory":
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of local, gcs, memory")
	}
	return nil
}

// FetchTimeout converts the fetcher timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetcher.TimeoutSeconds) * time.Second
}

// PollInterval converts the queue poll interval into a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Queue.PollIntervalSeconds) * time.Second
}
