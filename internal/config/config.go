// Package config loads and validates pipeline configuration via Viper.
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
	Ingest  IngestConfig  `mapstructure:"ingest"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Logging LoggingConfig `mapstructure:"logging"`
	Feeds   []FeedConfig  `mapstructure:"feeds"`
}

// ServerConfig controls the metrics/health HTTP endpoint.
type ServerConfig struct {
	MetricsPort int `mapstructure:"metrics_port"`
}

// IngestConfig governs a single ingestion run.
type IngestConfig struct {
	EnrichBudget        int               `mapstructure:"enrich_budget"`
	FetchTimeoutSeconds int               `mapstructure:"fetch_timeout_seconds"`
	PolitenessDelayMs   int               `mapstructure:"politeness_delay_ms"`
	RetentionMax        int               `mapstructure:"retention_max"`
	UserAgent           string            `mapstructure:"user_agent"`
	Headers             map[string]string `mapstructure:"headers"`
}

// DBConfig controls access to the article store. An empty DSN selects the
// in-memory store for development runs.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MinOpenConns int    `mapstructure:"min_open_conns"`
}

// PubSubConfig holds metadata for run-summary notifications. Publishing is
// disabled when either field is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// FeedConfig names one syndication source.
type FeedConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWSFEED")
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
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("ingest.enrich_budget", 20)
	v.SetDefault("ingest.fetch_timeout_seconds", 10)
	v.SetDefault("ingest.politeness_delay_ms", 500)
	v.SetDefault("ingest.retention_max", 100)
	v.SetDefault("ingest.user_agent", "propertyhub-newsfeed/1.0")
	v.SetDefault("db.table", "articles")
	v.SetDefault("db.max_open_conns", 4)
	v.SetDefault("db.min_open_conns", 1)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.MetricsPort <= 0 {
		return fmt.Errorf("server.metrics_port must be > 0")
	}
	if c.Ingest.EnrichBudget < 0 {
		return fmt.Errorf("ingest.enrich_budget must be >= 0")
	}
	if c.Ingest.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("ingest.fetch_timeout_seconds must be > 0")
	}
	if c.Ingest.PolitenessDelayMs < 0 {
		return fmt.Errorf("ingest.politeness_delay_ms must be >= 0")
	}
	if c.Ingest.RetentionMax <= 0 {
		return fmt.Errorf("ingest.retention_max must be > 0")
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed source is required")
	}
	for i, feed := range c.Feeds {
		if feed.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
	}
	return nil
}

// FetchTimeout converts the configured per-fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Ingest.FetchTimeoutSeconds) * time.Second
}

// PolitenessDelay converts the configured inter-fetch delay into a duration.
func (c Config) PolitenessDelay() time.Duration {
	return time.Duration(c.Ingest.PolitenessDelayMs) * time.Millisecond
}
