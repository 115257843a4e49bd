// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Index backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Schema      SchemaConfig      `mapstructure:"schema"`
	Index       IndexConfig       `mapstructure:"index"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	PostProcess PostProcessConfig `mapstructure:"postprocess"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// SchemaConfig locates the field selection file.
type SchemaConfig struct {
	File string `mapstructure:"file"`
	Lazy bool   `mapstructure:"lazy"`
}

// IndexConfig selects and tunes the edge index.
type IndexConfig struct {
	Backend                string `mapstructure:"backend"`
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// CrawlerConfig governs dispatcher and crawl pipeline behavior.
type CrawlerConfig struct {
	Concurrency    int      `mapstructure:"concurrency"`
	QueueDepth     int      `mapstructure:"queue_depth"`
	UserAgent      string   `mapstructure:"user_agent"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	IgnoreRobots   bool     `mapstructure:"ignore_robots"`
	Collections    []string `mapstructure:"collections"`
	RateRPS        float64  `mapstructure:"rate_rps"`
	RateBurst      int      `mapstructure:"rate_burst"`
	BlockedHosts   []string `mapstructure:"blocked_hosts"`
}

// PostProcessConfig tunes the reconciliation pass.
type PostProcessConfig struct {
	PageSize        int `mapstructure:"page_size"`
	MaxResults      int `mapstructure:"max_results"`
	Buffer          int `mapstructure:"buffer"`
	TimeoutSeconds  int `mapstructure:"timeout_seconds"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
	MaxClickDepth   int `mapstructure:"max_click_depth"`
}

// PubSubConfig holds metadata for the URL fan-out topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment. Environment variables use the
// WEBGRAPH prefix, e.g. WEBGRAPH_INDEX_DSN.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBGRAPH")
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
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("schema.file", "")
	v.SetDefault("schema.lazy", false)
	v.SetDefault("index.backend", BackendMemory)
	v.SetDefault("index.dsn", "")
	v.SetDefault("index.table", "webgraph_edges")
	v.SetDefault("index.max_conns", 0)
	v.SetDefault("index.min_conns", 0)
	v.SetDefault("index.max_conn_lifetime_seconds", 0)
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.queue_depth", 64)
	v.SetDefault("crawler.user_agent", "webgraph-bot/0.1")
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.collections", []string{"user"})
	v.SetDefault("crawler.rate_rps", 1.0)
	v.SetDefault("crawler.rate_burst", 1)
	v.SetDefault("crawler.blocked_hosts", []string{})
	v.SetDefault("postprocess.page_size", 1000)
	v.SetDefault("postprocess.max_results", 100000)
	v.SetDefault("postprocess.buffer", 50)
	v.SetDefault("postprocess.timeout_seconds", 60)
	v.SetDefault("postprocess.interval_seconds", 0)
	v.SetDefault("postprocess.max_click_depth", 6)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Index.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Index.DSN == "" {
			return fmt.Errorf("index.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendMemory, BackendPostgres, c.Index.Backend)
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueDepth <= 0 {
		return fmt.Errorf("crawler.queue_depth must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.PostProcess.PageSize <= 0 {
		return fmt.Errorf("postprocess.page_size must be > 0")
	}
	if c.PostProcess.MaxResults < c.PostProcess.PageSize {
		return fmt.Errorf("postprocess.max_results must be >= postprocess.page_size")
	}
	if c.PostProcess.TimeoutSeconds <= 0 {
		return fmt.Errorf("postprocess.timeout_seconds must be > 0")
	}
	if c.PostProcess.IntervalSeconds < 0 {
		return fmt.Errorf("postprocess.interval_seconds must be >= 0")
	}
	if c.PostProcess.MaxClickDepth <= 0 {
		return fmt.Errorf("postprocess.max_click_depth must be > 0")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic must be set when pubsub.project_id is set")
	}
	return nil
}

// FetchTimeout is the per-page HTTP budget.
func (c CrawlerConfig) FetchTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout bounds one reconciliation stream.
func (c PostProcessConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval is the pause between scheduled passes; zero disables scheduling.
func (c PostProcessConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// RequestTimeout bounds one API request.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ConnLifetime is the maximum lifetime of a pooled Postgres connection.
func (c IndexConfig) ConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeSeconds) * time.Second
}
