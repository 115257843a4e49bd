package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, BackendMemory, cfg.Index.Backend)
	require.Equal(t, "webgraph_edges", cfg.Index.Table)
	require.Equal(t, []string{"user"}, cfg.Crawler.Collections)
	require.Equal(t, 1000, cfg.PostProcess.PageSize)
	require.Equal(t, 100000, cfg.PostProcess.MaxResults)
	require.Equal(t, 50, cfg.PostProcess.Buffer)
	require.Equal(t, time.Minute, cfg.PostProcess.Timeout())
	require.Zero(t, cfg.PostProcess.Interval())
	require.Equal(t, 6, cfg.PostProcess.MaxClickDepth)
	require.Equal(t, 15*time.Second, cfg.Crawler.FetchTimeout())
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
logging:
  development: false
  level: warn
schema:
  file: /etc/webgraph/schema.properties
  lazy: true
index:
  backend: postgres
  dsn: postgres://localhost/webgraph
  table: edges
  max_conns: 8
  max_conn_lifetime_seconds: 300
crawler:
  concurrency: 6
  queue_depth: 128
  user_agent: graph-agent
  ignore_robots: true
  collections: [news, blogs]
  blocked_hosts: ["*.invalid"]
postprocess:
  page_size: 10
  max_results: 20
  interval_seconds: 30
pubsub:
  project_id: proj
  topic: webgraph-urls
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.True(t, cfg.Schema.Lazy)
	require.Equal(t, "/etc/webgraph/schema.properties", cfg.Schema.File)
	require.Equal(t, BackendPostgres, cfg.Index.Backend)
	require.Equal(t, int32(8), cfg.Index.MaxConns)
	require.Equal(t, 5*time.Minute, cfg.Index.ConnLifetime())
	require.Equal(t, []string{"news", "blogs"}, cfg.Crawler.Collections)
	require.Equal(t, []string{"*.invalid"}, cfg.Crawler.BlockedHosts)
	require.True(t, cfg.Crawler.IgnoreRobots)
	require.Equal(t, 30*time.Second, cfg.PostProcess.Interval())
	require.Equal(t, "webgraph-urls", cfg.PubSub.Topic)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WEBGRAPH_SERVER_PORT", "7070")
	t.Setenv("WEBGRAPH_POSTPROCESS_MAX_CLICK_DEPTH", "3")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, 3, cfg.PostProcess.MaxClickDepth)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"auth missing api key", func(c *Config) { c.Auth.Enabled = true }, "auth.api_key"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "solr" }, "index.backend"},
		{"postgres without dsn", func(c *Config) { c.Index.Backend = BackendPostgres }, "index.dsn"},
		{"invalid concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"invalid queue depth", func(c *Config) { c.Crawler.QueueDepth = 0 }, "crawler.queue_depth"},
		{"invalid fetch timeout", func(c *Config) { c.Crawler.TimeoutSeconds = 0 }, "crawler.timeout_seconds"},
		{"invalid page size", func(c *Config) { c.PostProcess.PageSize = 0 }, "postprocess.page_size"},
		{"result cap below page", func(c *Config) { c.PostProcess.MaxResults = 1 }, "postprocess.max_results"},
		{"invalid timeout", func(c *Config) { c.PostProcess.TimeoutSeconds = 0 }, "postprocess.timeout_seconds"},
		{"negative interval", func(c *Config) { c.PostProcess.IntervalSeconds = -1 }, "postprocess.interval_seconds"},
		{"invalid depth", func(c *Config) { c.PostProcess.MaxClickDepth = 0 }, "postprocess.max_click_depth"},
		{"pubsub without topic", func(c *Config) { c.PubSub.ProjectID = "proj" }, "pubsub.topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
