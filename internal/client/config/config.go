package config

import "time"

// Config holds runtime settings for the Part Finder client.
//
// Fields:
//   - APIBaseURL: base URL of the auth backend, scheme included.
//   - StorageBackend: "sqlite", "file" or "memory".
//   - StoragePath: SQLite database file or directory for the file backend.
//   - SafetyMargin: how long before expiry an access token is refreshed.
//   - RequestTimeout: per-request timeout of the backend client.
//   - RefreshRetries / RetryBackoff: retry policy for an unreachable backend
//     during refresh. Zero retries means fail on the first error.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	APIBaseURL     string
	StorageBackend string
	StoragePath    string
	SafetyMargin   time.Duration
	RequestTimeout time.Duration
	RefreshRetries uint64
	RetryBackoff   time.Duration
	LogLevel       string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.StorageBackend = "sqlite"
	c.StoragePath = "partfinder.db"
	c.SafetyMargin = 5 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.RefreshRetries = 0
	c.RetryBackoff = 500 * time.Millisecond
	c.LogLevel = "info"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), the environment and command-line flags. Later sources
// take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
