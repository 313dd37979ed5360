// Package config handles configuration for the development auth backend,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the auth backend.
//
// Fields:
//   - ListenAddr: bind address of the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty keeps everything in memory.
//   - SecretKey: HMAC secret for signing JWTs (HS256). Do not use the default in prod.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - ResetCodeValidityDuration: lifetime of a password-reset code.
//   - SeedDemoUser: create demo@partfinder.com at startup.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	ListenAddr                   string
	DatabaseDSN                  string
	SecretKey                    string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	ResetCodeValidityDuration    time.Duration
	SeedDemoUser                 bool
	LogLevel                     string
}

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey is insecure and must be overridden outside development.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8000"
	c.DatabaseDSN = ""
	c.SecretKey = "secretKey"
	c.AccessTokenValidityDuration = 900 * time.Second
	c.RefreshTokenValidityDuration = 604800 * time.Second
	c.ResetCodeValidityDuration = 10 * time.Minute
	c.SeedDemoUser = true
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
