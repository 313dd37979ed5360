package config

import (
	"encoding/json"
	"os"

	"github.com/partfinder/partfinder/internal/flagx"
	"github.com/partfinder/partfinder/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations may
// be strings like "5s" or integer nanoseconds. Absent fields keep the value
// they had before parsing.
type JsonConfig struct {
	APIBaseURL     *string         `json:"api_base_url"`
	StorageBackend *string         `json:"storage_backend"`
	StoragePath    *string         `json:"storage_path"`
	SafetyMargin   *timex.Duration `json:"safety_margin"`
	RequestTimeout *timex.Duration `json:"request_timeout"`
	RefreshRetries *uint64         `json:"refresh_retries"`
	RetryBackoff   *timex.Duration `json:"retry_backoff"`
	LogLevel       *string         `json:"log_level"`
}

// parseJson overlays cfg with the JSON file named by -c/-config or
// PARTFINDER_CONFIG. It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != nil {
		cfg.APIBaseURL = *jc.APIBaseURL
	}
	if jc.StorageBackend != nil {
		cfg.StorageBackend = *jc.StorageBackend
	}
	if jc.StoragePath != nil {
		cfg.StoragePath = *jc.StoragePath
	}
	if jc.SafetyMargin != nil {
		cfg.SafetyMargin = jc.SafetyMargin.Duration
	}
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.RefreshRetries != nil {
		cfg.RefreshRetries = *jc.RefreshRetries
	}
	if jc.RetryBackoff != nil {
		cfg.RetryBackoff = jc.RetryBackoff.Duration
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
}
