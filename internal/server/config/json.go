package config

import (
	"encoding/json"
	"os"

	"github.com/partfinder/partfinder/internal/flagx"
	"github.com/partfinder/partfinder/internal/timex"
)

// JsonConfig is a DTO used only for reading JSON configuration files.
// Durations may be strings such as "15m" or integer nanoseconds. Absent
// fields keep their current value.
type JsonConfig struct {
	ListenAddr                   *string         `json:"listen_addr"`
	DatabaseDSN                  *string         `json:"database_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	ResetCodeValidityDuration    *timex.Duration `json:"reset_code_validity_duration"`
	SeedDemoUser                 *bool           `json:"seed_demo_user"`
	LogLevel                     *string         `json:"log_level"`
}

// parseJson overlays config with the JSON file named by -c/-config or
// PARTFINDER_CONFIG. It panics on read or unmarshal errors.
func parseJson(config *Config) {
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

	if jc.ListenAddr != nil {
		config.ListenAddr = *jc.ListenAddr
	}
	if jc.DatabaseDSN != nil {
		config.DatabaseDSN = *jc.DatabaseDSN
	}
	if jc.SecretKey != nil {
		config.SecretKey = *jc.SecretKey
	}
	if jc.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = jc.AccessTokenValidityDuration.Duration
	}
	if jc.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = jc.RefreshTokenValidityDuration.Duration
	}
	if jc.ResetCodeValidityDuration != nil {
		config.ResetCodeValidityDuration = jc.ResetCodeValidityDuration.Duration
	}
	if jc.SeedDemoUser != nil {
		config.SeedDemoUser = *jc.SeedDemoUser
	}
	if jc.LogLevel != nil {
		config.LogLevel = *jc.LogLevel
	}
}
