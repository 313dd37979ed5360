package config

import (
	"os"
	"strings"
)

// APIURLEnvVar overrides the backend base URL from the environment.
const APIURLEnvVar = "PARTFINDER_API_URL"

func parseEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(APIURLEnvVar)); v != "" {
		cfg.APIBaseURL = v
	}
}
