// Package config loads runtime configuration for the Part Finder client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c/-config or PARTFINDER_CONFIG.
//  3. PARTFINDER_API_URL for the backend base URL.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   backend base URL
//	-s string   storage backend (sqlite, file, memory)
//	-p string   storage path
//	-m int      safety margin (milliseconds)
//	-t int      request timeout (seconds)
//	-r int      refresh retries
//	-l string   log level
//
// # JSON schema
//
// Durations use timex.Duration, so values are strings like "5s" or integer
// nanoseconds:
//
//	{
//	  "api_base_url": "https://api.partfinder.com",
//	  "storage_backend": "file",
//	  "storage_path": "/var/lib/partfinder",
//	  "safety_margin": "5s",
//	  "request_timeout": "30s",
//	  "refresh_retries": 2,
//	  "retry_backoff": "500ms",
//	  "log_level": "debug"
//	}
package config
