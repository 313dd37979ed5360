package config

import (
	"flag"
	"os"
	"time"

	"github.com/partfinder/partfinder/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   backend base URL
//	-s string   storage backend (sqlite, file, memory)
//	-p string   storage path
//	-m int      safety margin (milliseconds)
//	-t int      request timeout (seconds)
//	-r int      refresh retries on an unreachable backend
//	-l string   log level
//
// Only these flags are taken from os.Args; see flagx.FilterArgs.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], "a", "s", "p", "m", "t", "r", "l")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "backend base URL")
	fs.StringVar(&cfg.StorageBackend, "s", cfg.StorageBackend, "storage backend: sqlite, file or memory")
	fs.StringVar(&cfg.StoragePath, "p", cfg.StoragePath, "storage path (database file or directory)")
	margin := fs.Int64("m", cfg.SafetyMargin.Milliseconds(), "token safety margin (in milliseconds)")
	timeout := fs.Int64("t", int64(cfg.RequestTimeout/time.Second), "request timeout (in seconds)")
	fs.Uint64Var(&cfg.RefreshRetries, "r", cfg.RefreshRetries, "refresh retries when the backend is unreachable")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SafetyMargin = time.Duration(*margin) * time.Millisecond
	cfg.RequestTimeout = time.Duration(*timeout) * time.Second
}
