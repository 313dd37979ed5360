package config

import (
	"flag"
	"os"
	"time"

	"github.com/partfinder/partfinder/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-d string   PostgreSQL DSN; empty selects the in-memory store
//	-k string   JWT HMAC secret key
//	-e int      access token validity, seconds
//	-x int      refresh token validity, seconds
//	-l string   log level
//
// Duration flags are integers in seconds, matching the expires_in fields of
// the token response.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], "a", "d", "k", "e", "x", "l")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "k", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int64("e", int64(config.AccessTokenValidityDuration/time.Second), "access token validity (in seconds)")
	refreshTokenValidityDuration := fs.Int64("x", int64(config.RefreshTokenValidityDuration/time.Second), "refresh token validity (in seconds)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Second
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Second
}
