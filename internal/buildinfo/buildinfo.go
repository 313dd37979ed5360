// Package buildinfo reports version data stamped in at link time:
//
//	go build -ldflags "-X github.com/partfinder/partfinder/internal/buildinfo.Version=v1.2.0 \
//	  -X github.com/partfinder/partfinder/internal/buildinfo.Date=2026-01-01 \
//	  -X github.com/partfinder/partfinder/internal/buildinfo.Commit=abc123"
package buildinfo

import (
	"fmt"
	"io"
)

var (
	Version = ""
	Date    = ""
	Commit  = ""
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// PrintBuildData writes the version, build date and commit to w, one per line.
func PrintBuildData(w io.Writer) {
	fmt.Fprintf(w, "Build version: %s\n", orNA(Version))
	fmt.Fprintf(w, "Build date: %s\n", orNA(Date))
	fmt.Fprintf(w, "Build commit: %s\n", orNA(Commit))
}
