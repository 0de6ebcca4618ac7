// Package version exposes build metadata injected through -ldflags:
//
//	go build -ldflags "-X github.com/HerbHall/larkwatch/internal/version.Version=v0.2.0"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the version string alone.
func Short() string {
	return Version
}

// Info returns a one-line human-readable build description.
func Info() string {
	return fmt.Sprintf("larkwatch %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

// Map returns build metadata as key/value pairs for JSON responses and logs.
func Map() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     Commit,
		"date":       Date,
		"go_version": runtime.Version(),
	}
}
