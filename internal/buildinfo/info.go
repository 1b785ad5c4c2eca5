// Package buildinfo carries the version stamped into the grandlivre binary.
package buildinfo

// Set with -ldflags "-X github.com/cleared-dev/grandlivre/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
