// Package contracts holds the types shared between the dashboard API and
// its clients.
package contracts

import (
	"fmt"
	"runtime"
)

// Version of the dashboard. Build metadata is injected with
// -ldflags "-X salesdash/pkg/contracts.GitCommit=... -X salesdash/pkg/contracts.BuildTime=...".
const (
	Version    = "1.0.0"
	APIVersion = "v1"
)

var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is returned by /api/version
type VersionInfo struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
	BuildTime  string `json:"build_time"`
	GitCommit  string `json:"git_commit"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// GetVersionInfo returns the version and build metadata
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:    Version,
		APIVersion: APIVersion,
		BuildTime:  BuildTime,
		GitCommit:  GitCommit,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// GetVersionString returns "salesdash v<version>"
func GetVersionString() string {
	return fmt.Sprintf("salesdash v%s", Version)
}
