// Package version carries the build metadata stamped in by ldflags, e.g.
// go build -ldflags "-X git.home.luguber.info/inful/bookversions/internal/version.Version=v1.0.0".
package version

import "fmt"

var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// BuildInfo is the build metadata as reported by the API.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Info returns the build metadata.
func Info() BuildInfo {
	return BuildInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// String renders the build metadata for --version.
func String() string {
	if GitCommit == "unknown" && BuildTime == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
