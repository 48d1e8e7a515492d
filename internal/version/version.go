// Package version carries build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/emergent-company/emergent.graphcore/internal/version.Version=1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// VersionInfo is the build metadata as reported by /debug.
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

// Info returns the build metadata.
func Info() VersionInfo {
	return VersionInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}

// String renders "1.2.0 (abc1234)", or just the version for unknown commits.
func String() string {
	if GitCommit == "" || GitCommit == "unknown" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
