package version

import "fmt"

// Set at build time with -ldflags "-X voteverse/internal/version.Version=...".
var (
	Version    = "devel"
	CommitHash = "none"
)

func GetVersionString() string {
	if CommitHash == "" || CommitHash == "none" {
		return Version
	}
	return fmt.Sprintf("%s (commit %s)", Version, CommitHash)
}
