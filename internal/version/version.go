// Package version carries build metadata set with -ldflags, e.g.
//
//	-X github.com/banshee-data/mocap.bridge/internal/version.Version=1.2.0
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line form printed by -version.
func String() string {
	return fmt.Sprintf("mocap-bridge %s (%s, built %s)", Version, GitSHA, BuildTime)
}
