// Package version provides version information for browsercore.
// These variables are set via ldflags during the build process.
package version

import (
	"fmt"
	"runtime"
)

// Version is the current version of the binary.
// Set via -ldflags "-X github.com/browsercore/browsercore/pkg/version.Version=..."
var Version = "dev"

// BuildDate is the date when the binary was built.
var BuildDate = "unknown"

// GitCommit is the git commit hash used to build the binary.
var GitCommit = "unknown"

// String returns the version.
func String() string {
	return Version
}

// FullString returns a detailed version string including build info.
func FullString() string {
	if Version == "dev" {
		return fmt.Sprintf("browsercore development version (%s)", runtime.Version())
	}
	return fmt.Sprintf("browsercore %s (commit %s, built %s, %s)", Version, GitCommit, BuildDate, runtime.Version())
}

// Info returns all version information as a map.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildDate": BuildDate,
		"gitCommit": GitCommit,
		"goVersion": runtime.Version(),
	}
}
