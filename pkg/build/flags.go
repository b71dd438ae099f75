// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for the colorizr binary. Metadata such as the application name, build
// timestamp, Git commit hash and semantic version are embedded at compile time
// using linker flags, for example:
//
//	go build -ldflags "-X colorizr/pkg/build.buildVersion=2.0.0 -X colorizr/pkg/build.buildCommit=$(git rev-parse HEAD)"
//
// Development builds without linker flags fall back to placeholder values.
package build

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	defaultName        = "colorizr"
	defaultDescription = "Real-time sound colorizer: spectral peak tracking into a resonant filter bank"
	devVersion         = "0.0.0-dev"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     devVersion,
	}
)

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. This must be called early in program startup.
// Missing values keep their development defaults; a version that is not a
// valid semantic version is an error.
func Initialize() error {
	if buildVersion != "" {
		v, err := semver.NewVersion(buildVersion)
		if err != nil {
			return fmt.Errorf("BuildVersion %q is not a semantic version: %w", buildVersion, err)
		}
		buildFlags.Version = v.String()
	}
	if buildName != "" {
		buildFlags.Name = buildName
	}
	if buildTime != "" {
		buildFlags.Time = buildTime
	}
	if buildCommit != "" {
		buildFlags.Commit = buildCommit
	}

	return nil
}

// GetBuildFlags returns the current build information. Initialize()
// must be called before this function to ensure the build information
// is valid. This function is safe to call after initialization.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// IsDevelopment reports whether the binary was built without a release version.
func IsDevelopment() bool {
	return buildFlags.Version == devVersion
}
