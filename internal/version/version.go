// Package version carries build identification, set at link time via
// -ldflags "-X github.com/skyward-data/groundtrack/internal/version.Version=...".
package version

var (
	// Version is the release version of the groundtrack binary.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)
