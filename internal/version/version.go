// Package version carries build metadata stamped in at link time with
// -ldflags "-X github.com/inkworks/plotbot/internal/version.Version=...".
package version

var (
	// Version is the release version, "dev" for unstamped builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
)
