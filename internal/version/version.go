// Package version exposes build information injected at link time.
package version

//nolint:gochecknoglobals // These variables are overwritten by -ldflags during the build.
var (
	// Version is the semantic version of the application.
	Version = "0.1.0"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// BuildTime is the moment the binary was built.
	BuildTime = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Full returns the version together with the commit and build time.
func Full() string {
	return "version: " + Version + ", commit: " + Commit + ", built at: " + BuildTime
}
