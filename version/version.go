// Package version exposes build information. Values are set at link time with -ldflags -X.
package version

//nolint:gochecknoglobals // set by the linker
var (
	name    = "photic"
	version = "dev"
	commit  = "unknown"
)

// Name is the binary name.
func Name() string {
	return name
}

// Version is the release version, or "dev".
func Version() string {
	return version
}

// Commit is the git commit the binary was built from.
func Commit() string {
	return commit
}
