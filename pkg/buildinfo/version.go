// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/matzehuels/stackbuild/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/matzehuels/stackbuild/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/matzehuels/stackbuild/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/stackbuild-rust
package buildinfo

import "fmt"

// ProtocolVersion is the version of the frontend/backend protocol spoken by
// every backend binary. Clients with a different major version are rejected
// during initialize.
const ProtocolVersion = "v1.0.0"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	// Set via ldflags: -X github.com/matzehuels/stackbuild/pkg/buildinfo.Version=...
	Version = "dev"

	// Commit is the git commit SHA.
	// Set via ldflags: -X github.com/matzehuels/stackbuild/pkg/buildinfo.Commit=...
	Commit = "none"

	// Date is the build timestamp.
	// Set via ldflags: -X github.com/matzehuels/stackbuild/pkg/buildinfo.Date=...
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\nprotocol: %s\ncommit: %s\nbuilt: %s", Version, ProtocolVersion, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\nprotocol: %s\ncommit: %s\nbuilt: %s\n", Version, ProtocolVersion, Commit, Date)
}
