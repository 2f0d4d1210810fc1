// Package debugdir writes per-request debug artifacts.
//
// When a project sets the debug-dir field, each request leaves behind the
// configuration it resolved, the fingerprint it computed and, for builds,
// the script it ran. The files are for humans; nothing reads them back.
package debugdir

import (
	"context"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
)

// Artifact file names.
const (
	ResolvedConfigFile = "resolved-config.yaml"
	FingerprintFile    = "fingerprint.txt"
	InputFilesFile     = "input-files.txt"
	BuildScriptFile    = "build-script.txt"
)

// Record is what one request leaves behind.
type Record struct {
	Method      string
	Config      *config.Resolved
	Fingerprint *fingerprint.Result
	Script      []backend.Command // nil for metadata requests
}

// Sink receives debug records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// New returns a sink writing into dir, or a null sink when dir is empty.
func New(dir string) Sink {
	if dir == "" {
		return NullSink{}
	}
	return &DirSink{dir: dir}
}

// NullSink discards every record.
type NullSink struct{}

// Write does nothing.
func (NullSink) Write(context.Context, Record) error { return nil }

var _ Sink = NullSink{}
