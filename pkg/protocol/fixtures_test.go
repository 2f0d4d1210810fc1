package protocol

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/config"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/executor"
	"github.com/matzehuels/stackbuild/pkg/fingerprint"
	"github.com/matzehuels/stackbuild/pkg/manifest"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// textAdapter builds projects made of .txt files.
type textAdapter struct{}

func (textAdapter) Info() backend.Info {
	return backend.Info{
		Name:         "stackbuild-text",
		Version:      "test",
		Capabilities: backend.DefaultCapabilities(),
		Schema:       config.CommonFields(),
	}
}

func (textAdapter) DefaultInputGlobs(*config.Resolved) fingerprint.GlobSet {
	return fingerprint.GlobSet{Defaults: []string{"**/*.txt"}}
}

func (textAdapter) ExtractMetadata(m *manifest.Manifest, cfg *config.Resolved) (*backend.PackageMetadata, error) {
	md := backend.FromManifest(m, cfg)
	return md, md.Validate()
}

func (textAdapter) BuildScript(in backend.BuildInput) ([]backend.Command, error) {
	return []backend.Command{{Name: "cp", Args: []string{"a.txt", in.Prefix.Install}, Dir: in.WorkDir}}, nil
}

// blockingExecutor runs until its context is cancelled.
type blockingExecutor struct {
	started chan struct{}
}

func (b *blockingExecutor) Run(ctx context.Context, _ []backend.Command) (*executor.Result, error) {
	close(b.started)
	<-ctx.Done()
	return nil, errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "build cancelled")
}

// okExecutor succeeds without running anything.
type okExecutor struct{}

func (okExecutor) Run(context.Context, []backend.Command) (*executor.Result, error) {
	return &executor.Result{Output: []byte("ok\n")}, nil
}

const textManifest = `
[package]
name = "hello"
version = "1.0.0"
`

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"stackbuild.toml": textManifest, "a.txt": "hello"}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func newTestRunner(exec executor.Runner) *pipeline.Runner {
	return pipeline.NewRunner(textAdapter{}, variant.DefaultTable(), exec, quietLogger())
}

func newTestSession(exec executor.Runner) *Session {
	return NewSession("test", newTestRunner(exec), quietLogger())
}

// params returns a DecodeFunc that copies v into the target through a
// CBOR round trip, like a decoded wire request.
func params(t *testing.T, v any) DecodeFunc {
	t.Helper()
	return cborParams(mustMarshal(t, v))
}
