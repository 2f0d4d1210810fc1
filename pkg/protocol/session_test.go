package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/platform"
)

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := codec.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func initialize(t *testing.T, s *Session) InitializeResult {
	t.Helper()
	res, err := s.Handle(context.Background(), MethodInitialize, params(t, InitializeParams{ClientVersion: buildinfo.ProtocolVersion}))
	if err != nil {
		t.Fatalf("initialize error = %v", err)
	}
	return res.(InitializeResult)
}

func TestSessionLifecycle(t *testing.T) {
	dir := writeProject(t)
	s := newTestSession(okExecutor{})
	if s.State() != Uninitialized {
		t.Fatalf("State = %s", s.State())
	}

	res := initialize(t, s)
	if res.ServerVersion != buildinfo.ProtocolVersion || res.Backend != "stackbuild-text" {
		t.Errorf("initialize result = %+v", res)
	}
	if s.State() != Negotiated {
		t.Fatalf("State = %s, want negotiated", s.State())
	}

	out, err := s.Handle(context.Background(), MethodGetMetadata, params(t, pipeline.MetadataRequest{
		ManifestPath: dir,
		Platform:     platform.Linux64,
	}))
	if err != nil {
		t.Fatalf("get_metadata error = %v", err)
	}
	if md := out.(*pipeline.MetadataResult).Metadata; md.Name != "hello" {
		t.Errorf("Metadata = %+v", md)
	}
	if s.State() != Serving {
		t.Errorf("State = %s, want serving", s.State())
	}

	out, err = s.Handle(context.Background(), MethodBuild, params(t, pipeline.BuildRequest{
		ManifestPath: dir,
		Platform:     platform.Linux64,
		Prefix:       backend.Prefix{Install: t.TempDir()},
	}))
	if err != nil {
		t.Fatalf("build error = %v", err)
	}
	if got := out.(*pipeline.BuildResult).CapturedOutput; got != "ok\n" {
		t.Errorf("CapturedOutput = %q", got)
	}
}

func TestProtocolErrorsCloseSession(t *testing.T) {
	tests := []struct {
		name  string
		setup bool // initialize first
		call  string
		args  any
	}{
		{"call before initialize", false, MethodGetMetadata, pipeline.MetadataRequest{ManifestPath: "x"}},
		{"initialize twice", true, MethodInitialize, InitializeParams{ClientVersion: "v1.0.0"}},
		{"unknown method", true, "compile", nil},
		{"incompatible major", false, MethodInitialize, InitializeParams{ClientVersion: "v2.0.0"}},
		{"invalid version", false, MethodInitialize, InitializeParams{ClientVersion: "latest"}},
		{"undecodable params", true, MethodBuild, "not a struct"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(okExecutor{})
			if tt.setup {
				initialize(t, s)
			}
			_, err := s.Handle(context.Background(), tt.call, params(t, tt.args))
			if !errors.Is(err, errors.ErrCodeProtocol) {
				t.Fatalf("error = %v, want PROTOCOL_ERROR", err)
			}
			if !s.Closed() {
				t.Fatal("session should be closed")
			}
			if _, err := s.Handle(context.Background(), MethodInitialize, params(t, InitializeParams{ClientVersion: "v1.0.0"})); !errors.Is(err, errors.ErrCodeProtocol) {
				t.Errorf("closed session accepted a request: %v", err)
			}
		})
	}
}

func TestInitializeAcceptsMinorVersions(t *testing.T) {
	for _, v := range []string{"1.0.0", "v1.7.2", "v1"} {
		if err := compatible(v); err != nil {
			t.Errorf("compatible(%q) = %v", v, err)
		}
	}
}

func TestRequestErrorKeepsSession(t *testing.T) {
	s := newTestSession(okExecutor{})
	initialize(t, s)

	_, err := s.Handle(context.Background(), MethodGetMetadata, params(t, pipeline.MetadataRequest{
		ManifestPath: t.TempDir(), // no manifest inside
		Platform:     platform.Linux64,
	}))
	if err == nil || errors.TerminatesSession(err) {
		t.Fatalf("error = %v, want a request-level error", err)
	}
	if s.Closed() {
		t.Fatal("request error closed the session")
	}

	if _, err := s.Handle(context.Background(), MethodGetMetadata, params(t, pipeline.MetadataRequest{
		ManifestPath: writeProject(t),
		Platform:     platform.Linux64,
	})); err != nil {
		t.Errorf("follow-up request error = %v", err)
	}
}

func TestCancelInflightBuild(t *testing.T) {
	exec := &blockingExecutor{started: make(chan struct{})}
	s := newTestSession(exec)
	initialize(t, s)

	req := params(t, pipeline.BuildRequest{
		ManifestPath: writeProject(t),
		Platform:     platform.Linux64,
		Prefix:       backend.Prefix{Install: t.TempDir()},
	})
	done := make(chan error, 1)
	go func() {
		_, err := s.Handle(context.Background(), MethodBuild, req)
		done <- err
	}()

	select {
	case <-exec.started:
	case <-time.After(5 * time.Second):
		t.Fatal("build did not start")
	}

	res, err := s.Handle(context.Background(), MethodCancel, nil)
	if err != nil || !res.(CancelResult).Cancelled {
		t.Fatalf("cancel = %v, %v", res, err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, errors.ErrCodeCancelled) {
			t.Errorf("build error = %v, want CANCELLED", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("build not cancelled")
	}
	if s.Closed() {
		t.Error("cancellation closed the session")
	}
}

func TestCancelWithoutRequest(t *testing.T) {
	s := newTestSession(okExecutor{})
	res, err := s.Handle(context.Background(), MethodCancel, nil)
	if err != nil || res.(CancelResult).Cancelled {
		t.Errorf("cancel = %v, %v", res, err)
	}
}

func TestEditableNotNegotiated(t *testing.T) {
	s := newTestSession(okExecutor{})
	_, err := s.Handle(context.Background(), MethodInitialize, params(t, InitializeParams{
		ClientVersion: "v1.0.0",
		Capabilities:  backend.Capabilities{ProvidesBuild: true},
	}))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Handle(context.Background(), MethodBuild, params(t, pipeline.BuildRequest{
		ManifestPath: writeProject(t),
		Platform:     platform.Linux64,
		Prefix:       backend.Prefix{Install: t.TempDir()},
		Editable:     true,
	}))
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("error = %v, want CONFIG_ERROR", err)
	}
}
