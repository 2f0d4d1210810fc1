// Package protocol serves the frontend/backend protocol.
//
// A [Session] is one conversation with a frontend. It starts uninitialized
// and accepts only initialize; after a compatible version handshake it
// serves get_metadata and build. Requests of one session run one at a time
// in arrival order while separate sessions run concurrently.
//
// A protocol error (wrong state, unknown method, undecodable request,
// incompatible version) closes the session. Any other error fails only the
// request that caused it.
//
// Three transports carry sessions: a CBOR stream (stdio), a Unix socket with
// one session per connection, and HTTP with JSON bodies.
package protocol

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
)

// State is the position of a session in its lifecycle.
type State int

const (
	Uninitialized State = iota
	Negotiated
	Serving
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Negotiated:
		return "negotiated"
	case Serving:
		return "serving"
	default:
		return "closed"
	}
}

// DecodeFunc decodes a request's params into v.
type DecodeFunc func(v any) error

// Session is the server side of one conversation.
type Session struct {
	ID string

	runner *pipeline.Runner
	logger *log.Logger

	// mu serializes requests.
	mu           sync.Mutex
	state        State
	capabilities backend.Capabilities

	// inflight cancels the running request; guarded by cancelMu, never mu,
	// so cancel is served while a request holds mu.
	cancelMu sync.Mutex
	inflight context.CancelFunc
}

// NewSession returns an uninitialized session.
func NewSession(id string, runner *pipeline.Runner, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{ID: id, runner: runner, logger: logger.With("session", id)}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Closed reports whether the session has ended. It blocks while a request
// is running.
func (s *Session) Closed() bool {
	return s.State() == Closed
}

// Close ends the session and cancels the running request, if any.
func (s *Session) Close() {
	s.Cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Closed
}

// Cancel cancels the running request. It reports whether there was one.
func (s *Session) Cancel() bool {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.inflight == nil {
		return false
	}
	s.inflight()
	s.inflight = nil
	return true
}

// Handle serves one request. Cancel requests are answered immediately; all
// other methods wait for the previous request of the session to finish.
func (s *Session) Handle(ctx context.Context, method string, params DecodeFunc) (any, error) {
	if method == MethodCancel {
		return CancelResult{Cancelled: s.Cancel()}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelMu.Lock()
	s.inflight = cancel
	s.cancelMu.Unlock()
	defer func() {
		s.cancelMu.Lock()
		s.inflight = nil
		s.cancelMu.Unlock()
	}()

	observability.Request().OnRequestStart(ctx, s.ID, method)
	start := time.Now()
	result, err := s.dispatch(ctx, method, params)
	observability.Request().OnRequestComplete(ctx, s.ID, method, time.Since(start), err)

	if err != nil {
		if errors.TerminatesSession(err) {
			s.logger.Error("closing session", "method", method, "err", err)
			s.state = Closed
		} else {
			s.logger.Warn("request failed", "method", method, "err", err)
		}
		return nil, err
	}
	return result, nil
}

// dispatch runs method; s.mu is held.
func (s *Session) dispatch(ctx context.Context, method string, params DecodeFunc) (any, error) {
	switch s.state {
	case Closed:
		return nil, errors.New(errors.ErrCodeProtocol, "session is closed")
	case Uninitialized:
		if method != MethodInitialize {
			return nil, s.wrongState(method)
		}
		return s.initialize(params)
	}

	switch method {
	case MethodGetMetadata:
		var req pipeline.MetadataRequest
		if err := decode(params, &req); err != nil {
			return nil, err
		}
		s.state = Serving
		return s.runner.Metadata(ctx, req)
	case MethodBuild:
		var req pipeline.BuildRequest
		if err := decode(params, &req); err != nil {
			return nil, err
		}
		s.state = Serving
		if req.Editable && !s.capabilities.Editable {
			return nil, errors.New(errors.ErrCodeConfig, "editable builds were not negotiated").WithField("editable")
		}
		return s.runner.Build(ctx, req)
	case MethodInitialize:
		return nil, s.wrongState(method)
	default:
		return nil, errors.New(errors.ErrCodeProtocol, "unknown method %q", method)
	}
}

func (s *Session) wrongState(method string) error {
	return errors.New(errors.ErrCodeProtocol, "%s is not allowed in state %s", method, s.state)
}

func (s *Session) initialize(params DecodeFunc) (any, error) {
	var p InitializeParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	if err := compatible(p.ClientVersion); err != nil {
		return nil, err
	}

	info := s.runner.Adapter.Info()
	s.capabilities = info.Capabilities
	if p.Capabilities != (backend.Capabilities{}) {
		s.capabilities = info.Capabilities.Intersect(p.Capabilities)
	}
	s.state = Negotiated
	s.logger.Info("session negotiated", "client", p.ClientVersion, "backend", info.Name)

	return InitializeResult{
		ServerVersion:  buildinfo.ProtocolVersion,
		Backend:        info.Name,
		BackendVersion: info.Version,
		Capabilities:   s.capabilities,
	}, nil
}

// compatible accepts client versions with the server's major version. The
// leading "v" is optional.
func compatible(client string) error {
	v := client
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return errors.New(errors.ErrCodeProtocol, "invalid client version %q", client)
	}
	if semver.Major(v) != semver.Major(buildinfo.ProtocolVersion) {
		return errors.New(errors.ErrCodeProtocol, "client protocol %s is incompatible with server protocol %s",
			client, buildinfo.ProtocolVersion)
	}
	return nil
}

func decode(params DecodeFunc, v any) error {
	if params == nil {
		return nil
	}
	if err := params(v); err != nil {
		return errors.Wrap(errors.ErrCodeProtocol, err, "undecodable params")
	}
	return nil
}
