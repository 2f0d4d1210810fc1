package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

// maxBodySize bounds a single JSON request body.
const maxBodySize = 1 << 20

// HTTPRequest is the JSON body of POST /sessions/{id}/rpc.
type HTTPRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CapabilitiesResponse is the body of GET /capabilities.
type CapabilitiesResponse struct {
	Backend         string               `json:"backend"`
	Version         string               `json:"version"`
	ProtocolVersion string               `json:"protocol_version"`
	Capabilities    backend.Capabilities `json:"capabilities"`
}

// HTTPServer serves sessions over HTTP:
//
//	POST   /sessions             create a session
//	POST   /sessions/{id}/rpc    deliver one request
//	POST   /sessions/{id}/cancel cancel the running request
//	DELETE /sessions/{id}        close the session
//	GET    /capabilities         describe the backend
type HTTPServer struct {
	info     backend.Info
	sessions SessionFactory
	logger   *log.Logger

	mu   sync.Mutex
	open map[string]*Session
}

// NewHTTPServer creates a server. Sessions created by factory get their ID
// replaced with a fresh UUID.
func NewHTTPServer(info backend.Info, factory SessionFactory, logger *log.Logger) *HTTPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPServer{info: info, sessions: factory, logger: logger, open: map[string]*Session{}}
}

// Handler returns the routes.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/capabilities", s.handleCapabilities)
	r.Post("/sessions", s.handleCreate)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Post("/rpc", s.handleRPC)
		r.Post("/cancel", s.handleCancel)
		r.Delete("/", s.handleDelete)
	})
	return r
}

// ListenAndServe serves on 127.0.0.1:port until ctx is cancelled.
func (s *HTTPServer) ListenAndServe(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then closes every session.
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) handleCapabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CapabilitiesResponse{
		Backend:         s.info.Name,
		Version:         s.info.Version,
		ProtocolVersion: buildinfo.ProtocolVersion,
		Capabilities:    s.info.Capabilities,
	})
}

func (s *HTTPServer) handleCreate(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions()
	sess.ID = uuid.NewString()
	sess.logger = sess.logger.With("session", sess.ID)

	s.mu.Lock()
	s.open[sess.ID] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID})
}

func (s *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req HTTPRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		perr := errors.Wrap(errors.ErrCodeProtocol, err, "undecodable request")
		s.drop(sess)
		writeJSON(w, http.StatusBadRequest, respond(0, nil, perr))
		return
	}

	// The request context ends when the client disconnects, which cancels
	// the running request.
	result, err := sess.Handle(r.Context(), req.Method, jsonParams(req.Params))
	if err != nil && errors.TerminatesSession(err) {
		s.drop(sess)
	}
	writeJSON(w, http.StatusOK, respond(req.ID, result, err))
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CancelResult{Cancelled: sess.Cancel()})
}

func (s *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.drop(sess)
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sess, ok := s.open[id]
	s.mu.Unlock()
	if !ok {
		err := errors.New(errors.ErrCodeProtocol, "unknown session %q", id)
		writeJSON(w, http.StatusNotFound, respond(0, nil, err))
	}
	return sess, ok
}

func (s *HTTPServer) drop(sess *Session) {
	s.mu.Lock()
	delete(s.open, sess.ID)
	s.mu.Unlock()
}

func (s *HTTPServer) closeAll() {
	s.mu.Lock()
	open := s.open
	s.open = map[string]*Session{}
	s.mu.Unlock()
	for _, sess := range open {
		sess.Close()
	}
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http", "method", r.Method, "path", r.URL.Path, "status", ww.Status(),
			"took", time.Since(start).Round(time.Millisecond))
	})
}

func jsonParams(raw json.RawMessage) DecodeFunc {
	return func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		return json.Unmarshal(raw, v)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
