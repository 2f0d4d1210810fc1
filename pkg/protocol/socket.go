package protocol

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// SessionFactory creates the session for a new connection.
type SessionFactory func() *Session

// SocketServer serves sessions on a Unix socket, one per connection.
type SocketServer struct {
	socketPath string
	sessions   SessionFactory
	logger     *log.Logger

	// active tracks connections for graceful shutdown.
	active sync.WaitGroup
}

// NewSocketServer creates a server that will listen on socketPath.
func NewSocketServer(socketPath string, sessions SessionFactory, logger *log.Logger) *SocketServer {
	if logger == nil {
		logger = log.Default()
	}
	return &SocketServer{socketPath: socketPath, sessions: sessions, logger: logger}
}

// Serve accepts connections until ctx is cancelled, then waits for open
// sessions to end. A stale socket file is replaced; the socket file is
// removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	return s.serve(ctx, listener)
}

func (s *SocketServer) serve(ctx context.Context, listener net.Listener) error {
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("listening", "socket", s.socketPath)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "err", err)
			continue
		}

		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.active.Wait()
	return nil
}

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Closing the connection unblocks the stream reader on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := s.sessions()
	s.logger.Debug("connection opened", "session", sess.ID)
	if err := ServeStream(ctx, conn, conn, sess, s.logger); err != nil {
		s.logger.Warn("session ended", "session", sess.ID, "err", err)
		return
	}
	s.logger.Debug("connection closed", "session", sess.ID)
}
