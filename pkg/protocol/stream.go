package protocol

import (
	"context"
	stderrors "errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/codec"
	"github.com/matzehuels/stackbuild/pkg/errors"
)

// ServeStream serves sess over a CBOR sequence: requests are read from r and
// responses written to w, one CBOR value each.
//
// Cancel requests are answered as soon as they are read, so a running build
// can be cancelled. When the peer disconnects the running request is
// cancelled, requests not yet started are dropped, and ServeStream returns
// nil after a clean EOF. Undecodable input and protocol errors are written
// back and then returned.
func ServeStream(ctx context.Context, r io.Reader, w io.Writer, sess *Session, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := &responseWriter{enc: codec.NewEncoder(w)}
	reqs := make(chan Request)
	readErr := make(chan error, 1)

	go func() {
		dec := codec.NewDecoder(r)
		for {
			var req Request
			if err := dec.Decode(&req); err != nil {
				// The peer is gone or talking nonsense; the running
				// request goes with the session.
				readErr <- err
				cancel()
				return
			}
			if req.Method == MethodCancel {
				result, _ := sess.Handle(ctx, MethodCancel, nil)
				if err := out.write(respond(req.ID, result, nil)); err != nil {
					logger.Debug("write cancel response", "err", err)
				}
				continue
			}
			select {
			case reqs <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case req := <-reqs:
			if ctx.Err() != nil {
				continue
			}
			result, err := sess.Handle(ctx, req.Method, cborParams(req.Params))
			if werr := out.write(respond(req.ID, result, err)); werr != nil {
				if ctx.Err() != nil {
					continue
				}
				return errors.Wrap(errors.ErrCodeProtocol, werr, "write response")
			}
			if err != nil && errors.TerminatesSession(err) {
				if diag, derr := codec.Diagnose(req.Params); derr == nil {
					logger.Debug("session closed by request", "method", req.Method, "params", diag)
				}
				return err
			}
		case err := <-readErr:
			return endStream(err, sess, out, logger)
		case <-ctx.Done():
			select {
			case err := <-readErr:
				return endStream(err, sess, out, logger)
			default:
			}
			sess.Close()
			return nil
		}
	}
}

// endStream closes sess after the reader stopped with err. A clean EOF ends
// the session normally; anything else is a protocol error.
func endStream(err error, sess *Session, out *responseWriter, logger *log.Logger) error {
	sess.Close()
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	perr := errors.Wrap(errors.ErrCodeProtocol, err, "undecodable request")
	if werr := out.write(respond(0, nil, perr)); werr != nil {
		logger.Debug("write error response", "err", werr)
	}
	return perr
}

func cborParams(raw codec.RawMessage) DecodeFunc {
	return func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		return codec.Unmarshal(raw, v)
	}
}

// responseWriter serializes responses from the request loop and the
// cancel fast path.
type responseWriter struct {
	mu  sync.Mutex
	enc *codec.Encoder
}

func (w *responseWriter) write(resp Response) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(resp)
}
