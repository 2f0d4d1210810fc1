package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matzehuels/stackbuild/pkg/protocol"
)

// serveOptions selects the transport. With neither field set the backend
// serves one session on stdin/stdout.
type serveOptions struct {
	socket   string
	httpPort int
}

func (o serveOptions) validate() error {
	if o.httpPort < 0 || o.httpPort > 65535 {
		return fmt.Errorf("invalid --http-port %d", o.httpPort)
	}
	return nil
}

// serve runs the selected transport until the session ends or ctx is
// cancelled. Cancellation is returned as ctx.Err() so main can exit 130.
func (c *CLI) serve(ctx context.Context, opts serveOptions) error {
	if err := opts.validate(); err != nil {
		return err
	}
	logger := loggerFromContext(ctx)
	runner := c.newRunner()
	sessions := func() *protocol.Session {
		return protocol.NewSession(uuid.NewString(), runner, logger)
	}
	prog := newProgress(logger)

	var err error
	switch {
	case opts.socket != "":
		err = protocol.NewSocketServer(opts.socket, sessions, logger).Serve(ctx)
	case opts.httpPort != 0:
		err = protocol.NewHTTPServer(c.Adapter.Info(), sessions, logger).ListenAndServe(ctx, opts.httpPort)
	default:
		logger.Debug("serving on stdio")
		err = protocol.ServeStream(ctx, c.Stdin, c.Stdout, sessions(), logger)
	}
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog.done("server stopped")
	return nil
}
