// Package cli implements the command line shared by every backend binary.
//
// Each binary passes its adapter to [New]; the resulting root command serves
// the protocol and offers the same subcommands in every backend:
//
//	stackbuild-rust                      serve one session on stdin/stdout
//	stackbuild-rust --socket PATH        serve sessions on a Unix socket
//	stackbuild-rust --http-port 8080     serve sessions over HTTP
//	stackbuild-rust capabilities         describe the backend
//
// # Logging
//
// Logs always go to stderr; on the stdio transport stdout carries protocol
// traffic only. --verbose (-v) switches to debug level and registers logging
// observability hooks. Loggers are passed through context.Context.
//
// # Example
//
//	func main() {
//	    c := cli.New(rust.New(), os.Stderr, cli.LogInfo)
//	    if err := c.RootCommand().ExecuteContext(ctx); err != nil {
//	        os.Exit(1)
//	    }
//	}
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/buildinfo"
	"github.com/matzehuels/stackbuild/pkg/executor"
	"github.com/matzehuels/stackbuild/pkg/observability"
	"github.com/matzehuels/stackbuild/pkg/pipeline"
	"github.com/matzehuels/stackbuild/pkg/variant"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Adapter backend.Adapter
	Logger  *log.Logger

	// Stdin and Stdout carry the stdio transport.
	Stdin  io.Reader
	Stdout io.Writer
}

// New creates a CLI for adapter logging to w.
func New(adapter backend.Adapter, w io.Writer, level log.Level) *CLI {
	return &CLI{
		Adapter: adapter,
		Logger:  newLogger(w, level),
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var (
		verbose bool
		opts    serveOptions
	)
	info := c.Adapter.Info()

	root := &cobra.Command{
		Use:          info.Name,
		Short:        "Build backend " + info.Name,
		Long:         info.Name + ` is a build backend. A package manager frontend starts it and drives builds through the stackbuild protocol, on stdin/stdout by default.`,
		Version:      buildinfo.Version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(LogDebug)
				observability.NewLogHooks(c.Logger).Register()
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context(), opts)
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.Flags().StringVar(&opts.socket, "socket", "", "serve sessions on a Unix socket at `PATH`")
	root.Flags().IntVar(&opts.httpPort, "http-port", 0, "serve sessions over HTTP on 127.0.0.1:`PORT`")
	root.MarkFlagsMutuallyExclusive("socket", "http-port")

	root.AddCommand(c.capabilitiesCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates the pipeline runner shared by all sessions.
func (c *CLI) newRunner() *pipeline.Runner {
	return pipeline.NewRunner(c.Adapter, variant.DefaultTable(), executor.New(c.Logger), c.Logger)
}
