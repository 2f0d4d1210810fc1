// Package executor runs the commands a backend constructs.
//
// Commands run one after another in their own process group. Standard output
// and standard error are captured together and returned to the caller; they
// never reach the protocol stream. The first failing command stops the
// script.
//
// Cancelling the context terminates the whole process group and the run
// reports Cancelled rather than a build failure. Nothing is retried.
package executor

import (
	"bytes"
	"context"
	stderrors "errors"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackbuild/pkg/backend"
	"github.com/matzehuels/stackbuild/pkg/errors"
	"github.com/matzehuels/stackbuild/pkg/observability"
)

// DefaultGracePeriod is how long a cancelled process group has between
// SIGTERM and SIGKILL.
const DefaultGracePeriod = 5 * time.Second

// Runner runs a build script. The pipeline depends on this interface so tests
// can substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmds []backend.Command) (*Result, error)
}

// Step records one finished command.
type Step struct {
	Command  string
	ExitCode int
	Duration time.Duration
}

// Result is the outcome of a successful script.
type Result struct {
	Output []byte
	Steps  []Step
}

// Executor runs commands as child processes.
type Executor struct {
	Logger      *log.Logger
	GracePeriod time.Duration
}

// New returns an executor logging to l.
func New(l *log.Logger) *Executor {
	if l == nil {
		l = log.Default()
	}
	return &Executor{Logger: l, GracePeriod: DefaultGracePeriod}
}

// Run executes cmds in order. On a non-zero exit it returns a BuildError
// carrying the exit code and all output captured so far.
func (e *Executor) Run(ctx context.Context, cmds []backend.Command) (*Result, error) {
	res := &Result{}
	var out bytes.Buffer
	for _, c := range cmds {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCancelled, err, "build cancelled")
		}
		for _, dir := range c.Creates {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(errors.ErrCodeBuild, err, "create %s", dir).WithPath(dir)
			}
		}

		line := c.String()
		e.Logger.Info("running", "command", c.Name)
		e.Logger.Debug(line)
		observability.Exec().OnExecStart(ctx, c.Name)

		start := time.Now()
		code, err := e.run(ctx, c, &out)
		took := time.Since(start)
		observability.Exec().OnExecComplete(ctx, c.Name, code, took, err)

		if err != nil {
			return nil, err
		}
		res.Steps = append(res.Steps, Step{Command: line, ExitCode: code, Duration: took})
	}
	res.Output = out.Bytes()
	return res, nil
}

func (e *Executor) run(ctx context.Context, c backend.Command, out *bytes.Buffer) (int, error) {
	cmd := exec.CommandContext(ctx, lookPath(c), c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = environ(c)
	cmd.Stdout = out
	cmd.Stderr = out
	setProcessGroup(cmd, e.GracePeriod)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, errors.Wrap(errors.ErrCodeCancelled, ctx.Err(), "%s cancelled", c.Name)
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return code, errors.New(errors.ErrCodeBuild, "%s exited with code %d", c.Name, code).
			WithExit(code, out.String())
	}
	return -1, errors.Wrap(errors.ErrCodeBuild, err, "start %s", c.Name).WithExit(-1, out.String())
}

// lookPath resolves c.Name against c.Path before falling back to the
// inherited PATH, which os/exec consults on its own.
func lookPath(c backend.Command) string {
	if strings.ContainsRune(c.Name, filepath.Separator) || strings.ContainsRune(c.Name, '/') {
		return c.Name
	}
	for _, dir := range c.Path {
		if p, err := exec.LookPath(filepath.Join(dir, c.Name)); err == nil {
			return p
		}
	}
	return c.Name
}

// environ returns the process environment with the command's variables
// appended in key order. Later entries win in os/exec, so they override
// inherited values. c.Path is prepended to PATH.
func environ(c backend.Command) []string {
	env := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(c.Env)) {
		env = append(env, k+"="+c.Env[k])
	}
	if len(c.Path) > 0 {
		search, ok := c.Env["PATH"]
		if !ok {
			search = os.Getenv("PATH")
		}
		dirs := append(slices.Clone(c.Path), search)
		env = append(env, "PATH="+strings.Join(dirs, string(filepath.ListSeparator)))
	}
	return env
}
