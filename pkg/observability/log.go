package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks implements every hook interface by writing debug-level log lines.
// Binaries register it when running verbose.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks that log to l.
func NewLogHooks(l *log.Logger) *LogHooks {
	return &LogHooks{logger: l}
}

// Register installs h for every hook category.
func (h *LogHooks) Register() {
	SetRequestHooks(h)
	SetFingerprintHooks(h)
	SetExecHooks(h)
}

func (h *LogHooks) OnRequestStart(_ context.Context, session, method string) {
	h.logger.Debug("request", "session", session, "method", method)
}

func (h *LogHooks) OnRequestComplete(_ context.Context, session, method string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("request failed", "session", session, "method", method, "took", d.Round(time.Millisecond), "err", err)
		return
	}
	h.logger.Debug("request done", "session", session, "method", method, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnFingerprint(_ context.Context, files int, d time.Duration, err error) {
	h.logger.Debug("fingerprint", "files", files, "took", d.Round(time.Millisecond), "err", err)
}

func (h *LogHooks) OnExecStart(_ context.Context, command string) {
	h.logger.Debug("exec", "command", command)
}

func (h *LogHooks) OnExecComplete(_ context.Context, command string, exitCode int, d time.Duration, err error) {
	h.logger.Debug("exec done", "command", command, "exit", exitCode, "took", d.Round(time.Millisecond), "err", err)
}
