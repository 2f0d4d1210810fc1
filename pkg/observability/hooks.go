// Package observability provides hooks for metrics, tracing, and logging.
//
// The core emits events about protocol requests, input fingerprinting and
// external process execution. Nothing is recorded unless a binary registers
// hooks at startup; the defaults are no-ops.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetRequestHooks(&myRequestHooks{})
//	    observability.SetExecHooks(observability.NewLogHooks(logger))
//	    // ... serve
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Exec().OnExecStart(ctx, "cargo")
//	// ... run ...
//	observability.Exec().OnExecComplete(ctx, "cargo", exitCode, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Request Hooks
// =============================================================================

// RequestHooks receives events from the protocol server.
type RequestHooks interface {
	// OnRequestStart records a request entering a session.
	OnRequestStart(ctx context.Context, session, method string)

	// OnRequestComplete records the end of a request. err is nil on success.
	OnRequestComplete(ctx context.Context, session, method string, duration time.Duration, err error)
}

// =============================================================================
// Fingerprint Hooks
// =============================================================================

// FingerprintHooks receives events from the fingerprint engine.
type FingerprintHooks interface {
	// OnFingerprint records a completed digest over files matched inputs.
	OnFingerprint(ctx context.Context, files int, duration time.Duration, err error)
}

// =============================================================================
// Exec Hooks
// =============================================================================

// ExecHooks receives events from the build executor.
type ExecHooks interface {
	// OnExecStart records a process about to start.
	OnExecStart(ctx context.Context, command string)

	// OnExecComplete records a process exit. exitCode is -1 when the process
	// never started or was killed.
	OnExecComplete(ctx context.Context, command string, exitCode int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopRequestHooks is a no-op implementation of RequestHooks.
type NoopRequestHooks struct{}

func (NoopRequestHooks) OnRequestStart(context.Context, string, string) {}
func (NoopRequestHooks) OnRequestComplete(context.Context, string, string, time.Duration, error) {
}

// NoopFingerprintHooks is a no-op implementation of FingerprintHooks.
type NoopFingerprintHooks struct{}

func (NoopFingerprintHooks) OnFingerprint(context.Context, int, time.Duration, error) {}

// NoopExecHooks is a no-op implementation of ExecHooks.
type NoopExecHooks struct{}

func (NoopExecHooks) OnExecStart(context.Context, string)                                {}
func (NoopExecHooks) OnExecComplete(context.Context, string, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	requestHooks     RequestHooks     = NoopRequestHooks{}
	fingerprintHooks FingerprintHooks = NoopFingerprintHooks{}
	execHooks        ExecHooks        = NoopExecHooks{}
	hooksMu          sync.RWMutex
)

// SetRequestHooks registers custom request hooks.
// This should be called once at application startup before serving.
func SetRequestHooks(h RequestHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		requestHooks = h
	}
}

// SetFingerprintHooks registers custom fingerprint hooks.
func SetFingerprintHooks(h FingerprintHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		fingerprintHooks = h
	}
}

// SetExecHooks registers custom exec hooks.
func SetExecHooks(h ExecHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		execHooks = h
	}
}

// Request returns the registered request hooks.
func Request() RequestHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return requestHooks
}

// Fingerprint returns the registered fingerprint hooks.
func Fingerprint() FingerprintHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return fingerprintHooks
}

// Exec returns the registered exec hooks.
func Exec() ExecHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return execHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	requestHooks = NoopRequestHooks{}
	fingerprintHooks = NoopFingerprintHooks{}
	execHooks = NoopExecHooks{}
}
