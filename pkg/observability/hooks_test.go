package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	r := NoopRequestHooks{}
	r.OnRequestStart(ctx, "s1", "build")
	r.OnRequestComplete(ctx, "s1", "build", time.Second, nil)

	f := NoopFingerprintHooks{}
	f.OnFingerprint(ctx, 12, time.Millisecond, nil)

	e := NoopExecHooks{}
	e.OnExecStart(ctx, "cargo")
	e.OnExecComplete(ctx, "cargo", 0, time.Second, nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Request().(NoopRequestHooks); !ok {
		t.Error("Request() should return NoopRequestHooks by default")
	}
	if _, ok := Fingerprint().(NoopFingerprintHooks); !ok {
		t.Error("Fingerprint() should return NoopFingerprintHooks by default")
	}
	if _, ok := Exec().(NoopExecHooks); !ok {
		t.Error("Exec() should return NoopExecHooks by default")
	}

	customRequest := &testRequestHooks{}
	SetRequestHooks(customRequest)
	if Request() != customRequest {
		t.Error("SetRequestHooks should set custom hooks")
	}

	customExec := &testExecHooks{}
	SetExecHooks(customExec)
	if Exec() != customExec {
		t.Error("SetExecHooks should set custom hooks")
	}

	Reset()
	if _, ok := Exec().(NoopExecHooks); !ok {
		t.Error("Reset() should restore NoopExecHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testExecHooks{}
	SetExecHooks(custom)
	SetExecHooks(nil)

	if Exec() != custom {
		t.Error("SetExecHooks(nil) should be ignored")
	}
}

func TestLogHooks(t *testing.T) {
	Reset()
	defer Reset()

	var buf bytes.Buffer
	logger := log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})
	NewLogHooks(logger).Register()

	ctx := context.Background()
	Request().OnRequestComplete(ctx, "s1", "build", time.Second, errors.New("boom"))
	Exec().OnExecComplete(ctx, "cargo", 101, time.Second, nil)

	out := buf.String()
	for _, want := range []string{"request failed", "boom", "cargo", "101"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

type testRequestHooks struct{ NoopRequestHooks }
type testExecHooks struct{ NoopExecHooks }
