//go:build unix

package executor

import (
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// setProcessGroup starts cmd in its own process group and makes cancellation
// signal the whole group: SIGTERM first, SIGKILL once grace has passed.
// Without the group, children of a build tool would survive and keep the
// output pipe open.
func setProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		pgid := -cmd.Process.Pid
		if grace <= 0 {
			return unix.Kill(pgid, unix.SIGKILL)
		}
		if err := unix.Kill(pgid, unix.SIGTERM); err != nil {
			return unix.Kill(pgid, unix.SIGKILL)
		}
		go func() {
			time.Sleep(grace)
			// ESRCH once the group is gone.
			_ = unix.Kill(pgid, unix.SIGKILL)
		}()
		return nil
	}
	// Bound the wait for pipes held open by grandchildren.
	cmd.WaitDelay = grace + time.Second
}
