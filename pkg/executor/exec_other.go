//go:build !unix

package executor

import (
	"os/exec"
	"time"
)

// setProcessGroup falls back to killing the direct child; there are no
// process groups to signal.
func setProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	cmd.WaitDelay = grace
}
