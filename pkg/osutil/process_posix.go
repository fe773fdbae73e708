//go:build unix

package osutil

import (
	"os/exec"
	"syscall"
)

// SetProcessGroup runs cmd in a new process group led by the child.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SetProcessGroupKill makes context cancellation SIGKILL the child's whole
// process group. Must be called after SetProcessGroup and before Start.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
