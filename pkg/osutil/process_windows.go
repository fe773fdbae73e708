//go:build windows

package osutil

import (
	"os"
	"os/exec"
	"syscall"
)

// SetProcessGroup starts cmd in a new process group.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

// SetProcessGroupKill terminates the direct child on cancellation. Windows has
// no signal to a whole group, so grandchildren may outlive it.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
}
