// Package osutil holds process helpers for running sandboxed child processes.
package osutil

import (
	"context"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on inherited pipes after the group is killed.
const waitDelay = 500 * time.Millisecond

// GroupCommand returns a command bound to ctx that runs in its own process
// group. When ctx is done the whole group is killed, not just the direct child.
func GroupCommand(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	SetProcessGroup(cmd)
	SetProcessGroupKill(cmd)
	cmd.WaitDelay = waitDelay
	return cmd
}
