//go:build !unix

package procexec

import (
	"os/exec"
	"syscall"
)

// groupAttr has nothing platform-specific to add on non-POSIX platforms;
// termination falls back to killing the single process.
func groupAttr() *syscall.SysProcAttr {
	return nil
}

// killGroup terminates the process directly; there is no process-group
// abstraction to target on this platform.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
