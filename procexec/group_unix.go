//go:build unix

package procexec

import (
	"os/exec"
	"syscall"
)

// groupAttr returns SysProcAttr that isolates the child into its own
// process group and ensures it is killed if this process dies first.
func groupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// killGroup sends SIGKILL to the entire process group rooted at cmd's pid,
// terminating the child and any descendants with a single syscall.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
