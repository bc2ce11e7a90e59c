//go:build unix

package grader

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts c in its own process group and kills the group on
// cancellation
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
