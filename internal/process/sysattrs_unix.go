//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr makes the child lead its own group so killProcess can signal it
// as a whole. A detached child gets a new session and outlives the caller's terminal.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	if spec.Detached {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
