//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

const (
	createNewProcessGroup = 0x00000200
	detachedProcess       = 0x00000008
)

// configureSysProcAttr starts the driver in its own process group; a detached driver
// also gets no console of ours.
func configureSysProcAttr(cmd *exec.Cmd, spec Spec) {
	flags := uint32(createNewProcessGroup)
	if spec.Detached {
		flags |= detachedProcess
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: flags}
}
