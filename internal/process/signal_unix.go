//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// killProcess signals the process group led by pid, falling back to pid alone when it
// leads no group.
func killProcess(pid int, signal syscall.Signal) error {
	err := syscall.Kill(-pid, signal)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(pid, signal)
	}
	return err
}

func terminateSignal() syscall.Signal { return syscall.SIGTERM }
func killSignal() syscall.Signal      { return syscall.SIGKILL }

func isGone(err error) bool { return errors.Is(err, syscall.ESRCH) }
