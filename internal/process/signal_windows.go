//go:build windows

package process

import (
	"errors"
	"syscall"
)

const processTerminate = 0x0001

// errGone marks a pid that could not be opened; on Windows that means it has exited.
var errGone = errors.New("process not found")

// killProcess ends pid. Windows has no signals, so any non-zero signal terminates.
func killProcess(pid int, signal syscall.Signal) error {
	if pid <= 0 {
		return errGone
	}
	access := uint32(processTerminate)
	if signal == 0 {
		access = syscall.PROCESS_QUERY_INFORMATION
	}
	h, err := syscall.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return errGone
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	if signal == 0 {
		return nil
	}
	return syscall.TerminateProcess(h, 1)
}

func terminateSignal() syscall.Signal { return syscall.SIGTERM }
func killSignal() syscall.Signal      { return syscall.SIGKILL }

func isGone(err error) bool { return errors.Is(err, errGone) }
