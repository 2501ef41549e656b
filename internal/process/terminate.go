package process

import (
	"fmt"
	"time"

	"github.com/loykin/drivr/internal/detector"
)

const pollInterval = 50 * time.Millisecond

// Terminate asks pid to exit and escalates to a kill once wait has passed. A process
// that is already gone is not an error.
func Terminate(pid int, wait time.Duration) error {
	if pid <= 0 {
		return nil
	}
	if err := killProcess(pid, terminateSignal()); err != nil {
		if isGone(err) {
			return nil
		}
		return fmt.Errorf("terminate pid %d: %w", pid, err)
	}
	if waitExit(pid, wait) {
		return nil
	}
	if err := killProcess(pid, killSignal()); err != nil && !isGone(err) {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	waitExit(pid, time.Second)
	return nil
}

func waitExit(pid int, wait time.Duration) bool {
	d := detector.PIDDetector{PID: pid}
	deadline := time.Now().Add(wait)
	for {
		if ok, _ := d.Alive(); !ok {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}
}
