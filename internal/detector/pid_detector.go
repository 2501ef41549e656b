package detector

import "fmt"

// PIDDetector detects by a PID number. When StartUnix is set, a process whose start
// time differs is treated as a reused PID and reported dead.
type PIDDetector struct {
	PID       int
	StartUnix int64
}

func (d PIDDetector) Alive() (bool, error) {
	if d.PID <= 0 {
		return false, nil
	}
	if d.StartUnix > 0 {
		cur := getProcStartUnix(d.PID)
		if cur > 0 && cur != d.StartUnix {
			return false, nil // PID reused; not our process
		}
	}
	return pidAlive(d.PID), nil
}

func (d PIDDetector) Describe() string { return fmt.Sprintf("pid:%d", d.PID) }

// StartUnix returns the start time of pid in Unix seconds, or 0 when unavailable.
func StartUnix(pid int) int64 { return getProcStartUnix(pid) }
