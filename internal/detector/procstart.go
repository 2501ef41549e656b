package detector

import gopsproc "github.com/shirou/gopsutil/v4/process"

// createTimeUnix asks gopsutil for the creation time of pid, in Unix seconds.
func createTimeUnix(pid int) int64 {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}
