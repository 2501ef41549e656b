package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

var (
	driverCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "drivr",
			Subsystem: "driver",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage of the driver process.",
		}, []string{"name"},
	)
	driverMemoryMB = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "drivr",
			Subsystem: "driver",
			Name:      "memory_mb",
			Help:      "Resident memory of the driver process in megabytes.",
		}, []string{"name"},
	)
	driverNumThreads = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "drivr",
			Subsystem: "driver",
			Name:      "threads",
			Help:      "Number of threads of the driver process.",
		}, []string{"name"},
	)
)

// ProcessSample is a point-in-time resource reading for one process.
type ProcessSample struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// SampleProcess reads resource usage of pid. Fields the platform cannot report are left zero.
func SampleProcess(ctx context.Context, pid int) (ProcessSample, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return ProcessSample{}, err
	}
	s := ProcessSample{PID: int32(pid), Timestamp: time.Now()}
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		s.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		s.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreadsWithContext(ctx); err == nil {
		s.NumThreads = n
	}
	if n, err := p.NumFDsWithContext(ctx); err == nil {
		s.NumFDs = n
	}
	return s, nil
}

// RecordProcess publishes a sample under name.
func RecordProcess(name string, s ProcessSample) {
	if !regOK.Load() {
		return
	}
	driverCPUPercent.WithLabelValues(name).Set(s.CPUPercent)
	driverMemoryMB.WithLabelValues(name).Set(s.MemoryMB)
	driverNumThreads.WithLabelValues(name).Set(float64(s.NumThreads))
}

// ClearProcess drops the series for name once its process is gone.
func ClearProcess(name string) {
	driverCPUPercent.DeleteLabelValues(name)
	driverMemoryMB.DeleteLabelValues(name)
	driverNumThreads.DeleteLabelValues(name)
}
