package client

import "time"

// Handle is the driver a start request resulted in.
type Handle struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
	Reused    bool      `json:"reused"`
}

// Usage is a resource sample of the driver process.
type Usage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DriverStatus is the recorded driver as reported by the daemon.
type DriverStatus struct {
	State     string    `json:"state"`
	Recorded  bool      `json:"recorded"`
	PID       int       `json:"pid,omitempty"`
	Port      int       `json:"port,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Alive     bool      `json:"alive"`
	Ready     bool      `json:"ready"`
	Usage     *Usage    `json:"usage,omitempty"`
	Record    string    `json:"record"`
}

// Session is the recorded browser session.
type Session struct {
	SessionID string `json:"session_id"`
	Recorded  bool   `json:"recorded"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// APIError is a non-200 answer from the daemon.
type APIError struct {
	Status int
	Kind   string
	Msg    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return "API error (" + e.Kind + "): " + e.Msg
	}
	return "API error: " + e.Msg
}
