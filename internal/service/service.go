package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/loykin/drivr/internal/config"
	"github.com/loykin/drivr/internal/detector"
	"github.com/loykin/drivr/internal/env"
	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/history"
	"github.com/loykin/drivr/internal/metrics"
	"github.com/loykin/drivr/internal/process"
	"github.com/loykin/drivr/internal/statefile"
)

const (
	// Name labels the driver process in logs, metrics and history.
	Name = "chromedriver"
	// RecordName is the file holding the driver's pid record inside the state dir.
	RecordName = "chromedriver.pid"

	stopWait     = 5 * time.Second
	readyPoll    = 100 * time.Millisecond
	defaultReady = 10 * time.Second
)

// State is the lifecycle state as observed by one Manager.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
)

var allStates = []string{string(StateStopped), string(StateStarting), string(StateRunning)}

// Options configures a Manager.
type Options struct {
	ExecutablePath string
	Port           int
	LogLevel       string
	LogPath        string
	StateDir       string
	LockTimeout    time.Duration
	ReadyTimeout   time.Duration
	Env            []string // extra KEY=VALUE pairs on top of our environment

	Logger  *slog.Logger
	History history.Sink
}

// Handle describes the driver a Start call resulted in.
type Handle struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
	Reused    bool      `json:"reused"`
}

// Status is a point-in-time view of the recorded driver.
type Status struct {
	State     State                  `json:"state"`
	Recorded  bool                   `json:"recorded"`
	PID       int                    `json:"pid,omitempty"`
	Port      int                    `json:"port,omitempty"`
	StartedAt time.Time              `json:"started_at,omitempty"`
	Alive     bool                   `json:"alive"`
	Ready     bool                   `json:"ready"`
	Usage     *metrics.ProcessSample `json:"usage,omitempty"`
	Record    string                 `json:"record"`
}

// Manager keeps at most one driver process alive for all cooperating processes that
// share its state dir. The pid record lock serializes Start and Stop between them.
type Manager struct {
	opts Options
	log  *slog.Logger
	pids *statefile.File[Record]

	mu    sync.Mutex
	state State
}

func New(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReady
	}
	path := filepath.Join(opts.StateDir, RecordName)
	return &Manager{
		opts:  opts,
		log:   log.With("component", "service"),
		pids:  statefile.New[Record](path, recordCodec{}, opts.LockTimeout),
		state: StateStopped,
	}
}

// Port is the port clients should dial.
func (m *Manager) Port() int { return m.opts.Port }

// RecordPath is the location of the pid record.
func (m *Manager) RecordPath() string { return m.pids.Path() }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	metrics.SetState(Name, string(s), allStates)
}

// Args is the driver command line after the executable.
func Args(port int, logPath, logLevel string) []string {
	return []string{
		fmt.Sprintf("--port=%d", port),
		"--log-path=" + logPath,
		"--log-level=" + logLevel,
		"--readable-timestamp",
	}
}

// Start makes sure a healthy driver is running. An already running instance recorded
// by any process is reused; otherwise a stale one is terminated and a new detached
// driver is launched and recorded.
func (m *Manager) Start(ctx context.Context) (Handle, error) {
	if err := config.RequireExecutable(m.opts.ExecutablePath); err != nil {
		return Handle{}, err
	}
	var h Handle
	err := m.pids.Update(ctx, func(tx *statefile.Tx[Record]) error {
		rec, ok, err := tx.Read()
		if err != nil {
			m.log.Warn("discarding unreadable pid record", "path", m.pids.Path(), "error", err)
			ok = false
		}
		if ok && m.healthy(rec) {
			h = Handle{PID: rec.PID, Port: m.opts.Port, Reused: true}
			if rec.StartUnix > 0 {
				h.StartedAt = time.Unix(rec.StartUnix, 0)
			}
			return nil
		}
		if ok {
			m.terminateStale(rec)
		}

		m.setState(StateStarting)
		p := process.New(process.Spec{
			Name:     Name,
			Path:     m.opts.ExecutablePath,
			Args:     Args(m.opts.Port, m.opts.LogPath, m.opts.LogLevel),
			Env:      env.Merge(m.opts.Env),
			Detached: true,
		})
		if err := p.Start(); err != nil {
			m.setState(StateStopped)
			return err
		}
		pid := p.PID()
		rec = Record{PID: pid, StartUnix: detector.StartUnix(pid), Port: m.opts.Port}
		if err := tx.Write(rec); err != nil {
			_ = process.Terminate(pid, stopWait)
			m.setState(StateStopped)
			return fmt.Errorf("record pid %d: %w", pid, err)
		}
		m.setState(StateRunning)
		if err := m.waitReady(ctx, p); err != nil {
			_ = process.Terminate(pid, stopWait)
			if cerr := tx.Clear(); cerr != nil {
				m.log.Warn("clear pid record", "error", cerr)
			}
			m.setState(StateStopped)
			return err
		}
		h = Handle{PID: pid, Port: m.opts.Port, StartedAt: p.Snapshot().StartedAt}
		return nil
	})
	if err != nil {
		return Handle{}, err
	}

	rec := history.Record{Name: Name, PID: h.PID, Port: h.Port, Status: string(StateRunning)}
	if h.Reused {
		m.setState(StateRunning)
		metrics.IncReuse(Name)
		m.log.Debug("reusing running driver", "pid", h.PID, "port", h.Port)
		history.Emit(ctx, m.opts.History, m.log, history.EventServiceReuse, rec)
	} else {
		metrics.IncStart(Name)
		m.log.Info("driver started", "pid", h.PID, "port", h.Port, "log_path", m.opts.LogPath)
		history.Emit(ctx, m.opts.History, m.log, history.EventServiceStart, rec)
	}
	return h, nil
}

// healthy reports whether rec names our driver and it answers on the configured port.
func (m *Manager) healthy(rec Record) bool {
	if rec.Port != 0 && rec.Port != m.opts.Port {
		return false
	}
	ok, err := detector.All(
		detector.PIDDetector{PID: rec.PID, StartUnix: rec.StartUnix},
		detector.HTTPDetector{URL: detector.StatusURL(m.opts.Port)},
	)
	return err == nil && ok
}

// terminateStale stops a recorded driver that is alive but unusable. A pid without a
// recorded start time may belong to an unrelated process and is left alone.
func (m *Manager) terminateStale(rec Record) {
	if rec.StartUnix == 0 {
		m.log.Warn("not terminating unverified pid", "pid", rec.PID)
		return
	}
	alive, _ := detector.PIDDetector{PID: rec.PID, StartUnix: rec.StartUnix}.Alive()
	if !alive {
		return
	}
	m.log.Info("terminating stale driver", "pid", rec.PID, "port", rec.Port)
	if err := process.Terminate(rec.PID, stopWait); err != nil {
		m.log.Warn("terminate stale driver", "pid", rec.PID, "error", err)
	}
}

func (m *Manager) waitReady(ctx context.Context, p *process.Process) error {
	probe := detector.HTTPDetector{URL: detector.StatusURL(m.opts.Port), Timeout: time.Second}
	deadline := time.NewTimer(m.opts.ReadyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(readyPoll)
	defer tick.Stop()
	for {
		if ok, _ := probe.Alive(); ok {
			return nil
		}
		select {
		case <-p.Done():
			st := p.Snapshot()
			return fmt.Errorf("driver pid %d exited before becoming ready: %v", st.PID, st.ExitErr)
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			// still alive: leave it to the client to wait for the listener
			m.log.Warn("driver not ready yet", "pid", p.PID(), "timeout", m.opts.ReadyTimeout)
			return nil
		case <-tick.C:
		}
	}
}

// Stop terminates the recorded driver and clears its record. Stopping when nothing is
// recorded, or when the recorded process has already exited, succeeds.
func (m *Manager) Stop(ctx context.Context) error {
	var stopped Record
	err := m.pids.Update(ctx, func(tx *statefile.Tx[Record]) error {
		rec, ok, err := tx.Read()
		if err != nil {
			m.log.Warn("discarding unreadable pid record", "path", m.pids.Path(), "error", err)
		}
		if ok {
			alive, _ := detector.PIDDetector{PID: rec.PID, StartUnix: rec.StartUnix}.Alive()
			if alive {
				if err := process.Terminate(rec.PID, stopWait); err != nil {
					return err
				}
			}
			stopped = rec
		}
		return tx.Clear()
	})
	if err != nil {
		return err
	}
	m.setState(StateStopped)
	metrics.ClearProcess(Name)
	if stopped.PID > 0 {
		metrics.IncStop(Name)
		m.log.Info("driver stopped", "pid", stopped.PID)
		history.Emit(ctx, m.opts.History, m.log, history.EventServiceStop,
			history.Record{Name: Name, PID: stopped.PID, Port: stopped.Port, Status: string(StateStopped)})
	}
	return nil
}

// Status inspects the recorded driver without changing it.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	st := Status{State: m.State(), Record: m.pids.Path()}
	rec, ok, err := m.pids.Read(ctx)
	if err != nil && errs.KindOf(err) == errs.KindLockTimeout {
		return st, err
	}
	if err != nil || !ok {
		if err != nil {
			m.log.Warn("unreadable pid record", "path", m.pids.Path(), "error", err)
		}
		metrics.ClearProcess(Name)
		return st, nil
	}
	st.Recorded = true
	st.PID = rec.PID
	st.Port = rec.Port
	if st.Port == 0 {
		st.Port = m.opts.Port
	}
	if rec.StartUnix > 0 {
		st.StartedAt = time.Unix(rec.StartUnix, 0)
	}
	st.Alive, _ = detector.PIDDetector{PID: rec.PID, StartUnix: rec.StartUnix}.Alive()
	if st.Alive {
		st.Ready, _ = detector.HTTPDetector{URL: detector.StatusURL(st.Port)}.Alive()
		if s, err := metrics.SampleProcess(ctx, rec.PID); err == nil {
			metrics.RecordProcess(Name, s)
			st.Usage = &s
		}
	} else {
		metrics.ClearProcess(Name)
	}
	return st, nil
}
