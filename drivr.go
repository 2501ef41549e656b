// Package drivr keeps one chromedriver and one browser session alive across the
// processes that share a state directory, and wraps page interactions in a retry policy.
package drivr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/loykin/drivr/internal/config"
	"github.com/loykin/drivr/internal/driver"
	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/history"
	"github.com/loykin/drivr/internal/history/factory"
	"github.com/loykin/drivr/internal/logger"
	"github.com/loykin/drivr/internal/metrics"
	"github.com/loykin/drivr/internal/remote"
	"github.com/loykin/drivr/internal/retry"
	iapi "github.com/loykin/drivr/internal/server"
	"github.com/loykin/drivr/internal/service"
	"github.com/loykin/drivr/internal/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.

type Config = config.Config

type Handle = service.Handle

type Status = service.Status

type Driver = driver.Driver

type Element = driver.Element

type Dialer = driver.Dialer

type VisitOptions = driver.VisitOptions

type HistorySink = history.Sink

// Failure kinds, for matching with errors.Is.
var (
	ErrConfiguration      = errs.ErrConfiguration
	ErrLockTimeout        = errs.ErrLockTimeout
	ErrSessionConflict    = errs.ErrSessionConflict
	ErrRemoteOperation    = errs.ErrRemoteOperation
	ErrSelectorValidation = errs.ErrSelectorValidation
)

// RetryPolicy repeats operations that fail with a recoverable kind.
type RetryPolicy = retry.Policy

// RemotePolicy retries remote-operation failures: attempts invocations in total, delay
// apart.
func RemotePolicy(attempts int, delay time.Duration) RetryPolicy {
	return retry.Remote(attempts, delay)
}

// RemoteError tags err as a recoverable remote-operation failure. A nil err yields nil.
func RemoteError(op string, err error) error { return errs.Remote(op, err) }

// Retry runs op under p and returns the last failure once attempts run out.
func Retry[T any](p RetryPolicy, op func() (T, error)) (T, error) { return retry.Do(p, op) }

// RetrySwallow runs op under p; running out of attempts yields (zero, false, nil).
func RetrySwallow[T any](p RetryPolicy, op func() (T, error)) (T, bool, error) {
	return retry.Swallow(p, op)
}

// RetryWrap returns op guarded by Retry.
func RetryWrap[T any](p RetryPolicy, op func() (T, error)) func() (T, error) {
	return retry.Wrap(p, op)
}

// RetryCall applies fn to arg under Retry.
func RetryCall[A, T any](p RetryPolicy, fn func(A) (T, error), arg A) (T, error) {
	return retry.Call(p, fn, arg)
}

// LoadConfig reads defaults, the optional TOML file at path and CHROMEDRIVER_* variables.
func LoadConfig(path string) (Config, error) { return config.Load(path, slog.Default()) }

// Manager wires the driver service, the session record and the history sink built from
// one Config.
type Manager struct {
	cfg      Config
	log      *slog.Logger
	svc      *service.Manager
	sessions *session.Store
	dialer   Dialer
	sink     history.Sink
	closers  []io.Closer
}

// New builds a Manager. Nothing is started; a missing executable path is only reported
// when the driver has to be launched.
func New(c Config) (*Manager, error) {
	log, logCloser := logger.New(c.Logging, os.Stderr)
	m := &Manager{cfg: c, log: log, closers: []io.Closer{logCloser}}
	if c.History.DSN != "" {
		sink, err := factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("history sink: %w", err)
		}
		m.sink = sink
		if cl, ok := sink.(io.Closer); ok {
			m.closers = append(m.closers, cl)
		}
	}
	m.svc = service.New(service.Options{
		ExecutablePath: c.ExecutablePath,
		Port:           c.Port,
		LogLevel:       c.LogLevel,
		LogPath:        c.LogPath,
		StateDir:       c.StateDir,
		LockTimeout:    c.LockTimeout,
		ReadyTimeout:   c.ReadyTimeout,
		Env:            c.Env,
		Logger:         log,
		History:        m.sink,
	})
	m.sessions = session.InDir(c.StateDir, c.LockTimeout)
	m.dialer = remote.NewDialer(remote.Options{
		Args:     c.Browser.Args,
		Headless: c.Browser.Headless,
		Binary:   c.Browser.Binary,
	})
	return m, nil
}

// SetDialer replaces the client used to open sessions.
func (m *Manager) SetDialer(d Dialer) { m.dialer = d }

// Logger is the logger built from the logging section.
func (m *Manager) Logger() *slog.Logger { return m.log }

// URL is the driver endpoint.
func (m *Manager) URL() string { return fmt.Sprintf("http://127.0.0.1:%d", m.svc.Port()) }

// Connect attaches to the recorded session, or starts the driver and opens a new one.
func (m *Manager) Connect(ctx context.Context) (*Driver, error) {
	return driver.Connect(ctx, driver.Deps{
		URL:         m.URL(),
		Dialer:      m.dialer,
		Service:     m.svc,
		Sessions:    m.sessions,
		Attempts:    m.cfg.Retry.Attempts,
		Delay:       m.cfg.Retry.Delay,
		PageSettle:  m.cfg.PageSettle,
		WriteSettle: m.cfg.WriteSettle,
		Logger:      m.log,
		History:     m.sink,
	})
}

func (m *Manager) Start(ctx context.Context) (Handle, error)  { return m.svc.Start(ctx) }
func (m *Manager) Stop(ctx context.Context) error             { return m.svc.Stop(ctx) }
func (m *Manager) Status(ctx context.Context) (Status, error) { return m.svc.Status(ctx) }

// Session returns the recorded session id.
func (m *Manager) Session(ctx context.Context) (string, bool, error) { return m.sessions.Read(ctx) }

// ClearSession forgets the recorded session without touching the browser.
func (m *Manager) ClearSession(ctx context.Context) error { return m.sessions.Clear(ctx) }

// Close releases the history sink and the log file.
func (m *Manager) Close() error {
	var all []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil {
			all = append(all, err)
		}
	}
	m.closers = nil
	return errors.Join(all...)
}

// NewHTTPServer starts an HTTP server exposing the control API. Empty addr and basePath
// fall back to the server section of the configuration.
func (m *Manager) NewHTTPServer(addr, basePath string) (*http.Server, error) {
	if addr == "" {
		addr = m.cfg.Server.Listen
	}
	if basePath == "" {
		basePath = m.cfg.Server.BasePath
	}
	return iapi.NewServer(addr, basePath, m.svc, m.sessions)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
