package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/history"
	"github.com/loykin/drivr/internal/metrics"
	"github.com/loykin/drivr/internal/retry"
	"github.com/loykin/drivr/internal/service"
)

// Client is a connection to one browser session on the driver.
type Client interface {
	SessionID() string
	CurrentURL() (string, error)
	Get(url string) error
	FindElement(xpath string) (Element, error)
	FindElements(xpath string) ([]Element, error)
	ExecuteScript(script string, args []any) (any, error)
	AcceptAlert() error
	DismissAlert() error
	Quit() error
}

// Element is a node found in the current page.
type Element interface {
	Click() error
	Text() (string, error)
	GetAttribute(name string) (string, error)
	Clear() error
	SendKeys(keys string) error
	FindElement(xpath string) (Element, error)
	FindElements(xpath string) ([]Element, error)
}

// Dialer opens a Client. A non-empty hint asks to adopt that existing session instead
// of creating a new one; whether the session is actually alive is not checked.
type Dialer interface {
	Dial(ctx context.Context, url, hint string) (Client, error)
}

// Service controls the driver process.
type Service interface {
	Start(ctx context.Context) (service.Handle, error)
	Stop(ctx context.Context) error
}

// Sessions is the shared record of the session id to adopt.
type Sessions interface {
	Read(ctx context.Context) (string, bool, error)
	Save(ctx context.Context, id string) error
	Replace(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Deps is everything Connect needs.
type Deps struct {
	URL      string // driver endpoint, e.g. http://127.0.0.1:9515
	Dialer   Dialer
	Service  Service
	Sessions Sessions

	Attempts    int           // per interaction; 0 means retry.DefaultAttempts
	Delay       time.Duration // pause between attempts
	PageSettle  time.Duration // wait after a navigation that changed the page
	WriteSettle time.Duration // wait between typing and reading the value back

	Logger  *slog.Logger
	History history.Sink
}

// Driver is a connected session. It is not safe for concurrent use, matching the
// single-threaded protocol of the underlying client.
type Driver struct {
	Scope

	client Client
	deps   Deps
	policy retry.Policy
	log    *slog.Logger
	sleep  func(time.Duration)
}

func newDriver(d Deps) *Driver {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	attempts := d.Attempts
	if attempts == 0 {
		attempts = retry.DefaultAttempts
	}
	drv := &Driver{
		deps:   d,
		policy: retry.Remote(attempts, d.Delay),
		log:    log.With("component", "driver"),
		sleep:  time.Sleep,
	}
	drv.Scope = Scope{d: drv}
	return drv
}

// Connect returns a driver attached to the recorded session when that session is still
// usable, and otherwise starts the service and records a brand-new session.
func Connect(ctx context.Context, d Deps) (*Driver, error) {
	drv := newDriver(d)

	hint, ok, err := d.Sessions.Read(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		if c := drv.adopt(ctx, hint); c != nil {
			drv.client = c
			metrics.IncConnect("reused")
			drv.log.Debug("session reused", "session", hint)
			history.Emit(ctx, d.History, drv.log, history.EventSessionReuse, drv.record())
			return drv, nil
		}
		drv.log.Info("recorded session is stale", "session", hint)
	}

	if err := d.Sessions.Clear(ctx); err != nil {
		return nil, err
	}
	if _, err := d.Service.Start(ctx); err != nil {
		return nil, err
	}
	// the listener may still be coming up
	c, err := retry.Do(drv.policyFor("dial"), func() (Client, error) {
		c, err := d.Dialer.Dial(ctx, d.URL, "")
		return c, errs.Remote("driver.dial", err)
	})
	if err != nil {
		return nil, err
	}
	drv.client = c
	id := c.SessionID()
	if err := d.Sessions.Save(ctx, id); err != nil {
		if errs.KindOf(err) != errs.KindSessionConflict {
			_ = c.Quit()
			return nil, err
		}
		// the other claim was read before ours was proven dead
		drv.log.Warn("overwriting conflicting session record", "session", id, "error", err)
		if err := d.Sessions.Replace(ctx, id); err != nil {
			_ = c.Quit()
			return nil, err
		}
	}
	metrics.IncConnect("created")
	drv.log.Info("session created", "session", id)
	history.Emit(ctx, d.History, drv.log, history.EventSessionCreate, drv.record())
	return drv, nil
}

// adopt dials with hint and confirms the session answers a location probe.
func (drv *Driver) adopt(ctx context.Context, hint string) Client {
	c, err := drv.deps.Dialer.Dial(ctx, drv.deps.URL, hint)
	if err != nil {
		drv.log.Debug("dial with session hint failed", "session", hint, "error", err)
		return nil
	}
	if c.SessionID() != hint {
		drv.log.Debug("driver answered with another session", "session", hint, "got", c.SessionID())
		return nil
	}
	if _, err := c.CurrentURL(); err != nil {
		drv.log.Debug("session probe failed", "session", hint, "error", err)
		return nil
	}
	return c
}

func (drv *Driver) record() history.Record {
	return history.Record{Name: service.Name, SessionID: drv.SessionID(), Status: string(service.StateRunning)}
}

// SessionID is the id of the connected session.
func (drv *Driver) SessionID() string { return drv.client.SessionID() }

// Client exposes the underlying connection for calls this package does not wrap.
func (drv *Driver) Client() Client { return drv.client }

// Shutdown ends the session and stops the driver. Ending the session is best effort;
// failing to clear the record or stop the service is returned.
func (drv *Driver) Shutdown(ctx context.Context) error {
	id := drv.SessionID()
	if err := drv.client.Quit(); err != nil {
		drv.log.Warn("quit session", "session", id, "error", err)
	}
	clearErr := drv.deps.Sessions.Clear(ctx)
	if clearErr == nil {
		history.Emit(ctx, drv.deps.History, drv.log, history.EventSessionClear,
			history.Record{Name: service.Name, SessionID: id, Status: string(service.StateStopped)})
	}
	return errors.Join(clearErr, drv.deps.Service.Stop(ctx))
}

// policyFor returns the interaction policy reporting retries of op.
func (drv *Driver) policyFor(op string) retry.Policy {
	p := drv.policy
	p.Notify = func(err error, attempt int, next time.Duration) {
		metrics.IncRetry(op)
		drv.log.Debug("retrying", "op", op, "attempt", attempt, "next", next, "error", err)
	}
	return p
}

// do runs a single-attempt interaction under the remote-failure policy.
func do[T any](drv *Driver, op string, fn func() (T, error)) (T, error) {
	v, err := retry.Do(drv.policyFor(op), fn)
	if errs.KindOf(err) == errs.KindRemoteOperation {
		metrics.IncExhausted(op)
		drv.log.Warn("interaction failed", "op", op, "attempts", drv.policy.Attempts, "error", err)
	}
	return v, err
}

// try runs fn under the swallow-on-exhaustion policy: running out of attempts yields
// ok == false and no error.
func try[T any](drv *Driver, op string, fn func() (T, error)) (T, bool, error) {
	v, ok, err := retry.Swallow(drv.policyFor(op), fn)
	if !ok && err == nil {
		metrics.IncExhausted(op)
		drv.log.Debug("no result", "op", op, "attempts", drv.policy.Attempts)
	}
	return v, ok, err
}

func (drv *Driver) settle(d time.Duration) {
	if d > 0 {
		drv.sleep(d)
	}
}
