package retry

import (
	"slices"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/loykin/drivr/internal/errs"
)

// Defaults used by the interaction primitives: the first try plus four retries, two
// seconds apart.
const (
	DefaultAttempts = 5
	DefaultDelay    = 2 * time.Second
)

// Policy describes how an operation is repeated. A Policy holds no mutable state and can
// be shared; only Timer, when set, must not be shared between concurrent runs.
type Policy struct {
	// Kinds lists the failure kinds that are absorbed and retried. Any other failure is
	// returned on its first occurrence.
	Kinds []errs.Kind
	// Attempts is the total number of invocations allowed. Values below 1 mean one.
	Attempts int
	// Delay is the constant pause between attempts.
	Delay time.Duration
	// Notify, if set, observes each absorbed failure before the pause.
	Notify func(err error, attempt int, next time.Duration)
	// Timer replaces the wall-clock timer; nil uses a real one.
	Timer backoff.Timer
}

// Remote is the policy used for driver interactions.
func Remote(attempts int, delay time.Duration) Policy {
	return Policy{Kinds: []errs.Kind{errs.KindRemoteOperation}, Attempts: attempts, Delay: delay}
}

func (p Policy) recoverable(err error) bool {
	return slices.Contains(p.Kinds, errs.KindOf(err))
}

func (p Policy) backOff() backoff.BackOff {
	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(retries))
}

// run drives op and returns the last failure; exhausted reports whether the failure was
// a recoverable one that ran out of attempts.
func (p Policy) run(op func() error) (exhausted bool, err error) {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !p.recoverable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	var notify backoff.Notify
	if p.Notify != nil {
		notify = func(err error, next time.Duration) { p.Notify(err, attempt, next) }
	}
	err = backoff.RetryNotifyWithTimer(wrapped, p.backOff(), notify, p.Timer)
	if err == nil {
		return false, nil
	}
	return p.recoverable(err), err
}

// Run invokes op until it succeeds, fails with a non-recoverable kind, or the attempts
// are used up. On exhaustion the last failure is returned.
func (p Policy) Run(op func() error) error {
	_, err := p.run(op)
	return err
}

// Do is the raise-on-exhaustion policy: the last recoverable failure is returned once
// attempts run out.
func Do[T any](p Policy, op func() (T, error)) (T, error) {
	var out T
	err := p.Run(func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Swallow is the swallow-on-exhaustion policy: running out of attempts yields
// (zero, false, nil). Non-recoverable failures are still returned.
func Swallow[T any](p Policy, op func() (T, error)) (T, bool, error) {
	var out T
	exhausted, err := p.run(func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	var zero T
	switch {
	case err == nil:
		return out, true, nil
	case exhausted:
		return zero, false, nil
	default:
		return zero, false, err
	}
}

// Wrap returns op guarded by the raise-on-exhaustion policy.
func Wrap[T any](p Policy, op func() (T, error)) func() (T, error) {
	return func() (T, error) { return Do(p, op) }
}

// Call applies fn to arg under the raise-on-exhaustion policy.
func Call[A, T any](p Policy, fn func(A) (T, error), arg A) (T, error) {
	return Do(p, func() (T, error) { return fn(arg) })
}
