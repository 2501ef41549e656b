package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/loykin/drivr/internal/errs"
)

// countingTimer fires immediately and records every requested pause.
type countingTimer struct {
	c      chan time.Time
	sleeps []time.Duration
}

func newCountingTimer() *countingTimer {
	return &countingTimer{c: make(chan time.Time, 1)}
}

func (t *countingTimer) Start(d time.Duration) {
	t.sleeps = append(t.sleeps, d)
	t.c <- time.Now()
}
func (t *countingTimer) Stop()               {}
func (t *countingTimer) C() <-chan time.Time { return t.c }

func failing(times int, kind errs.Kind) (func() (string, error), *int) {
	calls := 0
	return func() (string, error) {
		calls++
		if calls <= times {
			return "", errs.E(kind, "op", errors.New("transient"))
		}
		return "ok", nil
	}, &calls
}

func TestDoSucceedsAfterKFailures(t *testing.T) {
	const n = 5
	for k := 0; k < n; k++ {
		timer := newCountingTimer()
		p := Remote(n, 250*time.Millisecond)
		p.Timer = timer
		op, calls := failing(k, errs.KindRemoteOperation)
		got, err := Do(p, op)
		if err != nil {
			t.Fatalf("k=%d: unexpected error %v", k, err)
		}
		if got != "ok" {
			t.Fatalf("k=%d: got %q", k, got)
		}
		if *calls != k+1 {
			t.Fatalf("k=%d: calls = %d, want %d", k, *calls, k+1)
		}
		if len(timer.sleeps) != k {
			t.Fatalf("k=%d: sleeps = %d, want %d", k, len(timer.sleeps), k)
		}
		for _, d := range timer.sleeps {
			if d != 250*time.Millisecond {
				t.Fatalf("k=%d: pause %v, want constant 250ms", k, d)
			}
		}
	}
}

func TestDoRaisesOnExhaustionWithoutTrailingSleep(t *testing.T) {
	timer := newCountingTimer()
	p := Remote(3, time.Second)
	p.Timer = timer
	op, calls := failing(100, errs.KindRemoteOperation)
	_, err := Do(p, op)
	if errs.KindOf(err) != errs.KindRemoteOperation {
		t.Fatalf("expected last remote failure, got %v", err)
	}
	if *calls != 3 {
		t.Fatalf("calls = %d, want 3", *calls)
	}
	if len(timer.sleeps) != 2 {
		t.Fatalf("sleeps = %d, want 2", len(timer.sleeps))
	}
}

func TestSwallowReturnsNoResultOnExhaustion(t *testing.T) {
	timer := newCountingTimer()
	p := Remote(4, time.Millisecond)
	p.Timer = timer
	op, calls := failing(100, errs.KindRemoteOperation)
	got, ok, err := Swallow(p, op)
	if err != nil {
		t.Fatalf("swallow must not return the exhausted failure: %v", err)
	}
	if ok || got != "" {
		t.Fatalf("expected no result, got %q ok=%v", got, ok)
	}
	if *calls != 4 || len(timer.sleeps) != 3 {
		t.Fatalf("calls=%d sleeps=%d", *calls, len(timer.sleeps))
	}

	op, _ = failing(1, errs.KindRemoteOperation)
	got, ok, err = Swallow(p, op)
	if err != nil || !ok || got != "ok" {
		t.Fatalf("expected success after one failure, got %q ok=%v err=%v", got, ok, err)
	}
}

func TestNonRecoverableFailsImmediately(t *testing.T) {
	for _, swallow := range []bool{false, true} {
		timer := newCountingTimer()
		p := Remote(5, time.Second)
		p.Timer = timer
		op, calls := failing(100, errs.KindSelectorValidation)
		var err error
		if swallow {
			_, _, err = Swallow(p, op)
		} else {
			_, err = Do(p, op)
		}
		if errs.KindOf(err) != errs.KindSelectorValidation {
			t.Fatalf("swallow=%v: expected selector failure, got %v", swallow, err)
		}
		if *calls != 1 || len(timer.sleeps) != 0 {
			t.Fatalf("swallow=%v: calls=%d sleeps=%d", swallow, *calls, len(timer.sleeps))
		}
	}
}

func TestUntaggedErrorsAreNotRetried(t *testing.T) {
	timer := newCountingTimer()
	p := Remote(5, time.Second)
	p.Timer = timer
	calls := 0
	err := p.Run(func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 1 || len(timer.sleeps) != 0 {
		t.Fatalf("err=%v calls=%d sleeps=%d", err, calls, len(timer.sleeps))
	}
}

func TestZeroAndOneAttemptsRunOnce(t *testing.T) {
	for _, n := range []int{0, 1} {
		timer := newCountingTimer()
		p := Remote(n, time.Second)
		p.Timer = timer
		op, calls := failing(100, errs.KindRemoteOperation)
		if _, err := Do(p, op); err == nil {
			t.Fatalf("attempts=%d: expected failure", n)
		}
		if *calls != 1 || len(timer.sleeps) != 0 {
			t.Fatalf("attempts=%d: calls=%d sleeps=%d", n, *calls, len(timer.sleeps))
		}
	}
}

func TestWrapAndCallShareSemantics(t *testing.T) {
	p := Remote(3, 0)
	p.Timer = newCountingTimer()
	op, calls := failing(2, errs.KindRemoteOperation)
	wrapped := Wrap(p, op)
	if got, err := wrapped(); err != nil || got != "ok" || *calls != 3 {
		t.Fatalf("Wrap: got %q err=%v calls=%d", got, err, *calls)
	}

	p.Timer = newCountingTimer()
	seen := 0
	double := func(x int) (int, error) {
		seen++
		if seen < 2 {
			return 0, errs.Remote("double", errors.New("flaky"))
		}
		return 2 * x, nil
	}
	if got, err := Call(p, double, 21); err != nil || got != 42 || seen != 2 {
		t.Fatalf("Call: got %d err=%v seen=%d", got, err, seen)
	}
}

func TestNotifyReportsAttemptNumbers(t *testing.T) {
	p := Remote(4, 10*time.Millisecond)
	p.Timer = newCountingTimer()
	var attempts []int
	p.Notify = func(_ error, attempt int, next time.Duration) {
		if next != 10*time.Millisecond {
			t.Errorf("next = %v", next)
		}
		attempts = append(attempts, attempt)
	}
	op, _ := failing(2, errs.KindRemoteOperation)
	if _, err := Do(p, op); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("attempts = %v", attempts)
	}
}
