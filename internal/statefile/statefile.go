package statefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/loykin/drivr/internal/errs"
	"github.com/loykin/drivr/internal/metrics"
)

const (
	// LockSuffix is appended to a record's path to name its lock file.
	LockSuffix = ".lock"
	// DefaultTimeout bounds lock acquisition when none is given.
	DefaultTimeout = 15 * time.Second

	pollInterval = 25 * time.Millisecond
)

// File is a single value persisted at Path and shared between OS processes. Every
// access goes through the companion lock file.
type File[T any] struct {
	path    string
	codec   Codec[T]
	timeout time.Duration
}

func New[T any](path string, codec Codec[T], timeout time.Duration) *File[T] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &File[T]{path: path, codec: codec, timeout: timeout}
}

func (f *File[T]) Path() string     { return f.path }
func (f *File[T]) LockPath() string { return f.path + LockSuffix }

// Tx gives access to the record while the lock is held by Update.
type Tx[T any] struct{ f *File[T] }

func (tx *Tx[T]) Read() (T, bool, error) { return tx.f.read() }
func (tx *Tx[T]) Write(v T) error       { return tx.f.write(v) }
func (tx *Tx[T]) Clear() error          { return tx.f.clear() }

// Read returns the stored value; ok is false when nothing is recorded.
func (f *File[T]) Read(ctx context.Context) (v T, ok bool, err error) {
	err = f.Update(ctx, func(tx *Tx[T]) error {
		v, ok, err = tx.Read()
		return err
	})
	return v, ok, err
}

// Write replaces the whole record with v.
func (f *File[T]) Write(ctx context.Context, v T) error {
	return f.Update(ctx, func(tx *Tx[T]) error { return tx.Write(v) })
}

// Clear removes the record. Clearing an absent record is not an error.
func (f *File[T]) Clear(ctx context.Context) error {
	return f.Update(ctx, func(tx *Tx[T]) error { return tx.Clear() })
}

// Update runs fn with the lock held. The lock is released when fn returns, whether it
// failed or not.
func (f *File[T]) Update(ctx context.Context, fn func(tx *Tx[T]) error) error {
	unlock, err := f.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(&Tx[T]{f: f})
}

func (f *File[T]) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	fl := flock.New(f.LockPath())
	start := time.Now()
	locked, err := fl.TryLockContext(ctx, pollInterval)
	metrics.ObserveLockWait(filepath.Base(f.path), time.Since(start).Seconds())
	if err != nil || !locked {
		if err == nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, errs.Lock("lock "+f.LockPath(), fmt.Errorf("not acquired within %s", f.timeout))
		}
		return nil, fmt.Errorf("lock %s: %w", f.LockPath(), err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (f *File[T]) read() (T, bool, error) {
	var zero T
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, false, nil
		}
		return zero, false, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return zero, false, nil
	}
	v, err := f.codec.Decode(b)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return v, true, nil
}

// write goes through a temp file and rename so the record is replaced as a whole.
func (f *File[T]) write(v T) error {
	b, err := f.codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *File[T]) clear() error {
	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
