package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed; callers switch on KindOf(err).
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfiguration
	KindLockTimeout
	KindSessionConflict
	KindRemoteOperation
	KindSelectorValidation
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindLockTimeout:
		return "lock timeout"
	case KindSessionConflict:
		return "session conflict"
	case KindRemoteOperation:
		return "remote operation"
	case KindSelectorValidation:
		return "selector validation"
	default:
		return "unknown"
	}
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so the Err* sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Err == nil
}

// Sentinels for errors.Is matching by kind.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrLockTimeout        = &Error{Kind: KindLockTimeout}
	ErrSessionConflict    = &Error{Kind: KindSessionConflict}
	ErrRemoteOperation    = &Error{Kind: KindRemoteOperation}
	ErrSelectorValidation = &Error{Kind: KindSelectorValidation}
)

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Config(op, format string, args ...any) error {
	return &Error{Kind: KindConfiguration, Op: op, Err: fmt.Errorf(format, args...)}
}

func Lock(op string, err error) error {
	return &Error{Kind: KindLockTimeout, Op: op, Err: err}
}

func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindSessionConflict, Op: op, Err: fmt.Errorf(format, args...)}
}

// Remote tags err as a recoverable remote-operation failure. A nil err yields nil.
func Remote(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindRemoteOperation {
		return err
	}
	return &Error{Kind: KindRemoteOperation, Op: op, Err: err}
}

func Selector(op, format string, args ...any) error {
	return &Error{Kind: KindSelectorValidation, Op: op, Err: fmt.Errorf(format, args...)}
}
