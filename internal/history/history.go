package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventServiceStart  EventType = "service_start"
	EventServiceReuse  EventType = "service_reuse"
	EventServiceStop   EventType = "service_stop"
	EventSessionCreate EventType = "session_create"
	EventSessionReuse  EventType = "session_reuse"
	EventSessionClear  EventType = "session_clear"
)

// Record is the state of the driver and its session when the event occurred.
type Record struct {
	Name      string `json:"name"`
	PID       int    `json:"pid"`
	Port      int    `json:"port,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Status    string `json:"status"`
}

// Event represents a lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Record     Record    `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Emit sends an event to sink, stamping OccurredAt when unset. A nil sink drops the
// event. Send failures are logged and never returned: history is an audit trail, not
// part of the lifecycle.
func Emit(ctx context.Context, sink Sink, log *slog.Logger, typ EventType, rec Record) {
	if sink == nil {
		return
	}
	e := Event{Type: typ, OccurredAt: time.Now().UTC(), Record: rec}
	if err := sink.Send(ctx, e); err != nil {
		if log == nil {
			log = slog.Default()
		}
		log.Warn("history send failed", "event", string(typ), "error", err)
	}
}

// Multi fans an event out to several sinks and returns the first failure.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every member that holds resources.
func (m Multi) Close() error {
	var all []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			all = append(all, c.Close())
		}
	}
	return errors.Join(all...)
}
