// Package history exports action run events to analytics stores. Sinks are
// optional; a failed send is logged by the caller and never changes the
// outcome of a run.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType defines the kind of run event.
type EventType string

const (
	EventRun    EventType = "run"
	EventDryRun EventType = "dry_run"
)

// Event represents one dispatched action.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Service    string    `json:"service"`
	Action     string    `json:"action"`
	Runtime    string    `json:"runtime"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	Changed    int       `json:"changed"`
}

// NewEvent stamps a fresh ID and the current time.
func NewEvent(service, action, runtime string, dryRun bool) Event {
	t := EventRun
	if dryRun {
		t = EventDryRun
	}
	return Event{
		ID:         uuid.New(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
		Service:    service,
		Action:     action,
		Runtime:    runtime,
	}
}

// Succeeded reports whether the action exited with 0.
func (e Event) Succeeded() bool { return e.ExitCode == 0 }

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Table is the default table name used by the SQL and ClickHouse sinks.
const Table = "action_history"
