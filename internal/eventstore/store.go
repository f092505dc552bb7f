// Package eventstore journals lifecycle events in SQLite and rebuilds the publication
// history from them.
package eventstore

import (
	"context"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/events"
)

// Store persists lifecycle events and reads them back in append order.
type Store interface {
	// Append adds evt to the journal. Appending an event id twice is a no-op.
	Append(ctx context.Context, evt events.Event) error

	// ByJob returns the events emitted by one job.
	ByJob(ctx context.Context, jobID string) ([]events.Event, error)

	// Range returns the events with a timestamp in [start, end].
	Range(ctx context.Context, start, end time.Time) ([]events.Event, error)

	// Close closes the store and releases resources.
	Close() error
}
