package eventstore

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/bookversions/internal/events"
)

// Journal is an events.Publisher that appends every event to a Store and keeps the
// publication history projection current.
type Journal struct {
	store   Store
	history *PublicationHistory
}

// OpenJournal opens the SQLite journal at path and rebuilds the history from it.
func OpenJournal(ctx context.Context, path string, historySize int) (*Journal, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	j := NewJournal(store, historySize)
	if err := j.history.Rebuild(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("rebuild publication history: %w", err)
	}
	return j, nil
}

// NewJournal wraps store without reading it.
func NewJournal(store Store, historySize int) *Journal {
	return &Journal{store: store, history: NewPublicationHistory(store, historySize)}
}

// Publish journals evt and applies it to the history.
func (j *Journal) Publish(ctx context.Context, evt events.Event) error {
	if err := j.store.Append(ctx, evt); err != nil {
		return err
	}
	j.history.Apply(evt)
	return nil
}

// History returns the publication history projection.
func (j *Journal) History() *PublicationHistory { return j.history }

// Store returns the underlying event store.
func (j *Journal) Store() Store { return j.store }

func (j *Journal) Close() error { return j.store.Close() }
