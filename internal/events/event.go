// Package events publishes publication and job lifecycle events.
package events

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type identifies an event.
type Type string

const (
	PublicationStarted    Type = "publication.started"
	PagePublished         Type = "page.published"
	PageFailed            Type = "page.failed"
	PublicationCompleted  Type = "publication.completed"
	PublicationFailed     Type = "publication.failed"
	VersionContentRemoved Type = "version.content.removed"
	PageStatusChanged     Type = "page.status.changed"
)

// Event is one lifecycle notification.
type Event struct {
	ID      string         `json:"id"`
	Type    Type           `json:"type"`
	JobID   string         `json:"job_id,omitempty"`
	Subject string         `json:"subject"` // the document the event is about
	Time    time.Time      `json:"time"`
	Data    map[string]any `json:"data,omitempty"`
}

// New returns an event with a fresh id and the current time.
func New(typ Type, jobID, subject string, data map[string]any) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		JobID:   jobID,
		Subject: subject,
		Time:    time.Now().UTC(),
		Data:    data,
	}
}

// Publisher delivers events. Publish failures must not abort the work that emitted them;
// callers log and continue.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// Fanout delivers every event to each of its publishers.
type Fanout []Publisher

// Publish delivers evt to every publisher, even after one fails.
func (f Fanout) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemoryPublisher keeps events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (m *MemoryPublisher) Publish(_ context.Context, evt Event) error {
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

// Events returns a copy of the published events in order.
func (m *MemoryPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// OfType returns the published events of typ.
func (m *MemoryPublisher) OfType(typ Type) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
