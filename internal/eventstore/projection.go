package eventstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/events"
)

// Publication run states.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted" // no outcome was journaled before the process stopped
)

// PageFailure is one page a publication run could not publish.
type PageFailure struct {
	Page  string `json:"page"`
	Error string `json:"error"`
}

// PublicationSummary is the read model of one publication run.
type PublicationSummary struct {
	JobID         string        `json:"job_id"`
	Configuration string        `json:"configuration"`
	Destination   string        `json:"destination,omitempty"`
	Version       string        `json:"version,omitempty"`
	Status        string        `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	Published     int           `json:"published"`
	Unchanged     int           `json:"unchanged"`
	Skipped       int           `json:"skipped"`
	Failed        int           `json:"failed"`
	Removed       int           `json:"removed"`
	Failures      []PageFailure `json:"failures,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (s *PublicationSummary) finished() bool {
	return s.Status != StatusRunning
}

// PublicationHistory maintains an in-memory view of publication runs, reconstructed
// from the journal and kept current by Apply.
type PublicationHistory struct {
	mu       sync.RWMutex
	store    Store
	runs     map[string]*PublicationSummary // jobID -> summary
	history  []*PublicationSummary          // finished runs, newest first
	maxSize  int
	lastSync time.Time
}

// NewPublicationHistory creates a projection backed by store.
func NewPublicationHistory(store Store, maxHistorySize int) *PublicationHistory {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &PublicationHistory{
		store:   store,
		runs:    make(map[string]*PublicationSummary),
		history: make([]*PublicationSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every journaled event. Runs without an
// outcome belong to a previous process and are marked interrupted.
func (p *PublicationHistory) Rebuild(ctx context.Context) error {
	evts, err := p.store.Range(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*PublicationSummary)
	p.history = make([]*PublicationSummary, 0, p.maxSize)
	for _, evt := range evts {
		p.applyLocked(evt)
	}
	for _, run := range p.runs {
		if run.Status == StatusRunning {
			run.Status = StatusInterrupted
			p.addToHistoryLocked(run)
		}
	}
	slices.SortStableFunc(p.history, func(a, b *PublicationSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes one event.
func (p *PublicationHistory) Apply(evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(evt)
}

func (p *PublicationHistory) applyLocked(evt events.Event) {
	if evt.JobID == "" {
		return
	}
	run, ok := p.runs[evt.JobID]
	if !ok {
		switch evt.Type {
		case events.PublicationStarted, events.PublicationFailed:
		default:
			// not a publication job, or its start fell out of the journal
			return
		}
		run = &PublicationSummary{
			JobID:         evt.JobID,
			Configuration: evt.Subject,
			Status:        StatusRunning,
			StartedAt:     evt.Time,
		}
		p.runs[evt.JobID] = run
	}

	switch evt.Type {
	case events.PublicationStarted:
		// a retried job starts over
		*run = PublicationSummary{
			JobID:         evt.JobID,
			Configuration: evt.Subject,
			Destination:   stringField(evt.Data, "destination"),
			Version:       stringField(evt.Data, "version"),
			Status:        StatusRunning,
			StartedAt:     evt.Time,
		}
		p.removeFromHistoryLocked(evt.JobID)

	case events.PageFailed:
		run.Failures = append(run.Failures, PageFailure{Page: evt.Subject, Error: stringField(evt.Data, "error")})

	case events.PublicationCompleted:
		run.Status = StatusCompleted
		if boolField(evt.Data, "cancelled") {
			run.Status = StatusCancelled
		}
		run.Published = intField(evt.Data, "published")
		run.Unchanged = intField(evt.Data, "unchanged")
		run.Skipped = intField(evt.Data, "skipped")
		run.Failed = intField(evt.Data, "failed")
		run.Removed = intField(evt.Data, "removed")
		p.finishLocked(run, evt.Time)

	case events.PublicationFailed:
		run.Status = StatusFailed
		run.Error = stringField(evt.Data, "error")
		p.finishLocked(run, evt.Time)
	}
}

func (p *PublicationHistory) finishLocked(run *PublicationSummary, at time.Time) {
	done := at
	run.CompletedAt = &done
	run.Duration = done.Sub(run.StartedAt)
	p.addToHistoryLocked(run)
}

// addToHistoryLocked puts a finished run at the front of the history.
func (p *PublicationHistory) addToHistoryLocked(run *PublicationSummary) {
	p.removeFromHistoryLocked(run.JobID)
	p.history = append([]*PublicationSummary{run}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

func (p *PublicationHistory) removeFromHistoryLocked(jobID string) {
	p.history = slices.DeleteFunc(p.history, func(s *PublicationSummary) bool { return s.JobID == jobID })
}

// pruneLocked drops finished runs that fell out of the bounded history.
func (p *PublicationHistory) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.JobID] = struct{}{}
	}
	for id, run := range p.runs {
		if !run.finished() {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.runs, id)
		}
	}
}

// History returns copies of the finished runs, newest first.
func (p *PublicationHistory) History() []PublicationSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PublicationSummary, 0, len(p.history))
	for _, h := range p.history {
		out = append(out, copySummary(h))
	}
	return out
}

// Run returns the summary of one publication job.
func (p *PublicationHistory) Run(jobID string) (PublicationSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	run, ok := p.runs[jobID]
	if !ok {
		return PublicationSummary{}, false
	}
	return copySummary(run), true
}

// Active returns the runs still in progress, oldest first.
func (p *PublicationHistory) Active() []PublicationSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []PublicationSummary
	for _, run := range p.runs {
		if !run.finished() {
			out = append(out, copySummary(run))
		}
	}
	slices.SortFunc(out, func(a, b PublicationSummary) int { return a.StartedAt.Compare(b.StartedAt) })
	return out
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *PublicationHistory) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}

func copySummary(s *PublicationSummary) PublicationSummary {
	cp := *s
	cp.Failures = slices.Clone(s.Failures)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// Event data read back from the journal is JSON-decoded, so numbers arrive as float64.
func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

func boolField(data map[string]any, key string) bool {
	b, _ := data[key].(bool)
	return b
}
