package jobs

import (
	"context"
	"time"
)

// Type represents the kind of work a job performs.
type Type string

const (
	TypePublish              Type = "publish"
	TypeRemoveVersionContent Type = "remove_version_content"
	TypeSetPagesStatus       Type = "set_pages_status"
)

// Status represents the current status of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Done reports whether the job has finished.
func (s Status) Done() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job id prefixes.
const (
	PrefixPublication   = "BookVersionsPublication"
	PrefixVersionRemove = "BookVersionsVersionRemove"
	PrefixSetPageStatus = "SetPageStatus"
)

// ISO-8601 basic format, UTC, millisecond precision.
const idTimestampLayout = "20060102T150405.000Z"

// NewID builds a job id of the form <prefix>_<discriminant>_<timestamp>.
func NewID(prefix, discriminant string, t time.Time) string {
	return prefix + "_" + discriminant + "_" + t.UTC().Format(idTimestampLayout)
}

// Progress tracks how far a running job got.
type Progress struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Current string `json:"current,omitempty"`
}

// ProgressFunc reports progress from inside a running job.
type ProgressFunc func(step, total int, current string)

// Runner performs the work of a job and returns its result.
type Runner func(ctx context.Context, progress ProgressFunc) (any, error)

// Job represents a single unit of asynchronous work in the queue.
type Job struct {
	ID          string        `json:"id"`
	Type        Type          `json:"type"`
	Status      Status        `json:"status"`
	User        string        `json:"user,omitempty"`
	Subject     string        `json:"subject,omitempty"` // the document the job works on
	CreatedAt   time.Time     `json:"created_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Progress    Progress      `json:"progress"`
	Retries     int           `json:"retries,omitempty"`
	Error       string        `json:"error,omitempty"`
	Result      any           `json:"result,omitempty"`

	run    Runner
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Err returns the error the job failed with, keeping its category.
func (j *Job) Err() error { return j.err }

func (j *Job) snapshot() *Job {
	cp := *j
	cp.run = nil
	cp.cancel = nil
	cp.done = nil
	return &cp
}
