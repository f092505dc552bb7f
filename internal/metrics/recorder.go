package metrics

import "time"

// PageOutcome enumerates per-page publication results for counters.
type PageOutcome string

const (
	PagePublished PageOutcome = "published"
	PageUnchanged PageOutcome = "unchanged"
	PageSkipped   PageOutcome = "skipped"
	PageFailed    PageOutcome = "failed"
	PageRemoved   PageOutcome = "removed"
)

// JobOutcome enumerates final job states.
type JobOutcome string

const (
	JobCompleted JobOutcome = "completed"
	JobFailed    JobOutcome = "failed"
	JobDenied    JobOutcome = "denied"
)

// Recorder defines observability hooks for publication runs and the job queue. Implementations
// may forward to Prometheus, OpenTelemetry, etc. All methods must be safe for nil receivers
// when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObservePublicationDuration(d time.Duration)
	IncPageOutcome(outcome PageOutcome)
	IncResolutionGap(kind string) // kind: not_configured|not_published
	IncJobOutcome(jobType string, outcome JobOutcome)
	ObserveJobDuration(jobType string, d time.Duration)
	SetQueueDepth(n int)
	IncJobRetry(jobType string)
	IncJobRetryExhausted(jobType string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObservePublicationDuration(time.Duration) {}
func (NoopRecorder) IncPageOutcome(PageOutcome)               {}
func (NoopRecorder) IncResolutionGap(string)                  {}
func (NoopRecorder) IncJobOutcome(string, JobOutcome)         {}
func (NoopRecorder) ObserveJobDuration(string, time.Duration) {}
func (NoopRecorder) SetQueueDepth(int)                        {}
func (NoopRecorder) IncJobRetry(string)                       {}
func (NoopRecorder) IncJobRetryExhausted(string)              {}
