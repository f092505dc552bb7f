package jobs

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/metrics"
	"git.home.luguber.info/inful/bookversions/internal/retry"
)

var (
	// ErrQueueFull is returned by Submit when no slot is free.
	ErrQueueFull = stderrors.New("job queue is full")
	// ErrQueueStopped is returned by Submit after Stop and recorded on jobs that never ran.
	ErrQueueStopped = stderrors.New("job queue is stopped")
	// ErrUnknownJob is returned by Wait for ids the queue does not know.
	ErrUnknownJob = stderrors.New("unknown job")
)

// Queue runs jobs on a bounded set of workers and remembers recently finished ones.
type Queue struct {
	jobs        chan *Job
	workers     int
	maxSize     int
	mu          sync.RWMutex
	known       map[string]*Job
	active      map[string]*Job
	history     []*Job
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	stopped     bool
	wg          sync.WaitGroup

	retryPolicy retry.Policy
	recorder    metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewQueue creates a queue sized from cfg. Zero values fall back to defaults.
func NewQueue(cfg config.JobsConfig) *Queue {
	maxSize := cfg.QueueSize
	if maxSize <= 0 {
		maxSize = 100
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = 50
	}
	q := &Queue{
		jobs:        make(chan *Job, maxSize),
		workers:     workers,
		maxSize:     maxSize,
		known:       make(map[string]*Job),
		active:      make(map[string]*Job),
		historySize: historySize,
		stopChan:    make(chan struct{}),
		retryPolicy: retry.DefaultPolicy(),
		recorder:    metrics.NoopRecorder{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	q.ConfigureRetry(cfg)
	return q
}

// ConfigureRetry updates the retry policy. Jobs already running keep the policy
// they started with.
func (q *Queue) ConfigureRetry(cfg config.JobsConfig) {
	policy := retry.FromJobs(cfg)
	q.mu.Lock()
	q.retryPolicy = policy
	q.mu.Unlock()
}

// SetRecorder injects a metrics recorder (optional).
func (q *Queue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	q.recorder = r
}

// SetLogger replaces the queue logger.
func (q *Queue) SetLogger(l *slog.Logger) {
	if l != nil {
		q.logger = l
	}
}

// Start begins processing jobs with the configured number of workers.
func (q *Queue) Start(ctx context.Context) {
	q.logger.Info("Starting job queue", slog.Int("workers", q.workers), slog.Int("max_size", q.maxSize))
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs, fails queued ones and waits for the workers to exit or
// ctx to end.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		close(q.stopChan)
		for _, job := range q.active {
			if job.cancel != nil {
				job.cancel()
			}
		}
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		q.logger.Warn("Job queue stop timed out", logfields.Error(ctx.Err()))
	}

	for {
		select {
		case job := <-q.jobs:
			q.finish(job, ErrQueueStopped)
		default:
			return
		}
	}
}

// Length returns the number of queued jobs.
func (q *Queue) Length() int {
	return len(q.jobs)
}

// Submit creates a job and queues it. The returned job is a snapshot.
func (q *Queue) Submit(id string, typ Type, user, subject string, run Runner) (*Job, error) {
	if id == "" {
		return nil, errors.ValidationFailed("id", "job id is required")
	}
	if run == nil {
		return nil, errors.ValidationFailed("run", "job runner is required")
	}
	job := &Job{
		ID:        id,
		Type:      typ,
		Status:    StatusQueued,
		User:      user,
		Subject:   subject,
		CreatedAt: q.now(),
		run:       run,
		done:      make(chan struct{}),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return nil, ErrQueueStopped
	}
	if _, exists := q.known[id]; exists {
		return nil, errors.ValidationFailed("id", "job "+id+" already exists")
	}
	select {
	case q.jobs <- job:
	default:
		return nil, ErrQueueFull
	}
	q.known[id] = job
	q.recorder.SetQueueDepth(len(q.jobs))
	q.logger.Info("Job queued", logfields.JobID(id), logfields.JobType(string(typ)), logfields.User(user))
	return job.snapshot(), nil
}

// Snapshot returns a copy of a job that is queued, running or in the history.
func (q *Queue) Snapshot(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if j, ok := q.known[id]; ok {
		return j.snapshot(), true
	}
	return nil, false
}

// ActiveJobs returns copies of the running jobs.
func (q *Queue) ActiveJobs() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Job, 0, len(q.active))
	for _, j := range q.active {
		out = append(out, j.snapshot())
	}
	return out
}

// History returns copies of finished jobs, oldest first.
func (q *Queue) History() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]*Job, 0, len(q.history))
	for _, j := range q.history {
		out = append(out, j.snapshot())
	}
	return out
}

// Wait blocks until the job finishes or ctx is done and returns its final snapshot.
func (q *Queue) Wait(ctx context.Context, id string) (*Job, error) {
	q.mu.RLock()
	job, ok := q.known[id]
	q.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownJob
	}
	select {
	case <-job.done:
		q.mu.RLock()
		defer q.mu.RUnlock()
		return job.snapshot(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	startTime := q.now()
	q.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &startTime
	job.Status = StatusRunning
	q.active[job.ID] = job
	q.recorder.SetQueueDepth(len(q.jobs))
	q.mu.Unlock()

	log := q.logger.With(logfields.JobID(job.ID), logfields.JobType(string(job.Type)))
	log.Info("Job started", slog.String("worker", workerID))

	result, err := q.execute(jobCtx, job, log)

	duration := q.now().Sub(startTime)
	q.recorder.ObserveJobDuration(string(job.Type), duration)
	switch {
	case err == nil:
		q.recorder.IncJobOutcome(string(job.Type), metrics.JobCompleted)
		log.Info("Job completed", logfields.DurationMS(float64(duration.Milliseconds())))
	case errors.IsCategory(err, errors.CategoryPermission):
		q.recorder.IncJobOutcome(string(job.Type), metrics.JobDenied)
		log.Error("Job denied", logfields.Error(err))
	default:
		q.recorder.IncJobOutcome(string(job.Type), metrics.JobFailed)
		log.Error("Job failed", logfields.Error(err))
	}

	q.mu.Lock()
	job.Result = result
	q.mu.Unlock()
	q.finish(job, err)
}

func (q *Queue) execute(ctx context.Context, job *Job, log *slog.Logger) (any, error) {
	q.mu.RLock()
	policy := q.retryPolicy
	q.mu.RUnlock()
	if policy.Initial <= 0 {
		policy = retry.DefaultPolicy()
	}

	progress := func(step, total int, current string) {
		q.mu.Lock()
		job.Progress = Progress{Step: step, Total: total, Current: current}
		q.mu.Unlock()
	}

	var result any
	err := policy.Do(ctx, errors.IsRetryable, func(ctx context.Context) error {
		var runErr error
		result, runErr = job.run(ctx, progress)
		return runErr
	}, func(attempt int, delay time.Duration, err error) {
		q.mu.Lock()
		job.Retries = attempt
		q.mu.Unlock()
		q.recorder.IncJobRetry(string(job.Type))
		log.Warn("Transient job error, retrying",
			slog.Int("retry", attempt),
			slog.Int("max_retries", policy.MaxRetries),
			slog.Duration("delay", delay),
			logfields.Error(err))
	})
	if err != nil && errors.IsRetryable(err) && job.Retries > 0 && job.Retries >= policy.MaxRetries {
		q.recorder.IncJobRetryExhausted(string(job.Type))
	}
	return result, err
}

// finish marks job done, moves it to the history and releases waiters.
func (q *Queue) finish(job *Job, err error) {
	endTime := q.now()
	q.mu.Lock()
	job.CompletedAt = &endTime
	if job.StartedAt != nil {
		job.Duration = endTime.Sub(*job.StartedAt)
	}
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		job.err = err
	} else {
		job.Status = StatusCompleted
	}
	delete(q.active, job.ID)
	q.addToHistory(job)
	q.mu.Unlock()
	close(job.done)
}

func (q *Queue) addToHistory(job *Job) {
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		drop := len(q.history) - q.historySize
		for _, old := range q.history[:drop] {
			delete(q.known, old.ID)
		}
		copy(q.history, q.history[drop:])
		q.history = q.history[:q.historySize]
	}
}
