package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/model"
)

// Publisher enqueues publication jobs.
type Publisher interface {
	Publish(ctx context.Context, configRef model.DocumentRef, user string) (string, error)
}

// Scheduler wraps a gocron scheduler running one duration job per configured schedule.
type Scheduler struct {
	scheduler gocron.Scheduler
	publisher Publisher
	logger    *slog.Logger

	mu   sync.Mutex
	jobs map[string]gocron.Job // by schedule name
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(publisher Publisher, logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: s,
		publisher: publisher,
		logger:    logger,
		jobs:      make(map[string]gocron.Job),
	}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Apply replaces the scheduled jobs with schedules. Schedules whose configuration
// reference does not parse are skipped and logged.
func (s *Scheduler) Apply(ctx context.Context, schedules []config.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		if err := s.scheduler.RemoveJob(job.ID()); err != nil {
			s.logger.Warn("Failed to remove scheduled publication", logfields.ScheduleName(name), logfields.Error(err))
		}
		delete(s.jobs, name)
	}

	for _, sched := range schedules {
		ref, err := model.ParseDocumentRef(sched.Configuration, model.DocumentRef{})
		if err != nil {
			s.logger.Error("Skipping schedule with invalid configuration reference",
				logfields.ScheduleName(sched.Name), logfields.Error(err))
			continue
		}
		job, err := s.scheduler.NewJob(
			gocron.DurationJob(sched.IntervalDuration()),
			gocron.NewTask(s.executePublish, ctx, sched.Name, ref, sched.User),
			gocron.WithName(sched.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", sched.Name, err)
		}
		s.jobs[sched.Name] = job
		s.logger.Info("Scheduled publication", logfields.ScheduleName(sched.Name),
			logfields.Config(ref.String()), slog.String("interval", sched.Interval))
	}
	return nil
}

// Names returns the currently scheduled names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// executePublish is called by gocron to enqueue a scheduled publication.
func (s *Scheduler) executePublish(ctx context.Context, name string, ref model.DocumentRef, user string) {
	id, err := s.publisher.Publish(ctx, ref, user)
	if err != nil {
		s.logger.Error("Failed to enqueue scheduled publication",
			logfields.ScheduleName(name), logfields.Config(ref.String()), logfields.Error(err))
		return
	}
	s.logger.Info("Enqueued scheduled publication", logfields.ScheduleName(name), logfields.JobID(id))
}
