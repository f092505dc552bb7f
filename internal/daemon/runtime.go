package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/bookversions/internal/archive"
	"git.home.luguber.info/inful/bookversions/internal/auth"
	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/events"
	"git.home.luguber.info/inful/bookversions/internal/eventstore"
	"git.home.luguber.info/inful/bookversions/internal/jobs"
	"git.home.luguber.info/inful/bookversions/internal/lifecycle"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/metrics"
	"git.home.luguber.info/inful/bookversions/internal/publication"
	"git.home.luguber.info/inful/bookversions/internal/repository"
	"git.home.luguber.info/inful/bookversions/internal/transform"
)

// Runtime is the set of components built from one configuration. The CLI uses it for
// one-shot commands and the daemon keeps it for its lifetime.
type Runtime struct {
	Config     *config.Config
	Store      repository.Store
	Events     events.Publisher
	Journal    *eventstore.Journal // nil when events.journal is unset
	Registry   *prometheus.Registry // nil when metrics are disabled
	Recorder   metrics.Recorder
	Authorizer auth.Authorizer
	Publisher  *publication.Publisher
	Queue      *jobs.Queue
	Jobs       *jobs.Service
	Hooks      *lifecycle.Hooks
	Logger     *slog.Logger
}

// NewRuntime opens the store and the event publisher and wires the job service. The
// queue is created but not started.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Recorder: metrics.NoopRecorder{}}

	store, err := repository.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.Store = store
	if err := rt.seed(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	rt.Events, err = events.Open(cfg.Events)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open event publisher: %w", err)
	}
	if cfg.Events.Journal != "" {
		rt.Journal, err = eventstore.OpenJournal(ctx, cfg.Events.Journal, cfg.Jobs.HistorySize)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open event journal: %w", err)
		}
		rt.Events = events.Fanout{rt.Events, rt.Journal}
	}

	if cfg.Metrics.Enabled {
		rt.Registry = metrics.NewRegistry()
		rt.Recorder = metrics.NewPrometheusRecorder(rt.Registry)
	}

	rt.Authorizer, err = auth.FromConfig(cfg.Auth)
	if err != nil {
		rt.Close()
		return nil, err
	}

	descriptors, err := transform.DescriptorsFromConfig(cfg.Macros)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("macros: %w", err)
	}
	opts := []publication.Option{
		publication.WithEvents(rt.Events),
		publication.WithMetrics(rt.Recorder),
		publication.WithMacros(transform.NewRegistry(descriptors...)),
		publication.WithLogger(logger),
	}
	if cfg.Archive.Enabled {
		archiver, err := archive.New(store, cfg.Archive, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, publication.WithArchiver(archiver))
	}
	rt.Publisher = publication.New(store, opts...)

	rt.Queue = jobs.NewQueue(cfg.Jobs)
	rt.Queue.SetRecorder(rt.Recorder)
	rt.Queue.SetLogger(logger)
	rt.Jobs = jobs.NewService(store, rt.Queue, rt.Publisher,
		jobs.WithAuthorizer(rt.Authorizer),
		jobs.WithEventPublisher(rt.Events),
		jobs.WithServiceLogger(logger))
	rt.Hooks = lifecycle.New(store,
		lifecycle.WithAuthorizer(rt.Authorizer),
		lifecycle.WithRemover(rt.Jobs),
		lifecycle.WithLogger(logger))
	return rt, nil
}

// seed loads the configured fixture into an empty store.
func (rt *Runtime) seed(ctx context.Context) error {
	path := rt.Config.Store.Fixture
	if path == "" {
		return nil
	}
	existing, err := rt.Store.Query(ctx, repository.Query{})
	if err != nil {
		return fmt.Errorf("inspect store: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	n, err := repository.LoadFixtureFile(ctx, rt.Store, path)
	if err != nil {
		return fmt.Errorf("load fixture %s: %w", path, err)
	}
	rt.Logger.Info("Seeded store from fixture", slog.String("path", path), slog.Int("documents", n))
	return nil
}

// Close releases the store and the event publisher.
func (rt *Runtime) Close() {
	if rt.Events != nil {
		if err := rt.Events.Close(); err != nil {
			rt.Logger.Warn("Failed to close event publisher", logfields.Error(err))
		}
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			rt.Logger.Warn("Failed to close store", logfields.Error(err))
		}
	}
}
