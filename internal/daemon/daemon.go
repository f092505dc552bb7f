// Package daemon runs the job runtime as a long-lived service: the HTTP API, the job
// workers, scheduled publications and configuration reloads.
package daemon

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/netutil"

	"git.home.luguber.info/inful/bookversions/internal/api"
	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/logfields"
	"git.home.luguber.info/inful/bookversions/internal/metrics"
	"git.home.luguber.info/inful/bookversions/internal/version"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Daemon represents the main daemon service.
type Daemon struct {
	config     *config.Config
	configPath string
	status     atomic.Value // Status
	startTime  time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	logger     *slog.Logger

	rt        *Runtime
	server    *api.Server
	scheduler *Scheduler
	watcher   *ConfigWatcher

	listener net.Listener
	runCtx   context.Context
	serveErr chan error
}

// New builds the runtime for cfg. configPath enables reload on change when set.
func New(ctx context.Context, cfg *config.Config, configPath string, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt, err := NewRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		stopChan:   make(chan struct{}),
		logger:     logger,
		rt:         rt,
		serveErr:   make(chan error, 1),
	}
	d.status.Store(StatusStopped)

	opts := []api.Option{api.WithHooks(rt.Hooks), api.WithLogger(logger)}
	if rt.Registry != nil {
		opts = append(opts, api.WithMetrics(cfg.Metrics.Path, metrics.HTTPHandler(rt.Registry)))
	}
	if rt.Journal != nil {
		opts = append(opts, api.WithJournal(rt.Journal))
	}
	d.server = api.NewServer(cfg.Server.Listen, rt.Jobs, opts...)

	d.scheduler, err = NewScheduler(rt.Jobs, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if configPath != "" {
		d.watcher, err = NewConfigWatcher(configPath, d, logger)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}
	return d, nil
}

// Runtime exposes the wired components.
func (d *Daemon) Runtime() *Runtime { return d.rt }

// Start starts every component and blocks until ctx is done, Stop is called or the
// HTTP server fails. Callers run Stop afterwards.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not in stopped state: %s", d.GetStatus())
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.logger.Info("Starting bookversions daemon", slog.String("version", version.Version))

	l, err := net.Listen("tcp", d.config.Server.Listen)
	if err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", d.config.Server.Listen, err)
	}
	if n := d.config.Server.MaxConnections; n > 0 {
		l = netutil.LimitListener(l, n)
	}
	d.listener = l

	runCtx, cancel := d.stopAwareContext(ctx)
	defer cancel()
	d.runCtx = runCtx

	d.rt.Queue.Start(runCtx)

	if err := d.scheduler.Apply(runCtx, d.config.Schedules); err != nil {
		d.logger.Error("Failed to apply schedules", logfields.Error(err))
	}
	d.scheduler.Start()

	if d.watcher != nil {
		if err := d.watcher.Start(runCtx); err != nil {
			d.logger.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	go func() {
		if err := d.server.Serve(l); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			d.serveErr <- err
		}
	}()

	d.status.Store(StatusRunning)
	d.logger.Info("Bookversions daemon started",
		slog.String("addr", l.Addr().String()),
		slog.Int("workers", d.config.Jobs.Workers),
		slog.Int("schedules", len(d.config.Schedules)))
	d.mu.Unlock()

	select {
	case <-runCtx.Done():
		return nil
	case err := <-d.serveErr:
		d.status.Store(StatusError)
		return fmt.Errorf("http server: %w", err)
	}
}

// Addr returns the bound API address once the daemon is running.
func (d *Daemon) Addr() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Stop shuts the components down in reverse start order.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.GetStatus()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}
	d.status.Store(StatusStopping)
	d.logger.Info("Stopping bookversions daemon")
	d.stopOnce.Do(func() { close(d.stopChan) })

	if d.watcher != nil {
		if err := d.watcher.Stop(); err != nil {
			d.logger.Error("Failed to stop config watcher", logfields.Error(err))
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		d.logger.Error("Failed to stop scheduler", logfields.Error(err))
	}
	if err := d.server.Shutdown(ctx); err != nil {
		d.logger.Error("Failed to stop HTTP server", logfields.Error(err))
	}
	d.rt.Queue.Stop(ctx)
	d.rt.Close()

	d.status.Store(StatusStopped)
	d.logger.Info("Bookversions daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetConfig returns the current daemon configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// ReloadConfig applies schedules and job retry settings from newConfig. Sections
// bound at startup are kept and a warning names them.
func (d *Daemon) ReloadConfig(ctx context.Context, newConfig *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("Reloading daemon configuration")
	old := d.config
	for _, section := range restartRequired(old, newConfig) {
		d.logger.Warn("Configuration section changed; restart required to apply", slog.String("section", section))
	}

	schedCtx := d.runCtx
	if schedCtx == nil {
		schedCtx = ctx
	}
	if err := d.scheduler.Apply(schedCtx, newConfig.Schedules); err != nil {
		// keep the old schedules running
		if rerr := d.scheduler.Apply(schedCtx, old.Schedules); rerr != nil {
			d.logger.Error("Failed to restore schedules", logfields.Error(rerr))
		}
		return fmt.Errorf("failed to apply schedules: %w", err)
	}
	d.rt.Queue.ConfigureRetry(newConfig.Jobs)

	reloaded := *old
	reloaded.Schedules = newConfig.Schedules
	reloaded.Jobs.MaxRetries = newConfig.Jobs.MaxRetries
	reloaded.Jobs.RetryBackoff = newConfig.Jobs.RetryBackoff
	reloaded.Jobs.RetryInitialDelay = newConfig.Jobs.RetryInitialDelay
	reloaded.Jobs.RetryMaxDelay = newConfig.Jobs.RetryMaxDelay
	d.config = &reloaded
	d.rt.Config = &reloaded

	d.logger.Info("Configuration reloaded successfully", slog.Int("schedules", len(newConfig.Schedules)))
	return nil
}

func restartRequired(old, next *config.Config) []string {
	var sections []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			sections = append(sections, name)
		}
	}
	check("store", old.Store, next.Store)
	check("auth", old.Auth, next.Auth)
	check("events", old.Events, next.Events)
	check("metrics", old.Metrics, next.Metrics)
	check("archive", old.Archive, next.Archive)
	check("server", old.Server, next.Server)
	check("macros", old.Macros, next.Macros)
	check("publication", old.Publication, next.Publication)
	check("jobs.workers", old.Jobs.Workers, next.Jobs.Workers)
	check("jobs.queue_size", old.Jobs.QueueSize, next.Jobs.QueueSize)
	return sections
}
