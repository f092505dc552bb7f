package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/daemon"
	"git.home.luguber.info/inful/bookversions/internal/errors"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Listen string `help:"Override server.listen"`
	Watch  bool   `help:"Reload schedules when the configuration file changes" default:"true" negatable:""`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to load configuration").
			WithContext("path", root.Config)
	}
	if s.Listen != "" {
		cfg.Server.Listen = s.Listen
	}
	watchPath := ""
	if s.Watch {
		watchPath = root.Config
	}
	return RunDaemon(cfg, watchPath)
}

// RunDaemon runs the daemon until SIGINT or SIGTERM.
func RunDaemon(cfg *config.Config, configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(ctx, cfg, configPath, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping daemon...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("daemon error: %w", runErr)
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
