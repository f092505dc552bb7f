package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/errors"
	"git.home.luguber.info/inful/bookversions/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Job    string `arg:"" optional:"" help:"Show the journaled events of one publication job"`
	Format string `help:"Output format" enum:"text,json" default:"text"`
}

func (c *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return errors.Wrap(err, errors.CategoryConfig, errors.SeverityFatal, "failed to load configuration").
			WithContext("path", root.Config)
	}
	if cfg.Events.Journal == "" {
		return errors.ConfigRequired("events.journal")
	}
	ctx := context.Background()
	journal, err := eventstore.OpenJournal(ctx, cfg.Events.Journal, cfg.Jobs.HistorySize)
	if err != nil {
		return errors.StoreUnavailable("journal", err)
	}
	defer func() { _ = journal.Close() }()

	w := g.out()
	if c.Job == "" {
		runs := journal.History().History()
		if c.Format == "json" {
			return writeJSON(w, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No publications recorded")
		}
		for _, run := range runs {
			printRun(w, run)
		}
		return nil
	}

	run, ok := journal.History().Run(c.Job)
	if !ok {
		return errors.NotFound(c.Job)
	}
	evts, err := journal.Store().ByJob(ctx, c.Job)
	if err != nil {
		return errors.StoreUnavailable("journal", err)
	}
	if c.Format == "json" {
		return writeJSON(w, map[string]any{"summary": run, "events": evts})
	}
	printRun(w, run)
	for _, e := range evts {
		fmt.Fprintf(w, "  %s %s %s\n", e.Time.Local().Format(time.DateTime), e.Type, e.Subject)
	}
	return nil
}

func printRun(w io.Writer, run eventstore.PublicationSummary) {
	fmt.Fprintf(w, "%s %s %s", run.StartedAt.Local().Format(time.DateTime), run.JobID, run.Status)
	if run.Destination != "" {
		fmt.Fprintf(w, " -> %s", run.Destination)
	}
	switch run.Status {
	case eventstore.StatusCompleted:
		fmt.Fprintf(w, " (published %d, unchanged %d, skipped %d, failed %d, removed %d)",
			run.Published, run.Unchanged, run.Skipped, run.Failed, run.Removed)
	case eventstore.StatusFailed:
		fmt.Fprintf(w, ": %s", run.Error)
	}
	fmt.Fprintln(w)
}
