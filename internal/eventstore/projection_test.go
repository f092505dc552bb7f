package eventstore

import (
	"fmt"
	"testing"
	"time"

	"git.home.luguber.info/inful/bookversions/internal/events"
)

func at(evt events.Event, ts time.Time) events.Event {
	evt.Time = ts
	return evt
}

func TestPublicationHistory_ApplyEvents(t *testing.T) {
	projection := NewPublicationHistory(newTestStore(t), 10)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	projection.Apply(at(events.New(events.PublicationStarted, testJobID, "Publications.Guide.WebHome",
		map[string]any{"destination": "Pub.Guide", "version": "Books.Guide.Versions.v2"}), start))

	run, ok := projection.Run(testJobID)
	if !ok {
		t.Fatal("expected run to exist")
	}
	if run.Status != StatusRunning {
		t.Errorf("expected status running, got %q", run.Status)
	}
	if run.Version != "Books.Guide.Versions.v2" {
		t.Errorf("unexpected version %q", run.Version)
	}
	if active := projection.Active(); len(active) != 1 {
		t.Errorf("expected 1 active run, got %d", len(active))
	}

	projection.Apply(at(events.New(events.PageFailed, testJobID, "Books.Guide.Setup.v2",
		map[string]any{"error": "broken macro"}), start.Add(time.Second)))
	projection.Apply(at(events.New(events.PublicationCompleted, testJobID, "Publications.Guide.WebHome",
		map[string]any{"published": 4, "unchanged": 1, "skipped": 2, "failed": 1, "removed": 0}), start.Add(3*time.Second)))

	run, _ = projection.Run(testJobID)
	if run.Status != StatusCompleted {
		t.Errorf("expected status completed, got %q", run.Status)
	}
	if run.Published != 4 || run.Unchanged != 1 || run.Skipped != 2 || run.Failed != 1 {
		t.Errorf("unexpected counts %+v", run)
	}
	if len(run.Failures) != 1 || run.Failures[0].Page != "Books.Guide.Setup.v2" || run.Failures[0].Error != "broken macro" {
		t.Errorf("unexpected failures %+v", run.Failures)
	}
	if run.Duration != 3*time.Second {
		t.Errorf("expected duration 3s, got %s", run.Duration)
	}
	if len(projection.History()) != 1 || len(projection.Active()) != 0 {
		t.Errorf("expected the run to move to the history")
	}
}

func TestPublicationHistory_CancelledAndFailedRuns(t *testing.T) {
	projection := NewPublicationHistory(newTestStore(t), 10)

	projection.Apply(events.New(events.PublicationStarted, "job-cancel", "Publications.A", nil))
	projection.Apply(events.New(events.PublicationCompleted, "job-cancel", "Publications.A", map[string]any{"cancelled": true}))

	// failures before the start event still produce a run
	projection.Apply(events.New(events.PublicationFailed, "job-fail", "Publications.B", map[string]any{"error": "missing publish right"}))

	run, _ := projection.Run("job-cancel")
	if run.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %q", run.Status)
	}
	run, ok := projection.Run("job-fail")
	if !ok || run.Status != StatusFailed || run.Error != "missing publish right" {
		t.Errorf("unexpected failed run %+v", run)
	}
}

func TestPublicationHistory_RetryStartsOver(t *testing.T) {
	projection := NewPublicationHistory(newTestStore(t), 10)

	projection.Apply(events.New(events.PublicationStarted, testJobID, "Publications.Guide", nil))
	projection.Apply(events.New(events.PublicationFailed, testJobID, "Publications.Guide", map[string]any{"error": "store unavailable"}))
	projection.Apply(events.New(events.PublicationStarted, testJobID, "Publications.Guide", nil))

	if len(projection.History()) != 0 {
		t.Fatalf("expected retried run to leave the history")
	}
	run, _ := projection.Run(testJobID)
	if run.Status != StatusRunning || run.Error != "" {
		t.Errorf("expected a fresh running summary, got %+v", run)
	}
}

func TestPublicationHistory_IgnoresOtherJobs(t *testing.T) {
	projection := NewPublicationHistory(newTestStore(t), 10)

	projection.Apply(events.New(events.PageStatusChanged, "SetPageStatus_alice_1", "Books.Guide.Intro.v1", nil))
	projection.Apply(events.New(events.VersionContentRemoved, "", "Books.Guide.Versions.v1", nil))

	if len(projection.History()) != 0 || len(projection.Active()) != 0 {
		t.Errorf("expected no publication runs")
	}
}

func TestPublicationHistory_BoundedHistory(t *testing.T) {
	projection := NewPublicationHistory(newTestStore(t), 3)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := range 5 {
		id := fmt.Sprintf("job-%d", i)
		ts := start.Add(time.Duration(i) * time.Minute)
		projection.Apply(at(events.New(events.PublicationStarted, id, "Publications.Guide", nil), ts))
		projection.Apply(at(events.New(events.PublicationCompleted, id, "Publications.Guide", nil), ts.Add(time.Second)))
	}

	history := projection.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(history))
	}
	if history[0].JobID != "job-4" || history[2].JobID != "job-2" {
		t.Errorf("expected newest first, got %s..%s", history[0].JobID, history[2].JobID)
	}
	if _, ok := projection.Run("job-0"); ok {
		t.Errorf("expected pruned run to be forgotten")
	}
}

func TestPublicationHistory_Rebuild(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	start := time.Now().Add(-time.Hour).UTC()

	for i, evt := range []events.Event{
		events.New(events.PublicationStarted, "job-a", "Publications.A", nil),
		events.New(events.PublicationCompleted, "job-a", "Publications.A", map[string]any{"published": 1}),
		events.New(events.PublicationStarted, "job-b", "Publications.B", nil),
	} {
		if err := store.Append(ctx, at(evt, start.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	projection := NewPublicationHistory(store, 10)
	if err := projection.Rebuild(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	history := projection.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(history))
	}
	if history[0].JobID != "job-b" || history[0].Status != StatusInterrupted {
		t.Errorf("expected interrupted job-b first, got %+v", history[0])
	}
	if history[1].Published != 1 {
		t.Errorf("expected published count from journal, got %d", history[1].Published)
	}
	if projection.LastSyncTime().IsZero() {
		t.Error("expected last sync time to be set")
	}
}
