package daemon

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/config"
	"git.home.luguber.info/inful/bookversions/internal/model"
	"git.home.luguber.info/inful/bookversions/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Fixture = filepath.Join("testdata", "books.yaml")
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Jobs.Workers = 1
	return cfg
}

func TestNewRuntime_SeedsEmptyStore(t *testing.T) {
	rt, err := NewRuntime(t.Context(), testConfig(t), quietLogger())
	require.NoError(t, err)
	defer rt.Close()

	refs, err := rt.Store.Query(t.Context(), repository.Query{})
	require.NoError(t, err)
	assert.Len(t, refs, 9)
	assert.Nil(t, rt.Registry)

	// a second seed is a no-op once documents exist
	require.NoError(t, rt.seed(t.Context()))
	refs, err = rt.Store.Query(t.Context(), repository.Query{})
	require.NoError(t, err)
	assert.Len(t, refs, 9)
}

func TestNewRuntime_MissingFixture(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Fixture = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewRuntime(t.Context(), cfg, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load fixture")
}

func TestRuntime_PublishesWithSQLiteAndArchive(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t)
	cfg.Store.Driver = config.StoreDriverSQLite
	cfg.Store.Path = filepath.Join(dir, "books.db")
	cfg.Archive = config.ArchiveConfig{Enabled: true, Directory: filepath.Join(dir, "archive"), AuthorName: "bv", AuthorEmail: "bv@localhost"}
	cfg.Metrics.Enabled = true
	cfg.Events.Journal = filepath.Join(dir, "events.db")

	rt, err := NewRuntime(t.Context(), cfg, quietLogger())
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Registry)
	require.NotNil(t, rt.Journal)

	rt.Queue.Start(t.Context())
	defer rt.Queue.Stop(context.Background())

	id, err := rt.Jobs.Publish(t.Context(), model.MustDocumentRef("Publications.Guide.WebHome"), "alice")
	require.NoError(t, err)
	job, err := rt.Jobs.Wait(t.Context(), id)
	require.NoError(t, err)
	require.Empty(t, job.Error)

	doc, err := rt.Store.Get(t.Context(), model.MustDocumentRef("Pub.Guide.Setup.WebHome"))
	require.NoError(t, err)
	assert.Equal(t, "Install the tool.", doc.Content)

	_, err = os.Stat(filepath.Join(dir, "archive", "Pub", "Guide", "Setup", "WebHome.md"))
	assert.NoError(t, err)

	run, ok := rt.Journal.History().Run(id)
	require.True(t, ok)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, "Pub.Guide", run.Destination)
}

func TestDaemon_StartServeStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.MaxConnections = 4
	d, err := New(t.Context(), cfg, "", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.GetStatus())

	var wg sync.WaitGroup
	wg.Add(1)
	var startErr error
	go func() {
		defer wg.Done()
		startErr = d.Start(t.Context())
	}()

	require.Eventually(t, func() bool { return d.GetStatus() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + d.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+d.Addr()+"/api/publications", "application/json",
		strings.NewReader(`{"configuration":"Publications.Guide.WebHome","user":"alice"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Error(t, d.Start(t.Context()), "second start must fail while running")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	wg.Wait()
	assert.NoError(t, startErr)
	assert.Equal(t, StatusStopped, d.GetStatus())
	require.NoError(t, d.Stop(ctx))
}

func TestDaemon_ReloadConfigAppliesSchedules(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(t.Context(), cfg, "", quietLogger())
	require.NoError(t, err)
	defer d.Runtime().Close()

	next := testConfig(t)
	next.Schedules = []config.Schedule{
		{Name: "hourly", Configuration: "Publications.Guide.WebHome", Interval: "1h", User: "alice"},
	}
	next.Jobs.MaxRetries = 5
	next.Server.Listen = "127.0.0.1:9999"

	require.NoError(t, d.ReloadConfig(t.Context(), next))
	assert.Equal(t, []string{"hourly"}, d.scheduler.Names())
	assert.Equal(t, 5, d.GetConfig().Jobs.MaxRetries)
	// listen address only changes on restart
	assert.Equal(t, "127.0.0.1:0", d.GetConfig().Server.Listen)
	require.NoError(t, d.scheduler.Stop())
}

func TestRestartRequired(t *testing.T) {
	a := testConfig(t)
	b := testConfig(t)
	assert.Empty(t, restartRequired(a, b))

	b.Auth.Enabled = true
	b.Jobs.Workers = 4
	b.Jobs.MaxRetries = 9
	assert.Equal(t, []string{"auth", "jobs.workers"}, restartRequired(a, b))
}

func TestStopAwareContext(t *testing.T) {
	d := &Daemon{stopChan: make(chan struct{})}
	ctx, cancel := d.stopAwareContext(context.Background())
	defer cancel()

	close(d.stopChan)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled after stop")
	}

	var nilDaemon *Daemon
	ctx2, cancel2 := nilDaemon.stopAwareContext(context.Background())
	cancel2()
	<-ctx2.Done()
}
