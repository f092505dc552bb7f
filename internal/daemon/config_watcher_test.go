package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bookversions/internal/config"
)

type recordingReloader struct {
	mu      sync.Mutex
	configs []*config.Config
}

func (r *recordingReloader) ReloadConfig(_ context.Context, cfg *config.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	return nil
}

func (r *recordingReloader) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.configs)
}

func (r *recordingReloader) last() *config.Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.configs[len(r.configs)-1]
}

const watchedConfig = `server:
  listen: "127.0.0.1:0"
schedules:
  - name: nightly
    configuration: Publications.Guide
    interval: 24h
`

func TestConfigWatcher_ReloadsAfterWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookversions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  listen: \"127.0.0.1:0\"\n"), 0o600))

	target := &recordingReloader{}
	cw, err := NewConfigWatcher(path, target, quietLogger())
	require.NoError(t, err)
	cw.debounceTime = 20 * time.Millisecond
	require.NoError(t, cw.Start(t.Context()))
	defer func() { _ = cw.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte(watchedConfig), 0o600))

	require.Eventually(t, func() bool { return target.count() > 0 }, 5*time.Second, 10*time.Millisecond)
	cfg := target.last()
	require.Len(t, cfg.Schedules, 1)
	require.Equal(t, "nightly", cfg.Schedules[0].Name)
}

func TestConfigWatcher_IgnoresOtherFilesAndInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bookversions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(watchedConfig), 0o600))

	target := &recordingReloader{}
	cw, err := NewConfigWatcher(path, target, quietLogger())
	require.NoError(t, err)
	cw.debounceTime = 20 * time.Millisecond
	require.NoError(t, cw.Start(t.Context()))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: nosuch\n"), 0o600))

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0, target.count())

	require.NoError(t, cw.Stop())
	require.NoError(t, cw.Stop())
}
