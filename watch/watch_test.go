package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcherRerunsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	other := filepath.Join(dir, "notes.txt")

	runs := make(chan struct{}, 16)
	w, err := New([]string{path}, func(ctx context.Context) error {
		runs <- struct{}{}
		return nil
	}, 100*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitRun(t, runs)

	// Unrelated files in the same directory are ignored.
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	select {
	case <-runs:
		t.Fatal("Expected no rerun for an unwatched file")
	case <-time.After(300 * time.Millisecond):
	}

	// A burst of writes is collapsed into one rerun.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("<html><body></body></html>"), 0o644))
	}
	waitRun(t, runs)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, int64(2), w.Runs())
}

func TestWatcherKeepsGoingAfterTaskErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "replay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("script: []"), 0o644))

	runs := make(chan struct{}, 16)
	w, err := New([]string{path}, func(ctx context.Context) error {
		runs <- struct{}{}
		return errors.New("bad config")
	}, 10*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	waitRun(t, runs)
	require.NoError(t, os.WriteFile(path, []byte("script: [{}]"), 0o644))
	waitRun(t, runs)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherFailsForMissingDirectory(t *testing.T) {
	w, err := New([]string{filepath.Join(t.TempDir(), "missing", "scene.html")}, func(context.Context) error {
		return nil
	}, 0, nil)
	require.NoError(t, err)

	err = w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch")
}

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the task to run")
	}
}
