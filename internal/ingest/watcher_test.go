package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/pipetakeoff/internal/async"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "watcher closed early")
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("no watcher event")
		return ""
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	t.Parallel()

	_, _, err := StartWatcher(context.Background(), WatchConfig{}, quietLogger())
	assert.Error(t, err)
}

func TestStartWatcherInitialScanAndNewFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "existing.pdf")
	require.NoError(t, os.WriteFile(existing, []byte("%PDF"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.txt"), []byte("x"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, quietLogger())
	require.NoError(t, err)

	assert.Equal(t, existing, receive(t, events))

	added := filepath.Join(root, "added.pdf")
	require.NoError(t, os.WriteFile(added, []byte("%PDF"), 0o600))
	assert.Equal(t, added, receive(t, events))

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

type captureQueue struct{ jobs chan async.Job }

func (q *captureQueue) Enqueue(_ context.Context, job async.Job) error {
	q.jobs <- job
	return nil
}

func (q *captureQueue) Shutdown(context.Context) {}

func TestFeedEnqueuesWatchedPaths(t *testing.T) {
	t.Parallel()

	events := make(chan string, 2)
	errs := make(chan error, 1)
	q := &captureQueue{jobs: make(chan async.Job, 2)}

	events <- "/in/a.pdf"
	errs <- assert.AnError
	close(events)
	Feed(context.Background(), events, errs, q, quietLogger())

	job := <-q.jobs
	assert.Equal(t, "/in/a.pdf", job.Path)
	assert.NotEmpty(t, job.TraceID)
}
