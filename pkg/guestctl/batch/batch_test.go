package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

type fakeTasks struct {
	statuses map[string]string
	failGet  map[string]bool

	active    int32
	maxActive int32
	mu        sync.Mutex
	downloads []string
}

func (f *fakeTasks) enter() func() {
	n := atomic.AddInt32(&f.active, 1)
	for {
		current := atomic.LoadInt32(&f.maxActive)
		if n <= current || atomic.CompareAndSwapInt32(&f.maxActive, current, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return func() { atomic.AddInt32(&f.active, -1) }
}

func (f *fakeTasks) Get(_ context.Context, id string) (*client.Task, error) {
	defer f.enter()()
	if f.failGet[id] {
		return nil, &client.HTTPError{StatusCode: http.StatusNotFound, Message: "Task not found"}
	}
	return &client.Task{TaskID: id, Status: f.statuses[id]}, nil
}

func (f *fakeTasks) Download(_ context.Context, id string, w io.Writer) (int64, error) {
	defer f.enter()()
	f.mu.Lock()
	f.downloads = append(f.downloads, id)
	f.mu.Unlock()
	n, err := io.WriteString(w, fmt.Sprintf(`{"task_id":%q}`, id))
	return int64(n), err
}

func TestDownloaderRun(t *testing.T) {
	tasks := &fakeTasks{
		statuses: map[string]string{},
		failGet:  map[string]bool{"gone": true},
	}
	var ids []string
	for i := 0; i < 12; i++ {
		id := fmt.Sprintf("task-%02d", i)
		tasks.statuses[id] = client.StatusSuccess
		ids = append(ids, id)
	}
	tasks.statuses["task-03"] = client.StatusPending
	ids = append(ids, "gone", "../escape")

	outputDir := filepath.Join(t.TempDir(), "batch_results", "2026-02-11T14-05-09")
	downloader := NewDownloader(tasks, Options{Parallel: 3, Rate: 1000, Logger: zaptest.NewLogger(t).Sugar()})

	summary, err := downloader.Run(context.Background(), ids, outputDir)
	require.NoError(t, err)
	assert.Equal(t, 11, summary.Successful)
	assert.Equal(t, 3, summary.Failed)
	assert.Equal(t, outputDir, summary.OutputDir)
	assert.LessOrEqual(t, atomic.LoadInt32(&tasks.maxActive), int32(3))

	content, err := os.ReadFile(filepath.Join(outputDir, "task-00.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"task-00"}`, string(content))
	_, err = os.Stat(filepath.Join(outputDir, "task-03.json"))
	assert.True(t, os.IsNotExist(err))

	require.Len(t, summary.Results, len(ids))
	assert.ErrorIs(t, summary.Results[3].Err, ErrNotCompleted)
	assert.Equal(t, client.StatusPending, summary.Results[3].Status)
	var httpErr *client.HTTPError
	assert.True(t, errors.As(summary.Results[12].Err, &httpErr))
	assert.ErrorContains(t, summary.Results[13].Err, "invalid task id")
	assert.NotContains(t, tasks.downloads, "task-03")
}

func TestDownloaderRateLimit(t *testing.T) {
	tasks := &fakeTasks{statuses: map[string]string{"a": client.StatusSuccess, "b": client.StatusSuccess}}
	downloader := NewDownloader(tasks, Options{Parallel: 4, Rate: 20})

	start := time.Now()
	summary, err := downloader.Run(context.Background(), []string{"a", "b"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Successful)
	// Four requests at 20/s with a burst of one take at least 150ms.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestDownloaderCancelled(t *testing.T) {
	tasks := &fakeTasks{statuses: map[string]string{"a": client.StatusSuccess}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDownloader(tasks, Options{}).Run(ctx, []string{"a"}, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestDownloaderWithAPIClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/download"):
			_, _ = w.Write([]byte(`{"counts":{"00":1}}`))
		case r.URL.Path == "/api/tasks/done":
			_, _ = w.Write([]byte(`{"task_id":"done","status":"SUCCESS"}`))
		default:
			_, _ = w.Write([]byte(`{"task_id":"x","status":"FAILURE"}`))
		}
	}))
	defer server.Close()

	api, err := client.New(client.WithServer(server.URL), client.WithRetry(-1, 0, 0))
	require.NoError(t, err)

	dir := t.TempDir()
	summary, err := NewDownloader(api.Tasks(), Options{Rate: 1000}).Run(context.Background(), []string{"done", "failed"}, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)

	content, err := os.ReadFile(filepath.Join(dir, "done.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"counts":{"00":1}}`, string(content))
}
