package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

const (
	DefaultParallel = 4
	DefaultRate     = 10.0
)

var ErrNotCompleted = errors.New("task has not completed successfully")

// TaskClient is the subset of the task API the downloader needs.
type TaskClient interface {
	Get(ctx context.Context, id string) (*client.Task, error)
	Download(ctx context.Context, id string, w io.Writer) (int64, error)
}

type Options struct {
	// Parallel bounds the number of tasks processed at once.
	Parallel int
	// Rate caps API requests per second across all workers.
	Rate   float64
	Logger *zap.SugaredLogger
}

type Result struct {
	TaskID string
	Status string
	Path   string
	Bytes  int64
	Err    error
}

type Summary struct {
	Successful int
	Failed     int
	OutputDir  string
	Results    []Result
}

type Downloader struct {
	tasks    TaskClient
	parallel int
	limiter  *rate.Limiter
	log      *zap.SugaredLogger
}

func NewDownloader(tasks TaskClient, opts Options) *Downloader {
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Downloader{
		tasks:    tasks,
		parallel: opts.Parallel,
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), 1),
		log:      opts.Logger,
	}
}

// Run downloads the result of every successful task into outputDir as
// <task_id>.json. Per-task failures are recorded in the summary; only context
// cancellation aborts the batch.
func (d *Downloader) Run(ctx context.Context, ids []string, outputDir string) (*Summary, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallel)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = d.fetch(gctx, id, outputDir)
			if err := gctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &Summary{OutputDir: outputDir, Results: results}
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
			continue
		}
		summary.Successful++
	}
	return summary, nil
}

func (d *Downloader) fetch(ctx context.Context, id, outputDir string) Result {
	res := Result{TaskID: id}
	if id == "" || filepath.Base(id) != id || id == "." || id == ".." {
		res.Err = fmt.Errorf("invalid task id %q", id)
		return res
	}
	if err := d.limiter.Wait(ctx); err != nil {
		res.Err = err
		return res
	}
	task, err := d.tasks.Get(ctx, id)
	if err != nil {
		res.Err = err
		d.log.Warnw("Failed to fetch task status", "task", id, "error", err)
		return res
	}
	res.Status = task.Status
	if task.Status != client.StatusSuccess {
		res.Err = fmt.Errorf("%w: status %s", ErrNotCompleted, task.Status)
		d.log.Warnw("Skipping task that has not succeeded", "task", id, "status", task.Status)
		return res
	}
	if err := d.limiter.Wait(ctx); err != nil {
		res.Err = err
		return res
	}
	res.Path = filepath.Join(outputDir, id+".json")
	res.Bytes, res.Err = d.save(ctx, id, res.Path)
	if res.Err != nil {
		d.log.Warnw("Failed to download result", "task", id, "error", res.Err)
	}
	return res
}

func (d *Downloader) save(ctx context.Context, id, path string) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	n, err := d.tasks.Download(ctx, id, file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, err
	}
	return n, nil
}
