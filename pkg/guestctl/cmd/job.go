package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/batch"
	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
)

func NewJobCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "job",
		Aliases: []string{"jobs", "task"},
		Short:   "Inspect and manage submitted jobs",
	}
	cmd.AddCommand(
		newJobStatusCommand(),
		newJobListCommand(),
		newJobDetailsCommand(),
		newJobResubmitCommand(),
		newJobCancelCommand(),
		newJobCancelPendingCommand(),
		newJobDownloadCommand(),
		newJobBatchDownloadCommand(),
		newJobWaitCommand(),
	)
	return cmd
}

// withClient resolves the runtime and an authenticated API client for a job command.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, err := buildClient(cmd.Context(), rt)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), rt, apiClient)
}

func newJobStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show the status of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				task, err := apiClient.Tasks().Get(ctx, args[0])
				if err != nil {
					return err
				}
				return writeOutput(rt, task, func(w io.Writer, _ output.Format) {
					output.WriteTaskStatus(w, task)
				})
			})
		},
	}
}

type listOptions struct {
	limit    int
	allUsers bool
	page     int
	all      bool
}

func (o *listOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.limit, "limit", client.DefaultListLimit, "Number of recent jobs to fetch")
	cmd.Flags().BoolVar(&o.allUsers, "all-users", false, "Include jobs submitted by other users")
	cmd.Flags().IntVar(&o.page, "page", 1, "Page to show when settings.page-size is set")
	cmd.Flags().BoolVar(&o.all, "all", false, "Show all fetched jobs regardless of page size")
}

// listTasks fetches recent tasks and applies user filtering and paging.
func listTasks(cmd *cobra.Command, opts listOptions, wide bool) error {
	rt, err := getRuntime(cmd)
	if err != nil {
		return err
	}
	apiClient, token, err := buildClientWithToken(cmd.Context(), rt)
	if err != nil {
		return err
	}
	tasks, err := apiClient.Tasks().List(cmd.Context(), opts.limit)
	if err != nil {
		return err
	}
	if !opts.allUsers {
		tasks = ownedTasks(rt, token, tasks)
	}
	tasks, footer := paginate(tasks, opts.page, rt.Settings().PageSize, opts.all)
	return writeOutput(rt, tasks, func(w io.Writer, format output.Format) {
		if len(tasks) == 0 {
			_, _ = fmt.Fprintln(w, "No jobs found")
			return
		}
		if wide || format == output.FormatWide {
			output.WriteTaskTableWide(w, tasks)
		} else {
			output.WriteTaskTable(w, tasks)
		}
		if footer != "" {
			_, _ = fmt.Fprintln(w, footer)
		}
	})
}

func newJobListCommand() *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your recent jobs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTasks(cmd, opts, false)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newJobDetailsCommand() *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "details",
		Short: "List your recent jobs with full type, user and parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listTasks(cmd, opts, true)
		},
	}
	opts.bind(cmd)
	return cmd
}

func newJobResubmitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resubmit ID",
		Short: "Submit a finished job again with the same parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				resp, err := apiClient.Tasks().Resubmit(ctx, args[0])
				if err != nil {
					return err
				}
				return writeOutput(rt, resp, func(w io.Writer, _ output.Format) {
					output.WriteResubmitted(w, resp)
				})
			})
		},
	}
}

func newJobCancelCommand() *cobra.Command {
	var terminate bool
	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				resp, err := apiClient.Tasks().Cancel(ctx, args[0], terminate)
				if err != nil {
					return err
				}
				return writeOutput(rt, resp, func(w io.Writer, _ output.Format) {
					output.WriteCanceled(w, resp)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&terminate, "terminate", false, "Also terminate the job if it is already running")
	return cmd
}

func newJobCancelPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-pending",
		Short: "Cancel all of your pending jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				resp, err := apiClient.Tasks().CancelPending(ctx)
				if err != nil {
					return err
				}
				return writeOutput(rt, resp, func(w io.Writer, _ output.Format) {
					output.WriteCancelPending(w, resp)
				})
			})
		},
	}
}

type downloadResult struct {
	TaskID string `json:"task_id"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
}

func newJobDownloadCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "download ID",
		Short: "Download the result of a successful job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				id := args[0]
				task, err := apiClient.Tasks().Get(ctx, id)
				if err != nil {
					return err
				}
				if task.Status != client.StatusSuccess {
					return fmt.Errorf("job %s is not completed successfully (status: %s)", id, task.Status)
				}
				target := path
				if target == "" {
					target = defaultResultPath(rt.Settings().ResultsDir, task)
				}
				n, err := downloadTo(ctx, apiClient, id, target)
				if err != nil {
					return err
				}
				result := downloadResult{TaskID: id, Path: target, Bytes: n}
				return writeOutput(rt, result, func(w io.Writer, _ output.Format) {
					_, _ = fmt.Fprintf(w, "Results saved to %s (%d bytes)\n", target, n)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "Output file (default <results-dir>/<task_type>_<id>.json)")
	return cmd
}

func defaultResultPath(resultsDir string, task *client.Task) string {
	taskType := task.TaskType
	if taskType == "" {
		taskType = "task"
	}
	return filepath.Join(resultsDir, fmt.Sprintf("%s_%s.json", taskType, filepath.Base(task.TaskID)))
}

func downloadTo(ctx context.Context, apiClient *client.Client, id, path string) (int64, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return 0, fmt.Errorf("failed to create results dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := apiClient.Tasks().Download(ctx, id, file)
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

func newJobBatchDownloadCommand() *cobra.Command {
	var (
		outputDir string
		parallel  int
		rateLimit float64
	)
	cmd := &cobra.Command{
		Use:   "batch-download INFO_JSON",
		Short: "Download the results of every job in an experiment info file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			settings := rt.Settings()
			infoPath, err := batch.ResolveInfoPath(args[0], settings.ExperimentInfosDir)
			if err != nil {
				return err
			}
			ids, err := batch.LoadTaskIDs(infoPath)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return fmt.Errorf("no task ids in %s", infoPath)
			}
			if outputDir == "" {
				outputDir = batch.DefaultOutputDir(settings.BatchResultsDir, infoPath)
			}
			apiClient, err := buildClient(cmd.Context(), rt)
			if err != nil {
				return err
			}
			rt.Logger().Debugw("Starting batch download", "info", infoPath, "tasks", len(ids), "output", outputDir)
			downloader := batch.NewDownloader(apiClient.Tasks(), batch.Options{
				Parallel: parallel,
				Rate:     rateLimit,
				Logger:   rt.Logger(),
			})
			summary, err := downloader.Run(cmd.Context(), ids, outputDir)
			if err != nil {
				return err
			}
			if err := writeOutput(rt, summaryView(summary), func(w io.Writer, _ output.Format) {
				output.WriteBatchSummary(w, summary)
			}); err != nil {
				return err
			}
			if summary.Successful == 0 {
				return errors.New("no results downloaded")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "dir", "d", "", "Output directory (default <batch-results-dir>/<info file prefix>)")
	cmd.Flags().IntVar(&parallel, "parallel", batch.DefaultParallel, "Maximum concurrent downloads")
	cmd.Flags().Float64Var(&rateLimit, "rate", batch.DefaultRate, "Maximum API requests per second")
	return cmd
}

type batchResultView struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
	Path   string `json:"path,omitempty"`
	Bytes  int64  `json:"bytes,omitempty"`
	Error  string `json:"error,omitempty"`
}

type batchSummaryView struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	OutputDir  string            `json:"output_dir"`
	Results    []batchResultView `json:"results"`
}

func summaryView(summary *batch.Summary) batchSummaryView {
	view := batchSummaryView{
		Successful: summary.Successful,
		Failed:     summary.Failed,
		OutputDir:  summary.OutputDir,
		Results:    make([]batchResultView, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		entry := batchResultView{TaskID: res.TaskID, Status: res.Status, Path: res.Path, Bytes: res.Bytes}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		}
		view.Results = append(view.Results, entry)
	}
	return view
}

func newJobWaitCommand() *cobra.Command {
	var (
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "wait ID",
		Short: "Wait until a job finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				last := ""
				task, err := apiClient.Tasks().Wait(ctx, args[0], client.WaitOptions{
					Interval: interval,
					Clock:    rt.Clock(),
					OnUpdate: func(t *client.Task) {
						if t.Status != last {
							_, _ = fmt.Fprintf(rt.ErrWriter(), "%s: %s\n", t.TaskID, t.Status)
							last = t.Status
						}
					},
				})
				if err != nil {
					if errors.Is(err, context.DeadlineExceeded) {
						return fmt.Errorf("timed out waiting for job %s", args[0])
					}
					return err
				}
				if err := writeOutput(rt, task, func(w io.Writer, _ output.Format) {
					output.WriteTaskStatus(w, task)
				}); err != nil {
					return err
				}
				if task.Status != client.StatusSuccess {
					return fmt.Errorf("job %s finished with status %s", task.TaskID, task.Status)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up after this long (0 waits forever)")
	return cmd
}
