package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

const DefaultListLimit = 30

type TaskService struct {
	client *Client
}

func (c *Client) Tasks() *TaskService {
	return &TaskService{client: c}
}

func (s *TaskService) Get(ctx context.Context, id string) (*Task, error) {
	if id == "" {
		return nil, errors.New("task id is required")
	}
	var task Task
	if err := s.client.do(ctx, http.MethodGet, "/api/tasks/"+escape(id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns the most recent tasks, newest first as ordered by the server.
func (s *TaskService) List(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var list TaskList
	if err := s.client.do(ctx, http.MethodGet, "/api/tasks?limit="+strconv.Itoa(limit), nil, &list); err != nil {
		return nil, err
	}
	return list.Tasks, nil
}

// Download streams the result document of a finished task into w.
func (s *TaskService) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	if id == "" {
		return 0, errors.New("task id is required")
	}
	endpoint := "/api/tasks/" + escape(id) + "/download"
	resp, err := s.client.http.R().SetContext(ctx).SetDoNotParseResponse(true).Get(endpoint)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	body := resp.RawBody()
	defer func() {
		_ = body.Close()
	}()
	if resp.StatusCode() >= 400 {
		content, _ := io.ReadAll(io.LimitReader(body, 64*1024))
		return 0, decodeError(resp.StatusCode(), resp.Status(), content)
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("failed to read result of task %s: %w", id, err)
	}
	return n, nil
}

func (s *TaskService) Resubmit(ctx context.Context, id string) (*ResubmitResponse, error) {
	if id == "" {
		return nil, errors.New("task id is required")
	}
	var resp ResubmitResponse
	if err := s.client.do(ctx, http.MethodPost, "/api/resubmit_job/"+escape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel revokes a task. With terminate set, a task that is already running is
// killed as well.
func (s *TaskService) Cancel(ctx context.Context, id string, terminate bool) (*CancelResponse, error) {
	if id == "" {
		return nil, errors.New("task id is required")
	}
	endpoint := fmt.Sprintf("/api/cancel_task/%s?terminate=%t", escape(id), terminate)
	var resp CancelResponse
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *TaskService) CancelPending(ctx context.Context) (*CancelPendingResponse, error) {
	var resp CancelPendingResponse
	if err := s.client.do(ctx, http.MethodPost, "/api/cancel_pending", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type WaitOptions struct {
	Interval time.Duration
	Clock    clockwork.Clock
	// OnUpdate is called with every fetched task, including the final one.
	OnUpdate func(*Task)
}

// Wait polls a task until it reaches a terminal state or ctx is done.
func (s *TaskService) Wait(ctx context.Context, id string, opts WaitOptions) (*Task, error) {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if opts.OnUpdate != nil {
			opts.OnUpdate(task)
		}
		if IsTerminal(task.Status) {
			return task, nil
		}
		timer := opts.Clock.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return task, ctx.Err()
		case <-timer.Chan():
		}
	}
}
