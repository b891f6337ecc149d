package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

type ExperimentService struct {
	client *Client
}

func (c *Client) Experiments() *ExperimentService {
	return &ExperimentService{client: c}
}

// SimulateQASM uploads an OpenQASM program for simulation.
func (s *ExperimentService) SimulateQASM(ctx context.Context, path string) (*SubmitResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read QASM file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	endpoint := "/api/simulate_qasm"
	resp, err := s.client.http.R().
		SetContext(ctx).
		SetFile("qasm_file", path).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", endpoint, err)
	}
	if resp.StatusCode() >= 400 {
		return nil, decodeError(resp.StatusCode(), resp.Status(), resp.Body())
	}
	var out SubmitResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	if out.TaskID == "" {
		return nil, fmt.Errorf("server did not return a task id for %s", filepath.Base(path))
	}
	return &out, nil
}

func (s *ExperimentService) RunRabi(ctx context.Context) (*SubmitResponse, error) {
	return s.submit(ctx, "/api/run_remote_rabi")
}

func (s *ExperimentService) RunCalibration(ctx context.Context) (*SubmitResponse, error) {
	return s.submit(ctx, "/api/run_calibration")
}

func (s *ExperimentService) RunTwoQubitCircuit(ctx context.Context) (*SubmitResponse, error) {
	return s.submit(ctx, "/api/run_two_qubit_circuit")
}

// SubmitTwoQubitBatch posts an experiment definition as-is and returns the
// per-task information the server generated for it.
func (s *ExperimentService) SubmitTwoQubitBatch(ctx context.Context, experiment json.RawMessage) (*BatchSubmitResponse, error) {
	if !json.Valid(experiment) {
		return nil, errors.New("experiment definition is not valid JSON")
	}
	var out BatchSubmitResponse
	if err := s.client.do(ctx, http.MethodPost, "/api/submit_two_qubit_batch", []byte(experiment), &out); err != nil {
		return nil, err
	}
	if len(out.TaskInfos) == 0 {
		return nil, errors.New("server response did not contain task_infos")
	}
	return &out, nil
}

func (s *ExperimentService) submit(ctx context.Context, endpoint string) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := s.client.do(ctx, http.MethodPost, endpoint, nil, &out); err != nil {
		return nil, err
	}
	if out.TaskID == "" {
		return nil, fmt.Errorf("server did not return a task id for %s", endpoint)
	}
	return &out, nil
}
