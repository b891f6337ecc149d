package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperimentQASM(t *testing.T) {
	env := newTestEnv(t)
	env.login(time.Hour)
	circuit := filepath.Join(env.dir, "bell.qasm")
	writeFile(t, circuit, "OPENQASM 2.0;\nqreg q[2];\n")

	stdout, _, err := env.run("experiment", "qasm", circuit)
	require.NoError(t, err)
	assert.Contains(t, stdout, "QASM simulation submitted successfully with ID: q1")
	assert.Equal(t, "OPENQASM 2.0;\nqreg q[2];\n", env.backend.upload("bell.qasm"))

	_, _, err = env.run("experiment", "qasm", filepath.Join(env.dir, "missing.qasm"))
	require.ErrorContains(t, err, "qasm file")
}

func TestExperimentRemoteRuns(t *testing.T) {
	env := newTestEnv(t)
	env.login(time.Hour)

	tests := []struct {
		command string
		label   string
		path    string
	}{
		{command: "rabi", label: "Rabi oscillation experiment", path: "POST /api/run_remote_rabi"},
		{command: "calibrate", label: "Calibration", path: "POST /api/run_calibration"},
		{command: "two-qubit", label: "Two-qubit circuit", path: "POST /api/run_two_qubit_circuit"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			stdout, _, err := env.run("experiment", tt.command)
			require.NoError(t, err)
			assert.Contains(t, stdout, tt.label+" submitted successfully with ID: r1")
			assert.Contains(t, env.backend.recorded(), tt.path)
		})
	}

	stdout, _, err := env.run("exp", "rabi", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"r1","status":"PENDING"}`, stdout)
}

func TestExperimentTwoQubitBatch(t *testing.T) {
	env := newTestEnv(t)
	env.clock = clockwork.NewFakeClockAt(time.Date(2026, 2, 11, 14, 5, 9, 0, time.UTC))
	env.login(time.Hour)
	experiment := filepath.Join(env.dir, "tq.json")
	writeFile(t, experiment, `{"experiments":[{"name":"bell"},{"name":"ghz"}]}`)

	stdout, _, err := env.run("experiment", "two-qubit-batch", experiment)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Submitted 2 experiments")
	assert.JSONEq(t, `{"experiments":[{"name":"bell"},{"name":"ghz"}]}`, env.backend.submittedBatch())

	infoPath := filepath.Join(env.dir, "experiment_infos", "2026-02-11T14-05-09_tq_experiment.json")
	assert.Contains(t, stdout, "Task infos saved to "+infoPath)
	content, err := os.ReadFile(infoPath)
	require.NoError(t, err)
	var infos map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(content, &infos))
	assert.Len(t, infos, 2)

	stdout, _, err = env.run("job", "batch-download", filepath.Base(infoPath))
	require.NoError(t, err)
	assert.Contains(t, stdout, "Successful:       1")
	assert.FileExists(t, filepath.Join(env.dir, "batch_results", "2026-02-11T14-05-09", "t1.json"))
}

func TestExperimentTwoQubitBatchRejectsInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	env.login(time.Hour)
	experiment := filepath.Join(env.dir, "broken.json")
	writeFile(t, experiment, `{"experiments": [`)

	_, _, err := env.run("experiment", "two-qubit-batch", experiment)
	require.ErrorContains(t, err, "invalid JSON")
	assert.Empty(t, env.backend.recorded())
}

func TestAvailability(t *testing.T) {
	env := newTestEnv(t)
	env.login(time.Hour)

	stdout, _, err := env.run("availability")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backend "+env.backend.URL()+" is reachable")
	assert.Contains(t, stdout, "Summary: 1 idle, 1 locked, 0 inactive")
	assert.Contains(t, stdout, "Some modules are locked (busy)")
	assert.Contains(t, env.backend.recorded(), "GET /api/tasks?limit=1")

	stdout, _, err = env.run("availability", "-o", "json")
	require.NoError(t, err)
	var view availability
	require.NoError(t, json.Unmarshal([]byte(stdout), &view))
	assert.Equal(t, 1, view.Summary.Idle)
	assert.Equal(t, "locked", view.Modules["laser"])
}
