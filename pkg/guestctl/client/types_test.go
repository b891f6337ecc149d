package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskDecoding(t *testing.T) {
	payload := `{
		"task_id": "a1b2",
		"task_type": "run_two_qubit_circuit",
		"status": "SUCCESS",
		"submitted_at": "2026-02-11T14:05:09.123456",
		"duration": "93.5",
		"result": {"counts": {"00": 512, "11": 488}},
		"retries": 2,
		"user_id": "user-1",
		"task_kwargs": "{\"shots\": 1000, \"label\": \"\", \"seed\": null}"
	}`
	var task Task
	require.NoError(t, json.Unmarshal([]byte(payload), &task))

	assert.True(t, task.Duration.Valid)
	assert.InDelta(t, 93.5, task.Duration.Value, 1e-9)
	assert.Equal(t, 2.0, task.Retries.Value)
	assert.JSONEq(t, `{"counts": {"00": 512, "11": 488}}`, string(task.Result))
	assert.Equal(t, map[string]any{"shots": float64(1000)}, task.Parameters())

	submitted, ok := task.SubmittedTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 11, 14, 5, 9, 123456000, time.UTC), submitted)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		input   string
		want    Number
		wantErr bool
	}{
		{input: `12.5`, want: Number{Value: 12.5, Valid: true}},
		{input: `"7"`, want: Number{Value: 7, Valid: true}},
		{input: `null`, want: Number{}},
		{input: `""`, want: Number{}},
		{input: `"soon"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.input), &n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}

	encoded, err := json.Marshal(struct {
		A Number `json:"a"`
		B Number `json:"b"`
	}{A: Number{Value: 3, Valid: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":3,"b":null}`, string(encoded))
}

func TestTaskParametersObjectForm(t *testing.T) {
	task := Task{TaskKwargs: json.RawMessage(`{"amplitude": 0.4}`)}
	assert.Equal(t, map[string]any{"amplitude": 0.4}, task.Parameters())

	assert.Empty(t, Task{}.Parameters())
	assert.Empty(t, Task{TaskKwargs: json.RawMessage(`"not json"`)}.Parameters())
}

func TestSubmittedTimeFormats(t *testing.T) {
	withZone := Task{SubmittedAt: "2026-02-11T14:05:09+01:00"}
	parsed, ok := withZone.SubmittedTime()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 11, 13, 5, 9, 0, time.UTC), parsed.UTC())

	_, ok = Task{SubmittedAt: "yesterday"}.SubmittedTime()
	assert.False(t, ok)
	_, ok = Task{}.SubmittedTime()
	assert.False(t, ok)
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusSuccess, StatusFailure, StatusRevoked} {
		assert.True(t, IsTerminal(status), status)
	}
	for _, status := range []string{StatusPending, StatusStarted, StatusRetry, ""} {
		assert.False(t, IsTerminal(status), status)
	}
}
