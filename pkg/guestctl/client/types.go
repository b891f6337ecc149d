package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StatusPending = "PENDING"
	StatusStarted = "STARTED"
	StatusRetry   = "RETRY"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusRevoked = "REVOKED"
)

// IsTerminal reports whether a task in this state will not change any more.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusFailure, StatusRevoked:
		return true
	default:
		return false
	}
}

type Task struct {
	TaskID      string          `json:"task_id"`
	TaskType    string          `json:"task_type,omitempty"`
	Status      string          `json:"status"`
	SubmittedAt string          `json:"submitted_at,omitempty"`
	Duration    Number          `json:"duration"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	FailureType string          `json:"failure_type,omitempty"`
	Retries     Number          `json:"retries"`
	Progress    json.RawMessage `json:"progress,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	TaskKwargs  json.RawMessage `json:"task_kwargs,omitempty"`
}

var submittedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

// SubmittedTime parses SubmittedAt, which the backend reports either with a zone
// offset or as naive UTC.
func (t Task) SubmittedTime() (time.Time, bool) {
	value := strings.TrimSpace(t.SubmittedAt)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range submittedAtLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Parameters decodes TaskKwargs, which arrives as a JSON-encoded string or as an
// object, dropping null and empty-string values.
func (t Task) Parameters() map[string]any {
	raw := bytes.TrimSpace(t.TaskKwargs)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = []byte(encoded)
	}
	params := map[string]any{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return map[string]any{}
	}
	for k, v := range params {
		if v == nil || v == "" {
			delete(params, k)
		}
	}
	return params
}

// Number is a JSON number that the backend sometimes sends as a string.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = Number{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = Number{Value: v, Valid: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// MarshalYAML keeps yaml output consistent with the JSON form.
func (n Number) MarshalYAML() (any, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Value, nil
}

type TaskList struct {
	Tasks []Task `json:"tasks"`
}

type SubmitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

type BatchSubmitResponse struct {
	Message   string          `json:"message"`
	TaskInfos json.RawMessage `json:"task_infos"`
}

type ResubmitResponse struct {
	TaskID          string `json:"task_id"`
	Status          string `json:"status"`
	ResubmittedFrom string `json:"resubmitted_from,omitempty"`
}

type CancelResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type TaskRef struct {
	TaskID string `json:"task_id"`
	Status string `json:"status,omitempty"`
}

type CancelPendingResponse struct {
	Canceled []json.RawMessage `json:"canceled"`
	Skipped  []TaskRef         `json:"skipped"`
}

// ModuleStates maps quantum-control module names to idle, locked or inactive.
type ModuleStates map[string]string
