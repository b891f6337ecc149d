package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

var jobTypeAbbreviations = map[string]string{
	"run_two_qubit_circuit": "TQ",
	"run_rabi_oscillation":  "RB",
	"run_calibration":       "CAL",
	"simulate_qasm":         "QS",
}

func JobTypeAbbreviation(taskType string) string {
	if abbrev, ok := jobTypeAbbreviations[taskType]; ok {
		return abbrev
	}
	return "--"
}

// FormatDuration renders seconds as 12.3s, 5m 7.0s or 2h 3m.
func FormatDuration(seconds float64) string {
	whole := int(seconds)
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		minutes := whole / 60
		return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
	default:
		return fmt.Sprintf("%dh %dm", whole/3600, (whole%3600)/60)
	}
}

// FormatDurationLong is the spelled-out form of FormatDuration.
func FormatDurationLong(seconds float64) string {
	whole := int(seconds)
	switch {
	case seconds < 60:
		return fmt.Sprintf("%.1f seconds", seconds)
	case seconds < 3600:
		minutes := whole / 60
		return fmt.Sprintf("%d minutes %.1f seconds", minutes, seconds-float64(minutes*60))
	default:
		return fmt.Sprintf("%d hours %d minutes", whole/3600, (whole%3600)/60)
	}
}

// executionTime is only meaningful for successful tasks.
func executionTime(task client.Task) string {
	if task.Status != client.StatusSuccess {
		return ""
	}
	if !task.Duration.Valid || task.Duration.Value == 0 {
		return "N/A"
	}
	return FormatDuration(task.Duration.Value)
}

// FailureHint explains a failure type the backend retries on its own.
func FailureHint(failureType string) string {
	switch failureType {
	case "QUDI_MODULES_BUSY":
		return "QUDI modules are currently busy. The job will be retried automatically."
	case "QUDI_SERVER_UNREACHABLE":
		return "QUDI server is unreachable. The job will be retried automatically."
	case "TIMEOUT":
		return "The operation timed out. The job will be retried automatically."
	case "CONNECTION_ERROR":
		return "Connection error occurred. The job will be retried automatically."
	default:
		return ""
	}
}

func failureSummary(task client.Task) string {
	if task.Status != client.StatusFailure {
		return ""
	}
	switch task.FailureType {
	case "QUDI_MODULES_BUSY":
		return "QUDI busy"
	case "QUDI_SERVER_UNREACHABLE":
		return "QUDI unreachable"
	case "TIMEOUT":
		return "Timeout"
	case "CONNECTION_ERROR":
		return "Connection error"
	default:
		return fmt.Sprintf("Error (retries: %s)", retries(task))
	}
}

func retries(task client.Task) string {
	if !task.Retries.Valid {
		return "0"
	}
	return fmt.Sprintf("%d", int(task.Retries.Value))
}

// FormatSubmitted renders the submission time as MM-DDTHH:MM.
func FormatSubmitted(task client.Task) string {
	if task.SubmittedAt == "" {
		return "Unknown"
	}
	if submitted, ok := task.SubmittedTime(); ok {
		return submitted.Format("01-02T15:04")
	}
	if len(task.SubmittedAt) > 12 {
		return task.SubmittedAt[:12]
	}
	return task.SubmittedAt
}

// FormatParameters renders task parameters as sorted key=value pairs.
func FormatParameters(params map[string]any) string {
	if len(params) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		value, err := json.Marshal(params[k])
		if err != nil {
			value = []byte(fmt.Sprint(params[k]))
		}
		parts = append(parts, k+"="+string(value))
	}
	return strings.Join(parts, ", ")
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
