package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

func WriteTaskTable(w io.Writer, tasks []client.Task) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tSUBMITTED\tEXECUTION_TIME\tFAILURE")
	for _, task := range tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			task.TaskID, JobTypeAbbreviation(task.TaskType), task.Status, FormatSubmitted(task),
			orDash(executionTime(task)), orDash(failureSummary(task)))
	}
	_ = tw.Flush()
}

// WriteTaskTableWide shows full task types, raw submission times and parameters.
func WriteTaskTableWide(w io.Writer, tasks []client.Task) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tSUBMITTED\tEXECUTION_TIME\tUSER\tPARAMETERS")
	for _, task := range tasks {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			task.TaskID, orDash(task.TaskType), task.Status, orDash(task.SubmittedAt),
			orDash(executionTime(task)), orDash(task.UserID), FormatParameters(task.Parameters()))
	}
	_ = tw.Flush()
}

// WriteTaskStatus prints the detailed view of a single task.
func WriteTaskStatus(w io.Writer, task *client.Task) {
	_, _ = fmt.Fprintf(w, "Job ID: %s\n", task.TaskID)
	_, _ = fmt.Fprintf(w, "Status: %s\n", task.Status)
	if task.TaskType != "" {
		_, _ = fmt.Fprintf(w, "Type: %s\n", task.TaskType)
	}
	if task.SubmittedAt != "" {
		_, _ = fmt.Fprintf(w, "Submitted At: %s\n", task.SubmittedAt)
	}

	switch task.Status {
	case client.StatusSuccess:
		if task.Duration.Valid && task.Duration.Value != 0 {
			_, _ = fmt.Fprintf(w, "Execution Time: %s\n", FormatDurationLong(task.Duration.Value))
		}
		_, _ = fmt.Fprintln(w, "\nResults:")
		if len(task.Result) == 0 || string(task.Result) == "null" {
			_, _ = fmt.Fprintln(w, "No result data available")
			return
		}
		_, _ = fmt.Fprintln(w, indentJSON(task.Result))
	case client.StatusFailure:
		errMsg := task.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		failureType := task.FailureType
		if failureType == "" {
			failureType = "UNKNOWN_ERROR"
		}
		_, _ = fmt.Fprintf(w, "\nError: %s\n", errMsg)
		_, _ = fmt.Fprintf(w, "Failure Type: %s\n", failureType)
		_, _ = fmt.Fprintf(w, "Retries Attempted: %s\n", retries(*task))
		if hint := FailureHint(task.FailureType); hint != "" {
			_, _ = fmt.Fprintf(w, "Note: %s\n", hint)
		}
	case client.StatusPending:
		_, _ = fmt.Fprintln(w, "\nJob is still pending in the queue")
	case client.StatusRetry:
		_, _ = fmt.Fprintln(w, "\nJob failed transiently and is waiting to be retried")
	case client.StatusStarted:
		_, _ = fmt.Fprintln(w, "\nJob is currently running")
		if len(task.Progress) > 0 && string(task.Progress) != "null" {
			_, _ = fmt.Fprintf(w, "Progress: %s\n", scalar(task.Progress))
		}
	case client.StatusRevoked:
		_, _ = fmt.Fprintln(w, "\nJob was canceled")
	}
}

func WriteSubmitted(w io.Writer, label string, resp *client.SubmitResponse) {
	_, _ = fmt.Fprintf(w, "%s submitted successfully with ID: %s\n", label, resp.TaskID)
	_, _ = fmt.Fprintf(w, "Status: %s\n", orUnknown(resp.Status))
	_, _ = fmt.Fprintf(w, "Use 'guestctl job status %s' to check the status\n", resp.TaskID)
}

func WriteResubmitted(w io.Writer, resp *client.ResubmitResponse) {
	_, _ = fmt.Fprintln(w, "Job resubmitted successfully!")
	_, _ = fmt.Fprintf(w, "New Job ID: %s\n", resp.TaskID)
	_, _ = fmt.Fprintf(w, "Status: %s\n", orUnknown(resp.Status))
	_, _ = fmt.Fprintf(w, "Resubmitted from: %s\n", orUnknown(resp.ResubmittedFrom))
	_, _ = fmt.Fprintf(w, "Use 'guestctl job status %s' to check the status\n", resp.TaskID)
}

func WriteCanceled(w io.Writer, resp *client.CancelResponse) {
	_, _ = fmt.Fprintf(w, "Canceled: %s (status: %s)\n", resp.TaskID, resp.Status)
	if resp.Message != "" {
		_, _ = fmt.Fprintln(w, resp.Message)
	}
}

const maxSkippedShown = 10

func WriteCancelPending(w io.Writer, resp *client.CancelPendingResponse) {
	_, _ = fmt.Fprintf(w, "Canceled %d job(s).\n", len(resp.Canceled))
	if len(resp.Skipped) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "Skipped %d job(s):\n", len(resp.Skipped))
	for i, entry := range resp.Skipped {
		if i == maxSkippedShown {
			_, _ = fmt.Fprintf(w, "  ... and %d more\n", len(resp.Skipped)-maxSkippedShown)
			break
		}
		_, _ = fmt.Fprintf(w, "  %s (status: %s)\n", entry.TaskID, entry.Status)
	}
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// scalar prints JSON strings without quotes and anything else verbatim.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
