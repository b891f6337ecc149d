package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/guest-quantum/guestctl/pkg/guestctl/batch"
)

func WriteBatchSummary(w io.Writer, summary *batch.Summary) {
	for _, res := range summary.Results {
		if res.Err == nil {
			continue
		}
		if errors.Is(res.Err, batch.ErrNotCompleted) {
			_, _ = fmt.Fprintf(w, "WARNING: Job %s is not completed yet. Status: %s\n", res.TaskID, res.Status)
			continue
		}
		_, _ = fmt.Fprintf(w, "Failed to download %s: %v\n", res.TaskID, res.Err)
	}
	_, _ = fmt.Fprintln(w, "\nDownload Summary:")
	_, _ = fmt.Fprintf(w, "Successful:       %d\n", summary.Successful)
	_, _ = fmt.Fprintf(w, "Failed:           %d\n", summary.Failed)
	_, _ = fmt.Fprintf(w, "Output directory: %s\n", summary.OutputDir)
}
