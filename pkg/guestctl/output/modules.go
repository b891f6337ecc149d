package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
)

type ModuleSummary struct {
	Idle     int `json:"idle"`
	Locked   int `json:"locked"`
	Inactive int `json:"inactive"`
	Other    int `json:"other"`
}

func SummarizeModules(states client.ModuleStates) ModuleSummary {
	var s ModuleSummary
	for _, state := range states {
		switch state {
		case "idle":
			s.Idle++
		case "locked":
			s.Locked++
		case "inactive":
			s.Inactive++
		default:
			s.Other++
		}
	}
	return s
}

// Verdict is a one-line availability assessment.
func (s ModuleSummary) Verdict() string {
	switch {
	case s.Locked > 0:
		return "Some modules are locked (busy)"
	case s.Idle > 0:
		return "Modules are available for new jobs"
	default:
		return "No active modules found"
	}
}

func WriteModuleStates(w io.Writer, states client.ModuleStates) {
	names := make([]string, 0, len(states))
	for name := range states {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODULE\tSTATE")
	for _, name := range names {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", name, states[name])
	}
	_ = tw.Flush()

	summary := SummarizeModules(states)
	_, _ = fmt.Fprintf(w, "\nSummary: %d idle, %d locked, %d inactive\n", summary.Idle, summary.Locked, summary.Inactive)
	_, _ = fmt.Fprintln(w, summary.Verdict())
}
