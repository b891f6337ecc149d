package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/client"
	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
)

type availability struct {
	Server  string               `json:"server"`
	Modules client.ModuleStates  `json:"modules"`
	Summary output.ModuleSummary `json:"summary"`
	Verdict string               `json:"verdict"`
}

func NewAvailabilityCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "availability",
		Aliases: []string{"avail"},
		Short:   "Check that the backend is reachable and show the quantum-control module states",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, func(ctx context.Context, rt *runtimeState, apiClient *client.Client) error {
				if err := apiClient.Ping(ctx); err != nil {
					return fmt.Errorf("backend at %s is not available: %w", apiClient.BaseURL(), err)
				}
				states, err := apiClient.ModuleStates(ctx)
				if err != nil {
					return err
				}
				summary := output.SummarizeModules(states)
				view := availability{Server: apiClient.BaseURL(), Modules: states, Summary: summary, Verdict: summary.Verdict()}
				return writeOutput(rt, view, func(w io.Writer, _ output.Format) {
					_, _ = fmt.Fprintf(w, "Backend %s is reachable\n\n", apiClient.BaseURL())
					output.WriteModuleStates(w, states)
				})
			})
		},
	}
}
