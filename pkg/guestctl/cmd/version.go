package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
	"github.com/guest-quantum/guestctl/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show guestctl version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetBuildInfo()
			rt, err := getRuntime(cmd)
			if err != nil {
				// Used outside the root command there is no runtime.
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), info.String())
				return nil
			}
			return writeOutput(rt, info, func(w io.Writer, _ output.Format) {
				_, _ = fmt.Fprintln(w, info.String())
			})
		},
	}
}
