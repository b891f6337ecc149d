package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/guest-quantum/guestctl/pkg/guestctl/config"
)

func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			w := rt.Writer()
			switch shell := args[0]; shell {
			case "bash":
				return cmd.Root().GenBashCompletionV2(w, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(w)
			case "fish":
				return cmd.Root().GenFishCompletion(w, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(w)
			default:
				return fmt.Errorf("unsupported shell: %s", shell)
			}
		},
	}
	return cmd
}

// registerFlagCompletions completes the global flags whose values are known up front
// or can be read from the config file.
func registerFlagCompletions(root *cobra.Command, rt *runtimeState) {
	_ = root.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(config.OutputFormats, cobra.ShellCompDirectiveNoFileComp))
	_ = root.RegisterFlagCompletionFunc("token-storage", cobra.FixedCompletions(config.TokenStorages, cobra.ShellCompDirectiveNoFileComp))
	_ = root.RegisterFlagCompletionFunc("context", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return contextNames(rt), cobra.ShellCompDirectiveNoFileComp
	})
}

func contextNames(rt *runtimeState) []string {
	cfg, err := config.Load(rt.configPathValue())
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(cfg.Contexts))
	for _, ctx := range cfg.Contexts {
		names = append(names, ctx.Name)
	}
	return names
}
