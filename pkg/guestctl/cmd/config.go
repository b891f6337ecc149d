package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/guest-quantum/guestctl/pkg/guestctl/config"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage guestctl configuration",
	}

	cmd.AddCommand(
		newConfigInitCommand(),
		newConfigViewCommand(),
		newConfigContextsCommand(),
		newConfigCurrentContextCommand(),
		newConfigSetContextCommand(),
		newConfigUseContextCommand(),
		newConfigSetValueCommand(),
		newConfigDeleteContextCommand(),
	)

	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var (
		ctx          config.Context
		scopes       []string
		tokenStorage string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a guestctl config file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			path := rt.configPathValue()
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config already exists: %s (use --force to overwrite)", path)
				}
			}
			if ctx.Name == "" {
				ctx.Name = "default"
			}
			ctx.Keycloak.Scopes = scopes
			if err := ctx.Validate(); err != nil {
				return err
			}
			cfg := config.DefaultConfig()
			if tokenStorage != "" {
				cfg.Settings.TokenStorage = tokenStorage
			}
			cfg.CurrentContext = ctx.Name
			cfg.Contexts = append(cfg.Contexts, ctx)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, &cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Initialized config at %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&ctx.Name, "context", "default", "Context name")
	cmd.Flags().StringVar(&ctx.Server, "server", "", "GUEST server URL")
	cmd.Flags().StringVar(&ctx.Keycloak.Realm, "realm", "", "Keycloak realm")
	cmd.Flags().StringVar(&ctx.Keycloak.ClientID, "client-id", "", "Keycloak client ID")
	cmd.Flags().StringVar(&ctx.Keycloak.URL, "keycloak-url", "", "Keycloak base URL (default <server>/auth)")
	cmd.Flags().StringSliceVar(&scopes, "scopes", []string{"openid"}, "OAuth2 scopes to request")
	cmd.Flags().BoolVar(&ctx.Keycloak.Discovery, "discovery", false, "Resolve endpoints via OIDC discovery")
	cmd.Flags().StringVar(&ctx.CAFile, "ca-file", "", "CA certificate for the server and Keycloak")
	cmd.Flags().BoolVar(&ctx.InsecureSkipTLSVerify, "insecure-skip-tls-verify", false, "Skip TLS verification")
	cmd.Flags().StringVar(&tokenStorage, "token-storage", "", "Token storage backend: file or keychain")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")

	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("realm")
	_ = cmd.MarkFlagRequired("client-id")
	return cmd
}

func newConfigViewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			content, err := yaml.Marshal(rt.cfg)
			if err != nil {
				return err
			}
			_, err = rt.Writer().Write(content)
			return err
		},
	}
}

func newConfigContextsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get-contexts",
		Short: "List configured contexts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			current := rt.cfg.CurrentContextOrDefault()
			tw := tabwriter.NewWriter(rt.Writer(), 2, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "CURRENT\tNAME\tSERVER\tREALM")
			for _, ctx := range rt.cfg.Contexts {
				marker := ""
				if ctx.Name == current {
					marker = "*"
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, ctx.Name, ctx.Server, ctx.Keycloak.Realm)
			}
			return tw.Flush()
		},
	}
}

func newConfigSetContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-context NAME",
		Short: "Set the default context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			if _, err := rt.cfg.FindContext(name); err != nil {
				return err
			}
			rt.cfg.CurrentContext = name
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Switched to context %s\n", name)
			return nil
		},
	}
}

func newConfigUseContextCommand() *cobra.Command {
	cmd := newConfigSetContextCommand()
	cmd.Use = "use-context NAME"
	cmd.Aliases = []string{"use"}
	cmd.Short = "Alias for set-context"
	return cmd
}

func newConfigCurrentContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "current-context",
		Short: "Show the current context",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(rt.Writer(), rt.ResolveContextName())
			return nil
		},
	}
}

func newConfigSetValueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long: "Set a configuration value. Supported keys: settings.output-format, settings.token-storage,\n" +
			"settings.timeout, settings.retry-count, settings.page-size, settings.results-dir,\n" +
			"settings.experiment-infos-dir, settings.batch-results-dir",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			if err := setValue(&rt.cfg.Settings, args[0], args[1]); err != nil {
				return err
			}
			if err := rt.cfg.Settings.Validate(); err != nil {
				return err
			}
			return config.Save(rt.configPathValue(), rt.cfg)
		},
	}
}

func setValue(s *config.Settings, key, value string) error {
	switch key {
	case "settings.output-format":
		s.OutputFormat = value
	case "settings.token-storage":
		s.TokenStorage = value
	case "settings.timeout":
		s.Timeout = value
	case "settings.retry-count":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid retry count: %s", value)
		}
		s.RetryCount = &n
	case "settings.page-size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid page size: %s", value)
		}
		s.PageSize = n
	case "settings.results-dir":
		s.ResultsDir = value
	case "settings.experiment-infos-dir":
		s.ExperimentInfosDir = value
	case "settings.batch-results-dir":
		s.BatchResultsDir = value
	default:
		return fmt.Errorf("unsupported key: %s", key)
	}
	return nil
}

func newConfigDeleteContextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-context NAME",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if err := rt.EnsureConfigLoaded(); err != nil {
				return err
			}
			name := args[0]
			filtered := rt.cfg.Contexts[:0]
			found := false
			for _, ctx := range rt.cfg.Contexts {
				if ctx.Name == name {
					found = true
					continue
				}
				filtered = append(filtered, ctx)
			}
			if !found {
				return fmt.Errorf("context not found: %s", name)
			}
			rt.cfg.Contexts = filtered
			if rt.cfg.CurrentContext == name {
				rt.cfg.CurrentContext = ""
			}
			if err := config.Save(rt.configPathValue(), rt.cfg); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "Deleted context %s\n", name)
			return nil
		},
	}
}
