package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guest-quantum/guestctl/pkg/guestctl/auth"
	"github.com/guest-quantum/guestctl/pkg/guestctl/config"
	"github.com/guest-quantum/guestctl/pkg/guestctl/output"
	"github.com/guest-quantum/guestctl/pkg/system"
)

// Config wires the command tree to its environment. Zero values use the process
// defaults: stdout, stderr, the real clock and the system browser.
type Config struct {
	// Context is the parent of every command context, typically cancelled on SIGINT.
	Context      context.Context
	ConfigPath   string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	Clock        clockwork.Clock
	OpenBrowser  func(url string) error
}

type runtimeState struct {
	configPath           string
	cfg                  *config.Config
	contextOverride      string
	outputFormat         string
	serverOverride       string
	tokenOverride        string
	tokenStorageOverride string
	nonInteractive       bool
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	clock                clockwork.Clock
	openBrowser          func(url string) error
	log                  *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
		OpenBrowser:  auth.OpenBrowser,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:  cfg.ConfigPath,
		writer:      cfg.OutputWriter,
		errWriter:   cfg.ErrWriter,
		clock:       cfg.Clock,
		openBrowser: cfg.OpenBrowser,
	}

	root := &cobra.Command{
		Use:           "guestctl",
		Short:         "Command line client for the GUEST quantum backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt.applyEnv()

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" || cmd.Name() == cobra.ShellCompRequestCmd {
				return nil
			}
			// Server and token on the command line need no config file.
			if rt.serverOverride != "" && rt.tokenOverride != "" {
				if _, err := os.Stat(rt.configPathValue()); err != nil {
					minimal := config.DefaultConfig()
					rt.cfg = &minimal
					return nil
				}
			}

			cfg, err := config.Load(rt.configPathValue())
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return errors.New("no config found at " + rt.configPathValue() + "; run 'guestctl config init'")
				}
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.contextOverride, "context", "c", "", "Context name override")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, wide, json, yaml")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "GUEST server URL override")
	root.PersistentFlags().StringVar(&rt.tokenOverride, "token", "", "Bearer token override (skips the credential store)")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: file or keychain")
	root.PersistentFlags().BoolVar(&rt.nonInteractive, "non-interactive", false, "Fail instead of starting a device login")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")

	registerFlagCompletions(root, rt)

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	root.SetContext(context.WithValue(base, runtimeKey{}, rt))

	root.AddCommand(
		NewConfigCommand(),
		NewAuthCommand(),
		NewExperimentCommand(),
		NewJobCommand(),
		NewAvailabilityCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func (rt *runtimeState) applyEnv() {
	if rt.writer == nil {
		rt.writer = os.Stdout
	}
	if rt.errWriter == nil {
		rt.errWriter = os.Stderr
	}
	if rt.contextOverride == "" {
		rt.contextOverride = os.Getenv("GUESTCTL_CONTEXT")
	}
	if rt.outputFormat == "" {
		rt.outputFormat = os.Getenv("GUESTCTL_OUTPUT")
	}
	if rt.serverOverride == "" {
		rt.serverOverride = os.Getenv("GUESTCTL_SERVER")
	}
	if rt.tokenOverride == "" {
		rt.tokenOverride = os.Getenv("GUESTCTL_TOKEN")
	}
	if rt.tokenStorageOverride == "" {
		rt.tokenStorageOverride = os.Getenv("GUESTCTL_TOKEN_STORAGE")
	}
	if !rt.nonInteractive {
		rt.nonInteractive = strings.EqualFold(os.Getenv("GUESTCTL_NON_INTERACTIVE"), "true")
	}
	if !rt.verbose {
		rt.verbose = strings.EqualFold(os.Getenv("GUESTCTL_VERBOSE"), "true")
	}
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) ResolveContextName() string {
	if rt.contextOverride != "" {
		return rt.contextOverride
	}
	if rt.cfg != nil {
		return rt.cfg.CurrentContextOrDefault()
	}
	return ""
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	if rt.outputFormat != "" {
		return output.ParseFormat(rt.outputFormat)
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return output.ParseFormat(rt.cfg.Settings.OutputFormat)
	}
	return output.FormatTable, nil
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenStorage != "" {
		return rt.cfg.Settings.TokenStorage
	}
	return config.TokenStorageFile
}

func (rt *runtimeState) Settings() config.Settings {
	if rt.cfg != nil {
		return rt.cfg.Settings
	}
	s := config.Settings{}
	s.ApplyDefaults()
	return s
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) ErrWriter() io.Writer {
	if rt.errWriter != nil {
		return rt.errWriter
	}
	return os.Stderr
}

// Logger is built on first use so --verbose and GUESTCTL_VERBOSE are already applied.
func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log == nil {
		rt.log = system.NewLogger(rt.verbose, rt.ErrWriter()).Sugar()
	}
	return rt.log
}

func (rt *runtimeState) Clock() clockwork.Clock {
	if rt.clock == nil {
		rt.clock = clockwork.NewRealClock()
	}
	return rt.clock
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPathValue())
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

func (rt *runtimeState) ResolveContext() (*config.Context, error) {
	if rt.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	name := rt.ResolveContextName()
	if name == "" {
		return nil, errors.New("no context configured; run 'guestctl config init'")
	}
	return rt.cfg.FindContext(name)
}

func (rt *runtimeState) resolveServer(ctx *config.Context) string {
	if rt.serverOverride != "" {
		return rt.serverOverride
	}
	if ctx != nil {
		return ctx.Server
	}
	return ""
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}

// writeOutput renders obj in a structured format or falls back to the table writer.
func writeOutput(rt *runtimeState, obj any, table func(io.Writer, output.Format)) error {
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	if format.Structured() {
		return output.WriteObject(rt.Writer(), format, obj)
	}
	table(rt.Writer(), format)
	return nil
}
