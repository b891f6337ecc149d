package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/guest-quantum/guestctl/pkg/guestctl/transport"
)

const (
	VersionV1 = "v1"

	TokenStorageFile     = "file"
	TokenStorageKeychain = "keychain"

	DefaultTimeout            = "30s"
	DefaultResultsDir         = "results"
	DefaultExperimentInfosDir = "experiment_infos"
	DefaultBatchResultsDir    = "batch_results"
)

var (
	OutputFormats = []string{"table", "wide", "json", "yaml"}
	TokenStorages = []string{TokenStorageFile, TokenStorageKeychain}
)

type Config struct {
	Version        string    `yaml:"version"`
	CurrentContext string    `yaml:"current-context,omitempty"`
	Contexts       []Context `yaml:"contexts,omitempty"`
	Settings       Settings  `yaml:"settings,omitempty"`
}

type Settings struct {
	OutputFormat       string `yaml:"output-format,omitempty"`
	TokenStorage       string `yaml:"token-storage,omitempty"`
	Timeout            string `yaml:"timeout,omitempty"`
	RetryCount         *int   `yaml:"retry-count,omitempty"`
	PageSize           int    `yaml:"page-size,omitempty"`
	ResultsDir         string `yaml:"results-dir,omitempty"`
	ExperimentInfosDir string `yaml:"experiment-infos-dir,omitempty"`
	BatchResultsDir    string `yaml:"batch-results-dir,omitempty"`
}

type Context struct {
	Name                  string   `yaml:"name"`
	Server                string   `yaml:"server"`
	CAFile                string   `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify bool     `yaml:"insecure-skip-tls-verify,omitempty"`
	CredentialPath        string   `yaml:"credential-path,omitempty"`
	Keycloak              Keycloak `yaml:"keycloak"`
}

// Keycloak describes the realm guestctl authenticates against. URL defaults to
// the server URL with an /auth suffix, which is how GUEST deployments expose it.
type Keycloak struct {
	URL       string   `yaml:"url,omitempty"`
	Realm     string   `yaml:"realm"`
	ClientID  string   `yaml:"client-id"`
	Scopes    []string `yaml:"scopes,omitempty"`
	Discovery bool     `yaml:"discovery,omitempty"`
}

func DefaultConfig() Config {
	cfg := Config{Version: VersionV1}
	cfg.Settings.ApplyDefaults()
	return cfg
}

func (s *Settings) ApplyDefaults() {
	if s.OutputFormat == "" {
		s.OutputFormat = "table"
	}
	if s.TokenStorage == "" {
		s.TokenStorage = TokenStorageFile
	}
	if s.Timeout == "" {
		s.Timeout = DefaultTimeout
	}
	if s.ResultsDir == "" {
		s.ResultsDir = DefaultResultsDir
	}
	if s.ExperimentInfosDir == "" {
		s.ExperimentInfosDir = DefaultExperimentInfosDir
	}
	if s.BatchResultsDir == "" {
		s.BatchResultsDir = DefaultBatchResultsDir
	}
}

func (s Settings) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// TransportRetryCount converts the configured retry count into transport.Options
// semantics: unset keeps the transport default and an explicit zero disables retries.
func (s Settings) TransportRetryCount() int {
	switch {
	case s.RetryCount == nil:
		return 0
	case *s.RetryCount <= 0:
		return -1
	default:
		return *s.RetryCount
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	cfg.Settings.ApplyDefaults()
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) FindContext(name string) (*Context, error) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == name {
			return &c.Contexts[i], nil
		}
	}
	return nil, fmt.Errorf("context not found: %s", name)
}

// UpsertContext replaces the context with the same name or appends it.
func (c *Config) UpsertContext(ctx Context) {
	for i := range c.Contexts {
		if c.Contexts[i].Name == ctx.Name {
			c.Contexts[i] = ctx
			return
		}
	}
	c.Contexts = append(c.Contexts, ctx)
}

func (c *Config) CurrentContextOrDefault() string {
	if c.CurrentContext != "" {
		return c.CurrentContext
	}
	if len(c.Contexts) > 0 {
		return c.Contexts[0].Name
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	seen := map[string]bool{}
	for _, ctx := range c.Contexts {
		if err := ctx.Validate(); err != nil {
			return err
		}
		if seen[ctx.Name] {
			return fmt.Errorf("duplicate context %s", ctx.Name)
		}
		seen[ctx.Name] = true
	}
	if c.CurrentContext != "" && !seen[c.CurrentContext] {
		return fmt.Errorf("current-context %s does not exist", c.CurrentContext)
	}
	return c.Settings.Validate()
}

func (s Settings) Validate() error {
	if s.OutputFormat != "" && !slices.Contains(OutputFormats, s.OutputFormat) {
		return fmt.Errorf("unsupported output-format %q (expected one of %s)", s.OutputFormat, strings.Join(OutputFormats, ", "))
	}
	if s.TokenStorage != "" && !slices.Contains(TokenStorages, s.TokenStorage) {
		return fmt.Errorf("unsupported token-storage %q (expected one of %s)", s.TokenStorage, strings.Join(TokenStorages, ", "))
	}
	if _, err := s.TimeoutDuration(); err != nil {
		return err
	}
	if s.PageSize < 0 {
		return errors.New("page-size cannot be negative")
	}
	return nil
}

func (c Context) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("context name cannot be empty")
	}
	if strings.TrimSpace(c.Server) == "" {
		return fmt.Errorf("context %s server is required", c.Name)
	}
	if strings.TrimSpace(c.Keycloak.Realm) == "" {
		return fmt.Errorf("context %s keycloak realm is required", c.Name)
	}
	if strings.TrimSpace(c.Keycloak.ClientID) == "" {
		return fmt.Errorf("context %s keycloak client-id is required", c.Name)
	}
	if err := c.TLSPolicy().Validate(); err != nil {
		return fmt.Errorf("context %s: %w", c.Name, err)
	}
	return nil
}

func (c Context) TLSPolicy() transport.TLSPolicy {
	return transport.TLSPolicy{CAFile: c.CAFile, InsecureSkipVerify: c.InsecureSkipTLSVerify}
}

func (c Context) KeycloakBaseURL() string {
	if c.Keycloak.URL != "" {
		return strings.TrimRight(c.Keycloak.URL, "/")
	}
	return strings.TrimRight(c.Server, "/") + "/auth"
}

// Issuer is the realm URL that serves the openid-configuration document.
func (c Context) Issuer() string {
	return c.KeycloakBaseURL() + "/realms/" + c.Keycloak.Realm
}

func (c Context) ResolveCredentialPath() string {
	if c.CredentialPath != "" {
		return c.CredentialPath
	}
	return DefaultCredentialPath(c.Name)
}
