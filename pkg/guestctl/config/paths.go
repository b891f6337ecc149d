package config

import (
	"os"
	"path/filepath"
)

const (
	ConfigEnvVar = "GUESTCTL_CONFIG"

	defaultConfigDirName  = "guestctl"
	defaultConfigFile     = "config.yaml"
	defaultCredentialsDir = "credentials"
)

func DefaultConfigPath() string {
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

// DefaultCredentialPath is the per-context credential file used by the file store.
func DefaultCredentialPath(contextName string) string {
	if contextName == "" {
		contextName = "default"
	}
	return filepath.Join(configDir(), defaultCredentialsDir, contextName+".json")
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}
