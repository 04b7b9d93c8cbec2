// Package config handles XDG configuration directory and file paths.
package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application directory name.
	AppName = "taskman"

	// CredentialsFile is the stored credentials filename.
	CredentialsFile = "credentials.json"

	// DefaultBaseURL is the backend base URL used when TASKMAN_BASE_URL is unset.
	DefaultBaseURL = "http://localhost:8000/api/v1"

	// BaseURLEnv overrides the backend base URL.
	BaseURLEnv = "TASKMAN_BASE_URL"
)

// Config holds configuration paths and settings.
type Config struct {
	// Dir is the configuration directory path.
	Dir string

	// BaseURL is the backend base URL, including the version prefix.
	BaseURL string

	// Debug enables debug logging.
	Debug bool

	// Quiet suppresses informational output.
	Quiet bool
}

// New creates a new Config with the default or specified config directory.
// If configDir is empty, uses XDG_CONFIG_HOME/taskman or $HOME/.config/taskman.
func New(configDir string) (*Config, error) {
	dir := configDir
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return &Config{Dir: dir, BaseURL: DefaultBaseURLFromEnv()}, nil
}

// DefaultConfigDir returns the default configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

// DefaultBaseURLFromEnv returns the backend base URL, honoring TASKMAN_BASE_URL.
func DefaultBaseURLFromEnv() string {
	if url := os.Getenv(BaseURLEnv); url != "" {
		return url
	}
	return DefaultBaseURL
}

// CredentialsPath returns the path to the stored credentials file.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.Dir, CredentialsFile)
}

// EnsureDir creates the config directory if it doesn't exist.
// Directory is created with mode 0700.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}
