// Package config defines the typed configuration for git-privacy.
//
// Repository-scoped values (password, salt, mode, pattern, limit, store path)
// come from the repository's git config under the "privacy" section; tool
// settings (logging, progress) come from an optional config.yaml next to the
// recovery store. Both are resolved once per invocation and passed explicitly
// through every core call.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gitprivacy/git-privacy/pkg/errclass"
)

// Defaults applied when the repository config omits a key.
const (
	DefaultMode    = "reduce"
	DefaultPattern = "s"
	StoreFileName  = "history.db"
)

// Config carries the repository-scoped privacy settings.
//
// Password is supplied per invocation and never persisted by the core.
// Salt is generated once per repository and stable thereafter; losing it
// orphans every existing recovery record.
type Config struct {
	Password string
	Salt     string
	Mode     string // "reduce" or "random"; default "reduce"
	Pattern  string // reduction directives; meaningful only in reduce mode, default "s"
	Limit    bool   // bound random timestamps to a sub-day window
	// StorePath overrides the recovery store location. Empty means
	// <gitdir>/privacy/history.db.
	StorePath string
}

// ApplyDefaults fills unset optional fields with their documented defaults.
func (c *Config) ApplyDefaults(gitDir string) {
	if c.Mode == "" {
		c.Mode = DefaultMode
	}
	if c.Mode == DefaultMode && c.Pattern == "" {
		c.Pattern = DefaultPattern
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(gitDir, "privacy", StoreFileName)
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.Password == "" {
		return errclass.ErrConfig.WithMessage("no password configured (privacy.password)")
	}
	if c.Mode != "reduce" && c.Mode != "random" {
		return errclass.ErrConfig.WithMessagef("unknown mode %q", c.Mode)
	}
	return nil
}

// Settings are tool-level options read from config.yaml.
type Settings struct {
	Logging  LoggingSettings `yaml:"logging"`
	Progress bool            `yaml:"progress"`
}

// LoggingSettings configures the structured logger.
type LoggingSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, text
}

// DefaultSettings returns the default tool settings.
func DefaultSettings() *Settings {
	return &Settings{
		Logging:  LoggingSettings{Level: "warn", Format: "text"},
		Progress: true,
	}
}

// LoadSettings reads config.yaml from the privacy directory.
// A missing file yields the defaults.
func LoadSettings(privacyDir string) (*Settings, error) {
	s := DefaultSettings()
	path := filepath.Join(privacyDir, "config.yaml")

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// SaveSettings writes config.yaml into the privacy directory.
func SaveSettings(privacyDir string, s *Settings) error {
	if err := os.MkdirAll(privacyDir, 0755); err != nil {
		return fmt.Errorf("create privacy dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(filepath.Join(privacyDir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
