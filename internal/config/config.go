// Package config provides configuration loading for remedyd.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root remedyd configuration.
type Config struct {
	Store       StoreConfig       `koanf:"store"`
	Runner      RunnerConfig      `koanf:"runner"`
	Suite       SuiteConfig       `koanf:"suite"`
	Remediation RemediationConfig `koanf:"remediation"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// StoreConfig locates the backing store.
type StoreConfig struct {
	// Path is the store file path. Empty uses ~/.config/remedyd/store.json.
	Path string `koanf:"path"`
}

// RunnerConfig tunes check execution.
type RunnerConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// PhaseConfig declares one phase of the suite.
type PhaseConfig struct {
	Name   string   `koanf:"name"`
	Checks []string `koanf:"checks"`
}

// SuiteConfig declares the ordered phases and the bootstrap check.
type SuiteConfig struct {
	// BootstrapCheck names the check whose pass marks the report
	// bootstrap-verified.
	BootstrapCheck string `koanf:"bootstrap_check"`

	// Phases run in declared order; checks within a phase run in
	// declared order.
	Phases []PhaseConfig `koanf:"phases"`
}

// RemediationConfig controls automated repair behavior.
type RemediationConfig struct {
	Enabled              bool `koanf:"enabled"`
	DryRun               bool `koanf:"dry_run"`
	BackupEnabled        bool `koanf:"backup_enabled"`
	RollbackEnabled      bool `koanf:"rollback_enabled"`
	RollbackOnAnyFailure bool `koanf:"rollback_on_any_failure"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Runner.Timeout == 0 {
		cfg.Runner.Timeout = 30 * time.Second
	}
	if cfg.Runner.MaxRetries == 0 {
		cfg.Runner.MaxRetries = 3
	}
	if cfg.Runner.RetryDelay == 0 {
		cfg.Runner.RetryDelay = time.Second
	}

	if len(cfg.Suite.Phases) == 0 {
		cfg.Suite.Phases = []PhaseConfig{
			{Name: "bootstrap", Checks: []string{"store-roundtrip"}},
			{Name: "configuration", Checks: []string{"config-suite", "config-version"}},
		}
	}
	if cfg.Suite.BootstrapCheck == "" {
		cfg.Suite.BootstrapCheck = cfg.Suite.Phases[0].Checks[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("runner timeout must be > 0, got %s", c.Runner.Timeout)
	}
	if c.Runner.MaxRetries < 1 {
		return fmt.Errorf("runner max_retries must be >= 1, got %d", c.Runner.MaxRetries)
	}
	if c.Runner.RetryDelay < 0 {
		return fmt.Errorf("runner retry_delay must be >= 0, got %s", c.Runner.RetryDelay)
	}

	if len(c.Suite.Phases) == 0 {
		return errors.New("suite must declare at least one phase")
	}
	seen := make(map[string]bool)
	for _, phase := range c.Suite.Phases {
		if phase.Name == "" {
			return errors.New("phase name cannot be empty")
		}
		if seen[phase.Name] {
			return fmt.Errorf("duplicate phase name: %s", phase.Name)
		}
		seen[phase.Name] = true
		if len(phase.Checks) == 0 {
			return fmt.Errorf("phase %s declares no checks", phase.Name)
		}
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
