// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "TEAMFLOW_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local use against a scratch database.
	Development Environment = "development"
	// Production is for a long-lived shared database.
	Production Environment = "production"
)

// Config is the teamflow configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Paths    PathsConfig    `yaml:"paths"`
	Store    StoreConfig    `yaml:"store"`
	Presence PresenceConfig `yaml:"presence"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`

	// Per-environment overrides, applied after the base config.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths    *PathsConfig    `yaml:"paths,omitempty"`
	Store    *StoreConfig    `yaml:"store,omitempty"`
	Presence *PresenceConfig `yaml:"presence,omitempty"`
	Session  *SessionConfig  `yaml:"session,omitempty"`
	Log      *LogConfig      `yaml:"log,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for teamflow data. Other paths may
	// refer to it as ${TEAMFLOW_ROOT}.
	Root string `yaml:"root"`
}

// StoreConfig configures the embedded datastore.
type StoreConfig struct {
	// Path is the SQLite database file.
	// Default: ${TEAMFLOW_ROOT}/teamflow.db
	Path string `yaml:"path"`

	// PoolSize bounds concurrent connections. Default: 8
	PoolSize int `yaml:"pool_size"`
}

// PresenceConfig configures the heartbeat and the online window.
type PresenceConfig struct {
	// Interval is the heartbeat and poll period. Default: 30s
	Interval time.Duration `yaml:"interval"`

	// Window is how recent a heartbeat must be to count as online.
	// Default: 5m
	Window time.Duration `yaml:"window"`
}

// SessionConfig configures the CLI's persisted session.
type SessionConfig struct {
	// File holds the bearer token between CLI invocations, mode 0600.
	// Default: ${TEAMFLOW_ROOT}/session
	File string `yaml:"file"`

	// TTL bounds token lifetime. Zero means tokens last until logout.
	TTL time.Duration `yaml:"ttl"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`
}

// Default returns the development configuration used when no file is
// given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root: filepath.Join("${HOME}", ".local", "share", "teamflow"),
		},
		Store: StoreConfig{
			Path:     filepath.Join("${TEAMFLOW_ROOT}", "teamflow.db"),
			PoolSize: 8,
		},
		Presence: PresenceConfig{
			Interval: 30 * time.Second,
			Window:   5 * time.Minute,
		},
		Session: SessionConfig{
			File: filepath.Join("${TEAMFLOW_ROOT}", "session"),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads the file named by TEAMFLOW_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your teamflow.yaml, or use --config", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults, applies
// the matching environment overrides, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

// Resolve picks the configuration for a command: flagPath when set,
// else TEAMFLOW_CONFIG when set, else the expanded defaults.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges a YAML file into the current config. Unknown keys
// are errors.
func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvironmentOverrides applies the section matching Environment.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
		// Production defaults: sessions expire.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Session: &SessionConfig{TTL: 30 * 24 * time.Hour},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil && overrides.Paths.Root != "" {
		c.Paths.Root = overrides.Paths.Root
	}

	if overrides.Store != nil {
		if overrides.Store.Path != "" {
			c.Store.Path = overrides.Store.Path
		}
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Presence != nil {
		if overrides.Presence.Interval != 0 {
			c.Presence.Interval = overrides.Presence.Interval
		}
		if overrides.Presence.Window != 0 {
			c.Presence.Window = overrides.Presence.Window
		}
	}

	if overrides.Session != nil {
		if overrides.Session.File != "" {
			c.Session.File = overrides.Session.File
		}
		if overrides.Session.TTL != 0 {
			c.Session.TTL = overrides.Session.TTL
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"TEAMFLOW_ROOT": c.Paths.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["TEAMFLOW_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Store.Path = expandVars(c.Store.Path, vars)
	c.Session.File = expandVars(c.Session.File, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, preferring
// vars over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Store.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("store.pool_size must be at least 1, got %d", c.Store.PoolSize))
	}

	if c.Presence.Interval <= 0 {
		errs = append(errs, fmt.Errorf("presence.interval must be positive, got %s", c.Presence.Interval))
	}
	if c.Presence.Window < c.Presence.Interval {
		errs = append(errs, fmt.Errorf("presence.window (%s) must be at least presence.interval (%s)",
			c.Presence.Window, c.Presence.Interval))
	}

	if c.Session.File == "" {
		errs = append(errs, errors.New("session.file is required"))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl must not be negative, got %s", c.Session.TTL))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the data root and the parents of the store and
// session files.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		filepath.Dir(c.Store.Path),
		filepath.Dir(c.Session.File),
	}
	for _, path := range paths {
		if path == "" || path == "." {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
