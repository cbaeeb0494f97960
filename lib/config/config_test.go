// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "teamflow.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Presence.Interval != 30*time.Second || cfg.Presence.Window != 5*time.Minute {
		t.Errorf("presence = %+v, want 30s interval and 5m window", cfg.Presence)
	}
	if cfg.Store.PoolSize != 8 {
		t.Errorf("expected pool_size=8, got %d", cfg.Store.PoolSize)
	}
	if cfg.Session.TTL != 0 {
		t.Errorf("expected unbounded development sessions, got ttl=%s", cfg.Session.TTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoad_RequiresTeamflowConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TEAMFLOW_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "TEAMFLOW_CONFIG environment variable not set") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("HOME", "/home/ada")
	t.Setenv(EnvVar, "")

	cfg, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve without file: %v", err)
	}
	if want := "/home/ada/.local/share/teamflow/teamflow.db"; cfg.Store.Path != want {
		t.Errorf("store.path = %q, want %q", cfg.Store.Path, want)
	}

	envPath := writeConfig(t, "store:\n  pool_size: 3\n")
	t.Setenv(EnvVar, envPath)
	cfg, err = Resolve("")
	if err != nil {
		t.Fatalf("Resolve from env: %v", err)
	}
	if cfg.Store.PoolSize != 3 {
		t.Errorf("env config not used: pool_size=%d", cfg.Store.PoolSize)
	}

	flagPath := writeConfig(t, "store:\n  pool_size: 5\n")
	cfg, err = Resolve(flagPath)
	if err != nil {
		t.Fatalf("Resolve from flag: %v", err)
	}
	if cfg.Store.PoolSize != 5 {
		t.Errorf("--config should win over TEAMFLOW_CONFIG: pool_size=%d", cfg.Store.PoolSize)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: development

paths:
  root: /custom/root

store:
  pool_size: 2

presence:
  interval: 10s
  window: 2m

session:
  file: ${TEAMFLOW_ROOT}/tokens/session
  ttl: 12h

log:
  level: debug
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/custom/root" {
		t.Errorf("expected root=/custom/root, got %s", cfg.Paths.Root)
	}
	if cfg.Store.Path != "/custom/root/teamflow.db" {
		t.Errorf("default store path not expanded against root: %s", cfg.Store.Path)
	}
	if cfg.Store.PoolSize != 2 {
		t.Errorf("expected pool_size=2, got %d", cfg.Store.PoolSize)
	}
	if cfg.Presence.Interval != 10*time.Second || cfg.Presence.Window != 2*time.Minute {
		t.Errorf("presence = %+v", cfg.Presence)
	}
	if cfg.Session.File != "/custom/root/tokens/session" {
		t.Errorf("expected expanded session file, got %s", cfg.Session.File)
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("expected ttl=12h, got %s", cfg.Session.TTL)
	}
	if level, err := cfg.LogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel = %v, %v; want debug", level, err)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, "store:\n  pth: /typo.db\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Fatal("expected error for unknown key store.pth")
	}
}

func TestLoadFileEmpty(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("empty file: %v", err)
	}
	if cfg.Store.PoolSize != 8 {
		t.Errorf("empty file should keep defaults, pool_size=%d", cfg.Store.PoolSize)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

paths:
  root: /default/root

log:
  level: debug

production:
  paths:
    root: /prod/root
  session:
    ttl: 48h
  log:
    level: warn
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if cfg.Store.Path != "/prod/root/teamflow.db" {
		t.Errorf("store path should follow the overridden root, got %s", cfg.Store.Path)
	}
	if cfg.Session.TTL != 48*time.Hour {
		t.Errorf("expected ttl=48h from production override, got %s", cfg.Session.TTL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn, got %s", cfg.Log.Level)
	}
}

func TestProductionDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Session.TTL != 30*24*time.Hour {
		t.Errorf("production without overrides should bound sessions, ttl=%s", cfg.Session.TTL)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("TEAMFLOW_ROOT", "/env/root")
	t.Setenv("TEAMFLOW_ENVIRONMENT", "production")

	cfg, err := LoadFile(writeConfig(t, "environment: development\npaths:\n  root: /file/root\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/teamflow", map[string]string{"HOME": "/home/user"}, "/home/user/teamflow"},
		{"${MISSING_TEAMFLOW_VAR:-default}", map[string]string{}, "default"},
		{"${PRESENT:-default}", map[string]string{"PRESENT": "value"}, "value"},
		{"${A}/${B}", map[string]string{"A": "first", "B": "second"}, "first/second"},
		{"no variables here", map[string]string{}, "no variables here"},
	}

	for _, tt := range tests {
		if result := expandVars(tt.input, tt.vars); result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"invalid environment", func(c *Config) { c.Environment = "staging" }, "invalid environment"},
		{"empty root path", func(c *Config) { c.Paths.Root = "" }, "paths.root"},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"zero pool", func(c *Config) { c.Store.PoolSize = 0 }, "pool_size"},
		{"zero interval", func(c *Config) { c.Presence.Interval = 0 }, "presence.interval"},
		{"window shorter than interval", func(c *Config) { c.Presence.Window = 10 * time.Second }, "presence.window"},
		{"negative ttl", func(c *Config) { c.Session.TTL = -time.Second }, "session.ttl"},
		{"bad log level", func(c *Config) { c.Log.Level = "chatty" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("Validate() = %v, want nil", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Store.Path = ""
	cfg.Session.File = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"store.path", "session.file"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q missing %s", err, want)
		}
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "teamflow")
	cfg.Store.Path = filepath.Join(cfg.Paths.Root, "db", "teamflow.db")
	cfg.Session.File = filepath.Join(tmpDir, "state", "session")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, filepath.Dir(cfg.Store.Path), filepath.Dir(cfg.Session.File)} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
