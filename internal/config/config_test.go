// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, durations and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "operator.yaml", `
working_dir: /srv/work
data_dir: /var/lib/coven-operator
default_provider: codex
message_limit: 2000
stop_grace: "2s"
tick_interval: "3s"

providers:
  codex:
    path: /opt/codex
    models: [gpt-5.3-codex, gpt-5-mini]
  gemini:
    aggregate: last

matrix:
  homeserver: "https://matrix.example.com"
  user_id: "@operator:example.com"
  access_token: "tok"
  allowed_users:
    - "@harper:example.com"

ledger:
  enabled: false
  retention: "48h"

metrics:
  enabled: true
  addr: ":9100"

logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.WorkingDir != "/srv/work" {
		t.Errorf("WorkingDir = %q, want /srv/work", cfg.WorkingDir)
	}
	if cfg.DefaultProvider != "codex" {
		t.Errorf("DefaultProvider = %q, want codex", cfg.DefaultProvider)
	}
	if cfg.MessageLimit != 2000 {
		t.Errorf("MessageLimit = %d, want 2000", cfg.MessageLimit)
	}
	if cfg.StopGrace != 2*time.Second {
		t.Errorf("StopGrace = %v, want 2s", cfg.StopGrace)
	}
	if cfg.TickInterval != 3*time.Second {
		t.Errorf("TickInterval = %v, want 3s", cfg.TickInterval)
	}
	if got := cfg.Providers["codex"].Models; len(got) != 2 || got[1] != "gpt-5-mini" {
		t.Errorf("codex models = %v", got)
	}
	if got := cfg.ResolveProviderPath("codex"); got != "/opt/codex" {
		t.Errorf("ResolveProviderPath(codex) = %q, want /opt/codex", got)
	}
	// Partial provider sections keep the default models.
	if got := cfg.Providers["gemini"].Models; len(got) != 2 || got[0] != "gemini-2.5-pro" {
		t.Errorf("gemini models = %v", got)
	}
	if got := cfg.Providers["claude"].Models; len(got) != 3 {
		t.Errorf("claude models = %v", got)
	}
	if cfg.Ledger.Enabled {
		t.Error("Ledger.Enabled = true, want false")
	}
	if cfg.Ledger.Retention != 48*time.Hour {
		t.Errorf("Ledger.Retention = %v, want 48h", cfg.Ledger.Retention)
	}
	if cfg.Ledger.Path != "/var/lib/coven-operator/ledger.db" {
		t.Errorf("Ledger.Path = %q", cfg.Ledger.Path)
	}
	if cfg.StatePath() != "/var/lib/coven-operator/state.json" {
		t.Errorf("StatePath() = %q", cfg.StatePath())
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Addr != ":9100" || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if err := cfg.Matrix.Validate(); err != nil {
		t.Errorf("Matrix.Validate() error = %v", err)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "operator.toml", `
default_provider = "gemini"
tick_interval = "2s"

[providers.gemini]
models = ["gemini-2.5-flash"]
display_name = "Gem"

[matrix]
homeserver = "https://matrix.org"
username = "operator"
password = "secret"
recovery_key = "EsT1 abcd"
command_prefix = "."
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DefaultProvider != "gemini" {
		t.Errorf("DefaultProvider = %q, want gemini", cfg.DefaultProvider)
	}
	if cfg.TickInterval != 2*time.Second {
		t.Errorf("TickInterval = %v, want 2s", cfg.TickInterval)
	}
	if cfg.StopGrace != 500*time.Millisecond {
		t.Errorf("StopGrace = %v, want default 500ms", cfg.StopGrace)
	}
	if got := cfg.Providers["gemini"]; got.DisplayName != "Gem" || len(got.Models) != 1 {
		t.Errorf("gemini = %+v", got)
	}
	if cfg.Matrix.CommandPrefix != "." {
		t.Errorf("CommandPrefix = %q, want .", cfg.Matrix.CommandPrefix)
	}
	if !cfg.Matrix.TypingIndicator {
		t.Error("TypingIndicator default lost")
	}
	if err := cfg.Matrix.Validate(); err != nil {
		t.Errorf("Matrix.Validate() error = %v", err)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_MATRIX_TOKEN", "expanded-token")
	path := writeConfig(t, "operator.yaml", `
matrix:
  homeserver: "https://matrix.org"
  user_id: "@bot:matrix.org"
  access_token: "${TEST_MATRIX_TOKEN}"
  password: "${TEST_UNSET_VARIABLE_XYZ}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Matrix.AccessToken != "expanded-token" {
		t.Errorf("AccessToken = %q, want expanded-token", cfg.Matrix.AccessToken)
	}
	if cfg.Matrix.Password != "" {
		t.Errorf("Password = %q, want empty for unset variable", cfg.Matrix.Password)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "operator.yaml", "{}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DefaultProvider != "claude" {
		t.Errorf("DefaultProvider = %q, want claude", cfg.DefaultProvider)
	}
	if cfg.MessageLimit != 4096 {
		t.Errorf("MessageLimit = %d, want 4096", cfg.MessageLimit)
	}
	if cfg.TickInterval != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.TickInterval)
	}
	if !cfg.Ledger.Enabled || cfg.Ledger.PruneSchedule != "@daily" {
		t.Errorf("Ledger = %+v", cfg.Ledger)
	}
	if cfg.WorkingDir == "" {
		t.Error("WorkingDir should default to the current directory")
	}
	names := cfg.ProviderNames()
	if strings.Join(names, ",") != "claude,codex,gemini" {
		t.Errorf("ProviderNames() = %v", names)
	}
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() error = %v", err)
	}
	if cfg.DefaultProvider != "claude" {
		t.Errorf("DefaultProvider = %q, want claude", cfg.DefaultProvider)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad yaml", "c.yaml", "providers: [unclosed", "parsing config file"},
		{"bad toml", "c.toml", "default_provider = ", "parsing config file"},
		{"bad duration", "c.yaml", "stop_grace: soon\n", "stop_grace"},
		{"bad retention", "c.yaml", "ledger:\n  retention: forever\n", "ledger.retention"},
		{"unknown default", "c.yaml", "default_provider: cursor\n", "default_provider"},
		{"unknown provider", "c.yaml", "providers:\n  cursor:\n    models: [x]\n", "providers.cursor"},
		{"bad aggregate", "c.yaml", "providers:\n  claude:\n    aggregate: sum\n", "aggregate"},
		{"small limit", "c.yaml", "message_limit: 10\n", "message_limit"},
		{"zero tick", "c.yaml", "tick_interval: 0s\n", "tick_interval"},
		{"bad level", "c.yaml", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "c.yaml", "logging:\n  format: xml\n", "logging.format"},
		{"bad prune schedule", "c.yaml", "ledger:\n  retention: 720h\n  prune_schedule: sometimes\n", "ledger.prune_schedule"},
		{"negative retention", "c.yaml", "ledger:\n  retention: -1h\n", "ledger.retention"},
		{"metrics without addr", "c.yaml", "metrics:\n  enabled: true\n  addr: \"\"\n", "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestMatrixConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MatrixConfig
		wantErr string
	}{
		{"token", MatrixConfig{Homeserver: "https://m.org", UserID: "@a:m.org", AccessToken: "t"}, ""},
		{"password", MatrixConfig{Homeserver: "http://localhost:8008", Username: "a", Password: "p"}, ""},
		{"no homeserver", MatrixConfig{AccessToken: "t"}, "matrix.homeserver is required"},
		{"bad scheme", MatrixConfig{Homeserver: "ftp://m.org", AccessToken: "t"}, "http or https"},
		{"token without user", MatrixConfig{Homeserver: "https://m.org", AccessToken: "t"}, "matrix.user_id"},
		{"no credentials", MatrixConfig{Homeserver: "https://m.org", Username: "a"}, "matrix.access_token or"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProviderOptions(t *testing.T) {
	cfg := Default()
	cfg.Providers["claude"] = ProviderConfig{Path: "/bin/claude-x", DisplayName: "CC", Aggregate: "concat"}

	opts, err := cfg.ProviderOptions()
	if err != nil {
		t.Fatalf("ProviderOptions() error = %v", err)
	}
	got := opts["claude"]
	if got.Path != "/bin/claude-x" || got.DisplayName != "CC" || got.Aggregate != "concat" {
		t.Errorf("claude options = %+v", got)
	}
	if opts["codex"].Path == "" {
		t.Error("codex path should resolve to at least the bare name")
	}
}

func TestValidate_ProviderWithoutPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	cfg := Default()
	cfg.Providers["gemini"] = ProviderConfig{Models: []string{"gemini-2.5-pro"}}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() rejected a provider without a path: %v", err)
	}
	if got := cfg.ResolveProviderPath("gemini"); got != "gemini" {
		t.Errorf("ResolveProviderPath(gemini) = %q, want bare name when not on PATH", got)
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	if got := DefaultConfigPath(); got != "/xdg/config/coven/operator.yaml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
	if got := DefaultDataDir(); got != "/xdg/data/coven-operator" {
		t.Errorf("DefaultDataDir() = %q", got)
	}

	t.Setenv(ConfigEnv, "/etc/operator.toml")
	if got := DefaultConfigPath(); got != "/etc/operator.toml" {
		t.Errorf("DefaultConfigPath() with env = %q", got)
	}
}

func TestWriteTemplate(t *testing.T) {
	t.Setenv("MATRIX_USER_ID", "@op:matrix.org")
	t.Setenv("MATRIX_ACCESS_TOKEN", "tok")
	path := filepath.Join(t.TempDir(), "coven", "operator.yaml")

	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Error("WriteTemplate() should refuse to overwrite without force")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("WriteTemplate(force) error = %v", err)
	}

	// The template itself must load and carry valid Matrix settings.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(template) error = %v", err)
	}
	if cfg.Ledger.Retention != 720*time.Hour {
		t.Errorf("template retention = %v", cfg.Ledger.Retention)
	}
	if err := cfg.Matrix.Validate(); err != nil {
		t.Errorf("template Matrix.Validate() error = %v", err)
	}
}
