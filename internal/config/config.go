// ABOUTME: Configuration loading and parsing for coven-operator
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-operator/internal/provider"
)

// Config represents the complete coven-operator configuration
type Config struct {
	WorkingDir      string `yaml:"working_dir" toml:"working_dir"`
	DataDir         string `yaml:"data_dir" toml:"data_dir"`
	DefaultProvider string `yaml:"default_provider" toml:"default_provider"`
	MessageLimit    int    `yaml:"message_limit" toml:"message_limit"`

	StopGrace    time.Duration `yaml:"-" toml:"-"`
	TickInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	StopGraceRaw    string `yaml:"stop_grace" toml:"stop_grace"`
	TickIntervalRaw string `yaml:"tick_interval" toml:"tick_interval"`

	Providers map[string]ProviderConfig `yaml:"providers" toml:"providers"`
	Matrix    MatrixConfig              `yaml:"matrix" toml:"matrix"`
	Ledger    LedgerConfig              `yaml:"ledger" toml:"ledger"`
	Metrics   MetricsConfig             `yaml:"metrics" toml:"metrics"`
	Logging   LoggingConfig             `yaml:"logging" toml:"logging"`
}

// ProviderConfig configures one agent CLI
type ProviderConfig struct {
	Path        string   `yaml:"path,omitempty" toml:"path,omitempty"`
	Models      []string `yaml:"models" toml:"models"`
	DisplayName string   `yaml:"display_name,omitempty" toml:"display_name,omitempty"`
	// Aggregate is "last" or "concat"; empty keeps the provider's default
	Aggregate string `yaml:"aggregate,omitempty" toml:"aggregate,omitempty"`
}

// MatrixConfig holds Matrix integration configuration
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
	// Username and Password are used when no access token is configured
	Username    string `yaml:"username" toml:"username"`
	Password    string `yaml:"password" toml:"password"`
	RecoveryKey string `yaml:"recovery_key" toml:"recovery_key"`

	AllowedUsers    []string `yaml:"allowed_users" toml:"allowed_users"`
	AllowedRooms    []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
	CommandPrefix   string   `yaml:"command_prefix" toml:"command_prefix"`
	TypingIndicator bool     `yaml:"typing_indicator" toml:"typing_indicator"`

	// SendRate is the sustained messages per second per room; SendBurst the bucket size
	SendRate  float64 `yaml:"send_rate" toml:"send_rate"`
	SendBurst int     `yaml:"send_burst" toml:"send_burst"`
}

// LedgerConfig holds request ledger configuration
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`

	// Retention of zero keeps entries forever
	Retention    time.Duration `yaml:"-" toml:"-"`
	RetentionRaw string        `yaml:"retention" toml:"retention"`

	PruneSchedule string `yaml:"prune_schedule" toml:"prune_schedule"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultModels lists the models offered per built-in provider. The first
// entry is each provider's default.
var DefaultModels = map[string][]string{
	"claude": {"opus", "sonnet", "haiku"},
	"codex":  {"gpt-5.3-codex"},
	"gemini": {"gemini-2.5-pro", "gemini-2.5-flash"},
}

const minMessageLimit = 64

// Default returns a configuration with every default applied.
func Default() *Config {
	providers := make(map[string]ProviderConfig, len(DefaultModels))
	for name, models := range DefaultModels {
		providers[name] = ProviderConfig{Models: append([]string(nil), models...)}
	}
	return &Config{
		DefaultProvider: "claude",
		MessageLimit:    4096,
		StopGraceRaw:    "500ms",
		TickIntervalRaw: "1s",
		Providers:       providers,
		Matrix: MatrixConfig{
			CommandPrefix:   "!",
			TypingIndicator: true,
			SendRate:        2,
			SendBurst:       5,
		},
		Ledger: LedgerConfig{
			Enabled:       true,
			PruneSchedule: "@daily",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
			Path: "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns the defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = Default()
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

// finish fills derived defaults, parses durations and validates.
func (c *Config) finish() error {
	c.applyDefaults()

	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.WorkingDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.WorkingDir = wd
		}
	}
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = filepath.Join(c.DataDir, "ledger.db")
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	// A provider section that only sets a path keeps the default model list.
	for name, models := range DefaultModels {
		pc := c.Providers[name]
		if len(pc.Models) == 0 {
			pc.Models = append([]string(nil), models...)
		}
		c.Providers[name] = pc
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// Matrix credentials are checked separately by MatrixConfig.Validate.
func (c *Config) Validate() error {
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("default_provider %q is not a configured provider", c.DefaultProvider)
	}

	for _, name := range c.ProviderNames() {
		pc := c.Providers[name]
		if _, err := provider.New(name, provider.Options{}); err != nil {
			return fmt.Errorf("providers.%s: %w", name, err)
		}
		if _, err := provider.ParseAggregation(pc.Aggregate); err != nil {
			return fmt.Errorf("providers.%s.aggregate: %w", name, err)
		}
	}

	if c.MessageLimit < minMessageLimit {
		return fmt.Errorf("message_limit must be at least %d", minMessageLimit)
	}
	if c.StopGrace <= 0 {
		return fmt.Errorf("stop_grace must be positive")
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	if c.Ledger.Enabled && c.Ledger.Retention > 0 {
		if _, err := cron.ParseStandard(c.Ledger.PruneSchedule); err != nil {
			return fmt.Errorf("ledger.prune_schedule %q: %w", c.Ledger.PruneSchedule, err)
		}
	}
	if c.Ledger.Retention < 0 {
		return fmt.Errorf("ledger.retention must not be negative")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// Validate checks the Matrix connection settings needed to run the bridge.
func (m *MatrixConfig) Validate() error {
	if m.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	u, err := url.Parse(m.Homeserver)
	if err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("matrix.homeserver must use http or https scheme")
	}
	if m.AccessToken != "" {
		if m.UserID == "" {
			return fmt.Errorf("matrix.user_id is required with matrix.access_token")
		}
		return nil
	}
	if m.Username == "" || m.Password == "" {
		return fmt.Errorf("matrix.access_token or matrix.username and matrix.password are required")
	}
	return nil
}

// ProviderNames returns the configured provider names, built-ins first.
func (c *Config) ProviderNames() []string {
	var names []string
	for _, name := range provider.Names {
		if _, ok := c.Providers[name]; ok {
			names = append(names, name)
		}
	}
	var extra []string
	for name := range c.Providers {
		if !slices.Contains(provider.Names, name) {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(names, extra...)
}

// Models returns the model list per provider.
func (c *Config) Models() map[string][]string {
	out := make(map[string][]string, len(c.Providers))
	for name, pc := range c.Providers {
		out[name] = append([]string(nil), pc.Models...)
	}
	return out
}

// ProviderOptions converts the provider sections into provider.Options,
// resolving empty paths through PATH.
func (c *Config) ProviderOptions() (map[string]provider.Options, error) {
	out := make(map[string]provider.Options, len(c.Providers))
	for name, pc := range c.Providers {
		agg, err := provider.ParseAggregation(pc.Aggregate)
		if err != nil {
			return nil, fmt.Errorf("providers.%s.aggregate: %w", name, err)
		}
		out[name] = provider.Options{
			Path:        c.ResolveProviderPath(name),
			DisplayName: pc.DisplayName,
			Aggregate:   agg,
		}
	}
	return out, nil
}

// ResolveProviderPath returns the configured binary, else the PATH lookup of
// the provider name, else the bare name.
func (c *Config) ResolveProviderPath(name string) string {
	if p := c.Providers[name].Path; p != "" {
		return p
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

// StatePath is the session state file inside the data directory.
func (c *Config) StatePath() string {
	return filepath.Join(c.DataDir, "state.json")
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.StopGraceRaw != "" {
		cfg.StopGrace, err = time.ParseDuration(cfg.StopGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing stop_grace %q: %w", cfg.StopGraceRaw, err)
		}
	}

	if cfg.TickIntervalRaw != "" {
		cfg.TickInterval, err = time.ParseDuration(cfg.TickIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing tick_interval %q: %w", cfg.TickIntervalRaw, err)
		}
	}

	if cfg.Ledger.RetentionRaw != "" {
		cfg.Ledger.Retention, err = time.ParseDuration(cfg.Ledger.RetentionRaw)
		if err != nil {
			return fmt.Errorf("parsing ledger.retention %q: %w", cfg.Ledger.RetentionRaw, err)
		}
	}

	return nil
}
