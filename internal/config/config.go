// Package config loads and validates the application configuration from
// file, environment, and defaults via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/mimic/internal/session"
)

// Config is the root configuration tree. Fields are exported for unmarshal;
// treat the struct as read-only after Load.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Simulate SimulateConfig `mapstructure:"simulate" yaml:"simulate"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// SessionConfig tunes the behavioral state machine.
type SessionConfig struct {
	// Persona selects a named preset; Profile overrides individual dials on
	// top of it. An empty persona means the default profile.
	Persona string           `mapstructure:"persona" yaml:"persona"`
	Profile *session.Profile `mapstructure:"profile" yaml:"profile"`
	// Durations overrides per-state dwell ranges, keyed by lowercase state
	// name (idle, active, reading, thinking, away, scrolling).
	Durations map[string]session.DurationRange `mapstructure:"durations" yaml:"durations"`
	Seed      int64                            `mapstructure:"seed" yaml:"seed"`
}

// InputConfig tunes the low-level input synthesis.
type InputConfig struct {
	// DispatchRate caps executor calls per second; zero disables the cap.
	DispatchRate float64 `mapstructure:"dispatch_rate" yaml:"dispatch_rate"`
}

// BrowserConfig holds settings for the headless browser the executor drives.
type BrowserConfig struct {
	Headless       bool           `mapstructure:"headless" yaml:"headless"`
	ExecPath       string         `mapstructure:"exec_path" yaml:"exec_path"`
	Args           []string       `mapstructure:"args" yaml:"args"`
	Viewport       map[string]int `mapstructure:"viewport" yaml:"viewport"`
	StartupTimeout time.Duration  `mapstructure:"startup_timeout" yaml:"startup_timeout"`
}

// SimulateConfig holds settings for the simulate command, populated from
// CLI flags rather than the config file.
type SimulateConfig struct {
	Duration  time.Duration
	DryRun    bool
	TracePath string
	URL       string
}

// SetDefaults initializes default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "mimic")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	v.SetDefault("session.persona", "")
	v.SetDefault("session.seed", 0)

	v.SetDefault("input.dispatch_rate", 240.0)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.startup_timeout", "30s")
}

// NewDefaultConfig returns a Config populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return cfg
}

// NewConfigFromViper unmarshals and validates a viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Input.DispatchRate < 0 {
		return fmt.Errorf("input.dispatch_rate must not be negative")
	}
	if _, err := session.PresetProfile(c.Session.Persona); err != nil {
		return err
	}
	if c.Session.Profile != nil {
		if err := c.Session.Profile.Validate(); err != nil {
			return err
		}
	}
	if _, err := c.Session.DurationOverrides(); err != nil {
		return err
	}
	return nil
}

// ResolveProfile finalizes the persona for one session: the named preset,
// overridden wholesale by an explicit profile block if present.
func (s SessionConfig) ResolveProfile() (session.Profile, error) {
	if s.Profile != nil {
		if err := s.Profile.Validate(); err != nil {
			return session.Profile{}, err
		}
		return *s.Profile, nil
	}
	return session.PresetProfile(s.Persona)
}

// DurationOverrides translates the name-keyed config map into state-keyed
// overrides for the machine.
func (s SessionConfig) DurationOverrides() (map[session.State]session.DurationRange, error) {
	if len(s.Durations) == 0 {
		return nil, nil
	}
	out := make(map[session.State]session.DurationRange, len(s.Durations))
	for name, r := range s.Durations {
		st, err := stateByName(name)
		if err != nil {
			return nil, err
		}
		out[st] = r
	}
	return out, nil
}

func stateByName(name string) (session.State, error) {
	for _, s := range session.StateOrder {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("config: unknown session state %q", name)
}
