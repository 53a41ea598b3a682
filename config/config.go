// Package config loads the host configuration from YAML. Load starts from
// Defaults so a partial file only overrides what it names; a missing file
// yields the defaults unchanged.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level host configuration.
type Config struct {
	// Agents lists remote agent base addresses. List order is registration
	// order, which also breaks candidate-selection ties.
	Agents  []string      `yaml:"agents"`
	Host    HostConfig    `yaml:"host"`
	Model   ModelConfig   `yaml:"model"`
	Memory  MemoryConfig  `yaml:"memory"`
	Logging LoggingConfig `yaml:"logging"`
}

// HostConfig holds orchestration settings.
type HostConfig struct {
	ResolveTimeout time.Duration `yaml:"resolve_timeout"` // capability card fetch bound
	InvokeTimeout  time.Duration `yaml:"invoke_timeout"`  // per-delegation bound
	RouteTimeout   time.Duration `yaml:"route_timeout"`   // reasoning call bound
	HistoryLimit   int           `yaml:"history_limit"`   // turns fed to the router
	MaxParallel    int           `yaml:"max_parallel"`    // dispatch fan-out cap
	Streaming      bool          `yaml:"streaming"`       // fold streamed frames instead of blocking send
}

// ModelConfig selects and tunes the reasoning backend.
type ModelConfig struct {
	Provider    string        `yaml:"provider"` // openai, anthropic, mock or empty for keyword-only routing
	Name        string        `yaml:"name,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"` // empty: the provider SDK falls back to its env var
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Breaker     BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker protecting the reasoning backend.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"` // consecutive failures before opening
	Interval    time.Duration `yaml:"interval"`     // closed-state counter reset window
	Timeout     time.Duration `yaml:"timeout"`      // open to half-open delay
}

// MemoryConfig holds conversation memory settings.
type MemoryConfig struct {
	// Dir enables file-backed session snapshots when non-empty. Empty keeps
	// conversations in memory only.
	Dir string `yaml:"dir,omitempty"`
}

// LoggingConfig holds logger construction settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // json or text
	AddSource bool   `yaml:"add_source"`
}

// Defaults returns the baseline configuration.
func Defaults() *Config {
	return &Config{
		Host: HostConfig{
			ResolveTimeout: 10 * time.Second,
			InvokeTimeout:  30 * time.Second,
			RouteTimeout:   20 * time.Second,
			HistoryLimit:   25,
			MaxParallel:    8,
		},
		Model: ModelConfig{
			Provider:    "",
			Temperature: 0.2,
			MaxTokens:   1024,
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path on top of Defaults. A missing file is not
// an error and yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the host cannot run with.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case "", "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("invalid config: unknown model provider %q", c.Model.Provider)
	}
	if c.Host.ResolveTimeout < 0 || c.Host.InvokeTimeout < 0 || c.Host.RouteTimeout < 0 {
		return fmt.Errorf("invalid config: timeouts must not be negative")
	}
	if c.Host.HistoryLimit < 0 {
		return fmt.Errorf("invalid config: history_limit must not be negative")
	}
	return nil
}
