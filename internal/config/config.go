// Package config handles YAML configuration parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"pkg.jsn.cam/synthgen/pkg/synthgen/worker"
)

// Config is a parsed configuration file. Document is the whole file as decoded
// YAML and is what the template receives; Generation holds the run settings read
// from its optional generation section.
type Config struct {
	Generation GenerationConfig `yaml:"generation"`
	Document   map[string]any   `yaml:"-"`
}

// GenerationConfig carries run settings. Nil pointers mean "not set".
type GenerationConfig struct {
	Count    *int        `yaml:"count"` // -1 is unbounded
	Workers  *int        `yaml:"workers"`
	Seed     *uint64     `yaml:"seed"`
	Rate     float64     `yaml:"rate"`
	Progress *bool       `yaml:"progress"`
	Verbose  bool        `yaml:"verbose"`
	Retry    RetryConfig `yaml:"retry"`
}

// RetryConfig mirrors worker.Policy.
type RetryConfig struct {
	Enabled     *bool         `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// Policy converts the retry section to a worker.Policy. Retry stays enabled unless
// the file turns it off.
func (r RetryConfig) Policy() worker.Policy {
	p := worker.DefaultPolicy()
	if r.Enabled != nil {
		p.Retry = *r.Enabled
	}
	p.MaxAttempts = r.MaxAttempts
	p.Backoff = r.Backoff
	p.MaxBackoff = r.MaxBackoff
	return p
}

// Validate checks the generation section for out-of-range values.
func (g GenerationConfig) Validate() error {
	switch {
	case g.Count != nil && *g.Count < -1:
		return fmt.Errorf("generation.count must be >= 0 or -1 for unbounded, got %d", *g.Count)
	case g.Workers != nil && *g.Workers < 0:
		return fmt.Errorf("generation.workers must be >= 0, got %d", *g.Workers)
	case g.Rate < 0:
		return fmt.Errorf("generation.rate must be >= 0, got %v", g.Rate)
	case g.Retry.MaxAttempts < 0:
		return fmt.Errorf("generation.retry.max_attempts must be >= 0, got %d", g.Retry.MaxAttempts)
	case g.Retry.Backoff < 0 || g.Retry.MaxBackoff < 0:
		return fmt.Errorf("generation.retry backoff must be >= 0")
	}
	return nil
}

// LoadConfig reads and parses a YAML configuration file. An empty path yields an
// empty configuration.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return &Config{Document: map[string]any{}}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg.Document); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if cfg.Document == nil {
		cfg.Document = map[string]any{}
	}
	if err := cfg.Generation.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
