package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/entitystore/internal/core/observability/log"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds engine configuration
type Config struct {
	// Scheduling
	TargetTick time.Duration `yaml:"target_tick"`
	FixedStep  bool          `yaml:"fixed_step"`

	// Store
	InitialCapacity int `yaml:"initial_capacity"`

	// Logging
	LogLevel log.Level `yaml:"log_level"`

	Inspector InspectorConfig `yaml:"inspector"`
}

// InspectorConfig controls the live snapshot feed
type InspectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	// Every is the number of ticks between snapshots.
	Every int `yaml:"every"`
}

// Default returns default engine configuration
func Default() Config {
	return Config{
		TargetTick:      time.Second / 60,
		FixedStep:       false,
		InitialCapacity: 1024,
		LogLevel:        log.LevelInfo,
		Inspector: InspectorConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8090",
			Every:   30,
		},
	}
}

func (c Config) Validate() error {
	if c.TargetTick <= 0 {
		return fmt.Errorf("target_tick must be positive, got %s: %w", c.TargetTick, ErrInvalidConfig)
	}
	if c.InitialCapacity < 0 {
		return fmt.Errorf("initial_capacity must not be negative: %w", ErrInvalidConfig)
	}
	if c.LogLevel > log.LevelFatal {
		return fmt.Errorf("unknown log_level %d: %w", c.LogLevel, ErrInvalidConfig)
	}
	if c.Inspector.Enabled {
		if c.Inspector.Addr == "" {
			return fmt.Errorf("inspector.addr is required when the inspector is enabled: %w", ErrInvalidConfig)
		}
		if c.Inspector.Every <= 0 {
			return fmt.Errorf("inspector.every must be positive: %w", ErrInvalidConfig)
		}
	}
	return nil
}

// LoadYAML reads a config from r on top of Default and validates it.
func LoadYAML(r io.Reader) (Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadFile is LoadYAML over the file at path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadYAML(f)
}
