// Package config provides file-based configuration for the context engine.
// Settings are loaded from a YAML file and validated against sensible
// defaults; every section maps onto the options of one engine component.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/handoff"
)

// Duration wraps time.Duration so YAML values can be written as "5s", "2h"
// or plain nanosecond integers.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ns int64
	if err := value.Decode(&ns); err == nil {
		*d = Duration(ns)
		return nil
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config holds all tunable settings.
type Config struct {
	Tracker    TrackerConfig    `yaml:"tracker"`
	Intent     IntentConfig     `yaml:"intent"`
	Handoff    HandoffConfig    `yaml:"handoff"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Storage    StorageConfig    `yaml:"storage"`
	LogLevel   string           `yaml:"log_level"`
}

// TrackerConfig tunes entity tracking and reference resolution.
type TrackerConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ConfidenceFloor     float64 `yaml:"confidence_floor"`
	RecencyDecay        float64 `yaml:"recency_decay"`
	ProximityBonus      float64 `yaml:"proximity_bonus"`
}

// IntentConfig tunes intent trend tracking and urgency detection.
type IntentConfig struct {
	WindowSize        int      `yaml:"window_size"`
	MinConfidence     float64  `yaml:"min_confidence"`
	UrgencyMarkers    []string `yaml:"urgency_markers"`
	NearTermThreshold Duration `yaml:"near_term_threshold"`
}

// HandoffConfig tunes the handoff decision engine, including the affinity
// table routing entity types and intents to handler ids.
type HandoffConfig struct {
	ComplexityCeiling float64           `yaml:"complexity_ceiling"`
	EntityTypeWeight  float64           `yaml:"entity_type_weight"`
	UnresolvedWeight  float64           `yaml:"unresolved_weight"`
	MultiOpWeight     float64           `yaml:"multi_op_weight"`
	EntityAffinity    map[string]string `yaml:"entity_affinity"`
	IntentAffinity    map[string]string `yaml:"intent_affinity"`
	DefaultHandler    string            `yaml:"default_handler"`
}

// DispatcherConfig tunes handler dispatch.
type DispatcherConfig struct {
	Timeout            Duration `yaml:"timeout"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryBackoff       Duration `yaml:"retry_backoff"`
	RatePerSecond      float64  `yaml:"rate_per_second"`
	Burst              int      `yaml:"burst"`
	BreakerMaxFailures uint32   `yaml:"breaker_max_failures"`
	BreakerCooldown    Duration `yaml:"breaker_cooldown"`
}

// StorageConfig selects the snapshot store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// Default returns the configuration used when no file is provided.
func Default() Config {
	return Config{
		Tracker: TrackerConfig{
			SimilarityThreshold: 0.8,
			ConfidenceFloor:     0.35,
			RecencyDecay:        0.5,
			ProximityBonus:      0.15,
		},
		Intent: IntentConfig{
			WindowSize:        5,
			MinConfidence:     0.3,
			UrgencyMarkers:    []string{"urgent", "asap", "immediately", "right away", "emergency", "critical"},
			NearTermThreshold: Duration(2 * time.Hour),
		},
		Handoff: HandoffConfig{
			ComplexityCeiling: 2.5,
			EntityTypeWeight:  1.0,
			UnresolvedWeight:  0.5,
			MultiOpWeight:     1.0,
		},
		Dispatcher: DispatcherConfig{
			Timeout:            Duration(5 * time.Second),
			MaxRetries:         1,
			RetryBackoff:       Duration(100 * time.Millisecond),
			BreakerMaxFailures: 3,
			BreakerCooldown:    Duration(30 * time.Second),
		},
		Storage:  StorageConfig{Driver: "memory"},
		LogLevel: "info",
	}
}

// Load reads a YAML file and overlays it onto the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that would break component invariants.
func (c Config) Validate() error {
	if c.Tracker.SimilarityThreshold <= 0 || c.Tracker.SimilarityThreshold > 1 {
		return fmt.Errorf("tracker.similarity_threshold must be in (0, 1], got %v", c.Tracker.SimilarityThreshold)
	}
	if c.Tracker.ConfidenceFloor < 0 || c.Tracker.ConfidenceFloor > 1 {
		return fmt.Errorf("tracker.confidence_floor must be in [0, 1], got %v", c.Tracker.ConfidenceFloor)
	}
	if c.Intent.WindowSize < 1 {
		return fmt.Errorf("intent.window_size must be >= 1, got %d", c.Intent.WindowSize)
	}
	if c.Handoff.ComplexityCeiling <= 0 {
		return fmt.Errorf("handoff.complexity_ceiling must be > 0, got %v", c.Handoff.ComplexityCeiling)
	}
	if c.Dispatcher.Timeout <= 0 {
		return fmt.Errorf("dispatcher.timeout must be > 0, got %v", c.Dispatcher.Timeout)
	}
	if c.Dispatcher.MaxRetries < 0 {
		return fmt.Errorf("dispatcher.max_retries must be >= 0, got %d", c.Dispatcher.MaxRetries)
	}
	switch c.Storage.Driver {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("storage.driver must be memory or sqlite, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the sqlite driver")
	}
	return nil
}

// AffinityTable converts the configured routing maps into the handoff
// engine's table.
func (c HandoffConfig) AffinityTable() handoff.AffinityTable {
	table := handoff.AffinityTable{
		EntityTypes: make(map[core.EntityType]string, len(c.EntityAffinity)),
		Intents:     make(map[string]string, len(c.IntentAffinity)),
		Default:     c.DefaultHandler,
	}
	for typ, id := range c.EntityAffinity {
		table.EntityTypes[core.EntityType(typ)] = id
	}
	for label, id := range c.IntentAffinity {
		table.Intents[label] = id
	}
	return table
}
