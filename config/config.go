package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch"
	"github.com/ridgeline-ems/ift-dispatch/core/metrics"
	"github.com/ridgeline-ems/ift-dispatch/infra/mqtt"
)

type Config struct {
	MQTT       mqtt.Config       `json:"mqtt"`
	Assignment assignment.Config `json:"assignment"`
	Dispatch   dispatch.Config   `json:"dispatch"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    LoggingConfig     `json:"logging"`
	Telemetry  TelemetryConfig   `json:"telemetry"`
	HTTP       HTTPConfig        `json:"http"`
	Sentry     SentryConfig      `json:"sentry"`
}

// Load reads the configuration file at path and applies K_ prefixed
// environment overrides (K_ASSIGNMENT__DISTANCE__MAX_MILES=80). The four
// assignment weights must sum to 1, so they are overridden together. An
// empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	// Scoring defaults are filled before decoding so that a partial
	// assignment section only overrides the keys it names.
	cfg := Config{Assignment: assignment.DefaultConfig()}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's defaults.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Logging.SetDefaults()
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Assignment.Validate(); err != nil {
		return fmt.Errorf("assignment: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.Sentry.Validate(); err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	if c.MQTT.Broker != "" {
		if err := c.MQTT.Validate(); err != nil {
			return err
		}
	}
	if c.Telemetry.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("telemetry: requires mqtt.broker")
	}
	switch strings.ToLower(c.Telemetry.Mode) {
	case "", "push", "pull", "hybrid":
	default:
		return fmt.Errorf("telemetry: unknown mode %q", c.Telemetry.Mode)
	}
	return nil
}
