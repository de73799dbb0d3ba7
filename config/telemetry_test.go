package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTelemetryConfigDefaults(t *testing.T) {
	cfg := TelemetryConfig{}
	assert.Equal(t, 10, cfg.Interval())
	assert.Equal(t, 3, cfg.Timeout())
	assert.Equal(t, "unit/state", cfg.StateTopicPrefix())
}

func TestTelemetryConfigValues(t *testing.T) {
	cfg := TelemetryConfig{IntervalSeconds: 5, TimeoutSeconds: 2, StatePrefix: "ems/state"}
	assert.Equal(t, 5, cfg.Interval())
	assert.Equal(t, 2, cfg.Timeout())
	assert.Equal(t, "ems/state", cfg.StateTopicPrefix())
}
