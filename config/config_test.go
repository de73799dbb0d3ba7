package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-ems/ift-dispatch/core/assignment"
	"github.com/ridgeline-ems/ift-dispatch/core/model"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  ack_topic: "unit/+/ack"
  use_tls: false
assignment:
  weights:
    distance: 0.4
    qualification: 0.3
    performance: 0.15
    fatigue: 0.15
  transport_weights:
    HEMS:
      distance: 0.6
      qualification: 0.3
      performance: 0.05
      fatigue: 0.05
  gate:
    min_total_score: 50
dispatch:
  ack_timeout_seconds: 3
metrics:
  sinks:
    - type: "nop"
logging:
  level: debug
  backend: sqlite
  path: /tmp/assign.db
http:
  token: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "cli", cfg.MQTT.ClientID)
	assert.Equal(t, "unit/+/ack", cfg.MQTT.AckTopic)
	assert.Equal(t, 0.4, cfg.Assignment.Weights.Distance)
	assert.Equal(t, 0.6, cfg.Assignment.TransportWeights[model.TransportHEMS].Distance)
	assert.Equal(t, 50.0, cfg.Assignment.Gate.MinTotalScore)
	assert.Equal(t, 3, cfg.Dispatch.AckTimeoutSeconds)
	assert.Equal(t, 3, cfg.Dispatch.MaxAttempts)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, "nop", cfg.Metrics.Sinks[0].Type)
	assert.Equal(t, "sqlite", cfg.Logging.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "secret", cfg.HTTP.Token)
}

func TestLoad_PartialAssignmentKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "config.json", `{"assignment": {"gate": {"max_distance_miles": 60}}}`)
	cfg, err := Load(path)
	require.NoError(t, err)

	def := assignment.DefaultConfig()
	assert.Equal(t, 60.0, cfg.Assignment.Gate.MaxDistanceMiles)
	assert.Equal(t, def.Gate.MinTotalScore, cfg.Assignment.Gate.MinTotalScore)
	assert.True(t, cfg.Assignment.Gate.RejectCriticalFatigue)
	assert.Equal(t, def.Weights, cfg.Assignment.Weights)
	assert.Equal(t, def.Qualification, cfg.Assignment.Qualification)
	assert.Equal(t, "jsonl", cfg.Logging.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "config.yaml", "http:\n  addr: \":9000\"\n")
	t.Setenv("K_HTTP__ADDR", ":9100")
	t.Setenv("K_ASSIGNMENT__GATE__MIN_TOTAL_SCORE", "55")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTP.Addr)
	assert.Equal(t, 55.0, cfg.Assignment.Gate.MinTotalScore)
}

func TestLoad_EnvWeightsOverriddenTogether(t *testing.T) {
	t.Setenv("K_ASSIGNMENT__DISTANCE__MAX_MILES", "80")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 80.0, cfg.Assignment.Distance.MaxMiles)

	t.Setenv("K_ASSIGNMENT__WEIGHTS__DISTANCE", "0.4")
	_, err = Load("")
	assert.ErrorContains(t, err, "sum to 1")

	t.Setenv("K_ASSIGNMENT__WEIGHTS__QUALIFICATION", "0.25")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.4, cfg.Assignment.Weights.Distance)
	assert.Equal(t, 0.25, cfg.Assignment.Weights.Qualification)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(writeConfig(t, "config.toml", ""))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "weights.yaml", "assignment:\n  weights:\n    distance: 0.9\n"))
	assert.Error(t, err, "weights must sum to one")

	_, err = Load(writeConfig(t, "backend.yaml", "logging:\n  backend: csv\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "level.yaml", "logging:\n  level: loud\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "telemetry.yaml", "telemetry:\n  enabled: true\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "sink.yaml", "metrics:\n  sinks:\n    - conf: {}\n"))
	assert.ErrorContains(t, err, "metrics: sinks[0]")

	_, err = Load(writeConfig(t, "sentry.yaml", "sentry:\n  dsn: not-a-url\n"))
	assert.ErrorContains(t, err, "sentry")
}

func TestSentryConfig(t *testing.T) {
	c := SentryConfig{DSN: "https://key@o1.ingest.sentry.io/42"}
	c.SetDefaults()
	assert.Equal(t, "production", c.Environment)
	assert.NoError(t, c.Validate())

	assert.Error(t, SentryConfig{TracesSampleRate: 1.5}.Validate())
	assert.NoError(t, SentryConfig{}.Validate(), "empty dsn disables reporting")
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, assignment.DefaultConfig().Weights, cfg.Assignment.Weights)
}
