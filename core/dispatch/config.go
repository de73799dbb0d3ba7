package dispatch

import "time"

// Config defines assignment manager settings.
type Config struct {
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
	// MaxAttempts bounds how many acceptable units are notified per incident.
	MaxAttempts int `json:"max_attempts"`
	// MaxRecommendations is the number of ranked units considered per
	// incident. Zero uses the engine default.
	MaxRecommendations int `json:"max_recommendations"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
}

// AckTimeout returns the acknowledgment timeout as a duration.
func (c Config) AckTimeout() time.Duration {
	return time.Duration(c.AckTimeoutSeconds) * time.Second
}
