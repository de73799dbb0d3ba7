package config

// HTTPConfig configures the HTTP API.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication on every API route when set.
	Token string `json:"token"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
