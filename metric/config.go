package metric

import "fmt"

// Config defines the configuration for the metrics server.
type Config struct {
	Port int    // Port for metrics server
	Path string // Path for metrics endpoint
}

// Default values for metrics configuration.
const (
	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"
)

// Validate validates the metrics server configuration.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, given %d", c.Port)
	}
	if c.Path == "" {
		return fmt.Errorf("metrics path must not be empty")
	}
	return nil
}
