package router

import "time"

// DefaultRingTimeout is how long a session may stay in Ringing before the
// relay ends it and notifies both parties.
const DefaultRingTimeout = 30 * time.Second

// Config is the configuration for creating a Router instance.
type Config struct {
	RingTimeout time.Duration
}

// withDefaults fills unset fields with default values.
func (c Config) withDefaults() Config {
	if c.RingTimeout <= 0 {
		c.RingTimeout = DefaultRingTimeout
	}
	return c
}
