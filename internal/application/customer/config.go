package customer

import "time"

// Default store call budgets
const (
	DefaultShortTimeout  = 500 * time.Millisecond
	DefaultLongTimeout   = 2000 * time.Millisecond
	DefaultNotifyTimeout = 5 * time.Second
)

// Config bounds the time spent in collaborator calls.
// ShortTimeout applies to single-record reads and writes, LongTimeout to
// criteria queries.
type Config struct {
	ShortTimeout  time.Duration
	LongTimeout   time.Duration
	NotifyTimeout time.Duration
}

// DefaultConfig returns the standard timeouts
func DefaultConfig() Config {
	return Config{
		ShortTimeout:  DefaultShortTimeout,
		LongTimeout:   DefaultLongTimeout,
		NotifyTimeout: DefaultNotifyTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ShortTimeout <= 0 {
		c.ShortTimeout = DefaultShortTimeout
	}
	if c.LongTimeout <= 0 {
		c.LongTimeout = DefaultLongTimeout
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	return c
}
