package jobstore

import "time"

// Option adjusts a Config.
type Option func(*Config) error

// NewConfig returns DefaultConfig with opts applied and validated.
func NewConfig(opts ...Option) (Config, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithPrefix sets the collection name prefix.
func WithPrefix(prefix string) Option {
	return func(c *Config) error {
		c.Prefix = prefix
		return nil
	}
}

// WithQueuePollInterval sets the wait between empty claim rounds.
func WithQueuePollInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.QueuePollInterval = d
		return nil
	}
}

// WithInvisibilityTimeout sets how long a claimed entry stays hidden.
func WithInvisibilityTimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.InvisibilityTimeout = d
		return nil
	}
}

// WithJobExpirationCheckInterval sets the pause between expiration sweeps.
func WithJobExpirationCheckInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.JobExpirationCheckInterval = d
		return nil
	}
}

// WithCountersAggregateInterval sets the pause between aggregation runs.
func WithCountersAggregateInterval(d time.Duration) Option {
	return func(c *Config) error {
		c.CountersAggregateInterval = d
		return nil
	}
}

// WithDistributedLockLifetime sets the expiry of an unreleased lock.
func WithDistributedLockLifetime(d time.Duration) Option {
	return func(c *Config) error {
		c.DistributedLockLifetime = d
		return nil
	}
}
