package jobstore

import (
	"fmt"
	"time"
)

// DefaultPrefix is the collection name prefix used when none is configured.
const DefaultPrefix = "hangfire"

// Config holds configuration for a storage instance.
type Config struct {
	// Prefix is prepended to every collection name ("<prefix>_job", ...).
	Prefix string

	// QueuePollInterval is how long a fetcher waits between claim rounds
	// that found nothing.
	QueuePollInterval time.Duration

	// InvisibilityTimeout is how long a claimed queue entry stays hidden
	// before another fetcher may reclaim it.
	InvisibilityTimeout time.Duration

	// JobExpirationCheckInterval is the pause between expiration sweeps.
	JobExpirationCheckInterval time.Duration

	// CountersAggregateInterval is the pause between counter aggregation runs.
	CountersAggregateInterval time.Duration

	// DistributedLockLifetime bounds how long an abandoned lock blocks other
	// owners.
	DistributedLockLifetime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:                     DefaultPrefix,
		QueuePollInterval:          15 * time.Second,
		InvisibilityTimeout:        30 * time.Minute,
		JobExpirationCheckInterval: 1 * time.Hour,
		CountersAggregateInterval:  5 * time.Minute,
		DistributedLockLifetime:    30 * time.Second,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Prefix == "":
		return fmt.Errorf("%w: prefix is empty", ErrInvalidConfig)
	case c.QueuePollInterval <= 0:
		return fmt.Errorf("%w: queue poll interval must be positive", ErrInvalidConfig)
	case c.InvisibilityTimeout <= 0:
		return fmt.Errorf("%w: invisibility timeout must be positive", ErrInvalidConfig)
	case c.JobExpirationCheckInterval <= 0:
		return fmt.Errorf("%w: job expiration check interval must be positive", ErrInvalidConfig)
	case c.CountersAggregateInterval <= 0:
		return fmt.Errorf("%w: counters aggregate interval must be positive", ErrInvalidConfig)
	case c.DistributedLockLifetime <= 0:
		return fmt.Errorf("%w: distributed lock lifetime must be positive", ErrInvalidConfig)
	}
	return nil
}
