package cli

import (
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/jobstore"
)

// Config holds typed configuration for every command.
type Config struct {
	DBPath   string
	Prefix   string
	LogLevel string

	PollInterval        time.Duration
	InvisibilityTimeout time.Duration
	ExpirationInterval  time.Duration
	AggregateInterval   time.Duration
	LockLifetime        time.Duration

	Queues     []string
	Workers    int
	MaxRetries int
	JobTimeout time.Duration
	HTTPAddr   string
}

// Load reads all values from v. Unset durations fall back to the storage
// defaults.
func Load(v *viper.Viper) Config {
	def := jobstore.DefaultConfig()
	return Config{
		DBPath:              v.GetString("db_path"),
		Prefix:              v.GetString("prefix"),
		LogLevel:            v.GetString("log_level"),
		PollInterval:        durationOr(v, "poll_interval", def.QueuePollInterval),
		InvisibilityTimeout: durationOr(v, "invisibility_timeout", def.InvisibilityTimeout),
		ExpirationInterval:  durationOr(v, "expiration_interval", def.JobExpirationCheckInterval),
		AggregateInterval:   durationOr(v, "aggregate_interval", def.CountersAggregateInterval),
		LockLifetime:        durationOr(v, "lock_lifetime", def.DistributedLockLifetime),
		Queues:              v.GetStringSlice("queues"),
		Workers:             v.GetInt("workers"),
		MaxRetries:          v.GetInt("max_retries"),
		JobTimeout:          v.GetDuration("job_timeout"),
		HTTPAddr:            v.GetString("http_addr"),
	}
}

// Storage returns the storage configuration.
func (c Config) Storage() jobstore.Config {
	prefix := c.Prefix
	if prefix == "" {
		prefix = jobstore.DefaultPrefix
	}
	return jobstore.Config{
		Prefix:                     prefix,
		QueuePollInterval:          c.PollInterval,
		InvisibilityTimeout:        c.InvisibilityTimeout,
		JobExpirationCheckInterval: c.ExpirationInterval,
		CountersAggregateInterval:  c.AggregateInterval,
		DistributedLockLifetime:    c.LockLifetime,
	}
}

func durationOr(v *viper.Viper, key string, def time.Duration) time.Duration {
	if d := v.GetDuration(key); d > 0 {
		return d
	}
	return def
}
