package jobstore_test

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobstore"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := jobstore.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Prefix != "hangfire" {
		t.Errorf("expected prefix hangfire, got %q", cfg.Prefix)
	}
	if cfg.InvisibilityTimeout != 30*time.Minute {
		t.Errorf("unexpected invisibility timeout %v", cfg.InvisibilityTimeout)
	}
}

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name    string
		opts    []jobstore.Option
		wantErr bool
	}{
		{"defaults", nil, false},
		{"custom prefix", []jobstore.Option{jobstore.WithPrefix("app")}, false},
		{"empty prefix", []jobstore.Option{jobstore.WithPrefix("")}, true},
		{"zero poll", []jobstore.Option{jobstore.WithQueuePollInterval(0)}, true},
		{"negative invisibility", []jobstore.Option{jobstore.WithInvisibilityTimeout(-time.Second)}, true},
		{"zero sweep", []jobstore.Option{jobstore.WithJobExpirationCheckInterval(0)}, true},
		{"zero aggregate", []jobstore.Option{jobstore.WithCountersAggregateInterval(0)}, true},
		{"zero lock lifetime", []jobstore.Option{jobstore.WithDistributedLockLifetime(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := jobstore.NewConfig(tt.opts...)
			if tt.wantErr {
				if !errors.Is(err, jobstore.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
