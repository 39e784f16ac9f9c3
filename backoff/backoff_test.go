package backoff_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/jobstore/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 10; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", attempt, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachAttempt(t *testing.T) {
	e := backoff.NewExponential(time.Second, time.Hour)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)
	if got := e.Delay(20); got != 10*time.Second {
		t.Errorf("Delay(20) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestEqualJitter_WithinBounds(t *testing.T) {
	e := backoff.NewEqualJitter(time.Second, 10*time.Second)

	for attempt := 1; attempt <= 6; attempt++ {
		base := backoff.NewExponential(time.Second, 10*time.Second).Delay(attempt)
		for range 100 {
			got := e.Delay(attempt)
			if got < base/2 || got > base {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", attempt, got, base/2, base)
			}
		}
	}
}

func TestEqualJitter_ProducesVariance(t *testing.T) {
	e := backoff.NewEqualJitter(time.Second, time.Minute)
	seen := make(map[time.Duration]bool)
	for range 100 {
		seen[e.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Errorf("expected variance in jitter, got only %d distinct values", len(seen))
	}
}

func TestDefaults(t *testing.T) {
	if d := backoff.LockStrategy().Delay(1); d <= 0 || d > 25*time.Millisecond {
		t.Errorf("LockStrategy().Delay(1) = %v", d)
	}
	if d := backoff.RetryStrategy().Delay(100); d > time.Minute {
		t.Errorf("RetryStrategy().Delay(100) = %v, should be capped at 1m", d)
	}
}

func TestSleep(t *testing.T) {
	if err := backoff.Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := backoff.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
