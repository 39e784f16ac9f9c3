package queue

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/jobstore/observability"
)

type claimState int

const (
	claimHeld claimState = iota
	claimAcknowledged
	claimReleased
)

// Claim is exclusive, time-bounded ownership of one queue entry. Exactly
// one of Acknowledge or Release should end it; Close releases a claim that
// was neither acknowledged nor released, so callers can defer it.
type Claim struct {
	entry   Entry
	store   Store
	limits  *Manager
	metrics *observability.Metrics

	mu    sync.Mutex
	state claimState
}

// JobID returns the claimed job's identifier.
func (c *Claim) JobID() string { return c.entry.JobID }

// Queue returns the queue the entry was claimed from.
func (c *Claim) Queue() string { return c.entry.Queue }

// EntryID returns the queue entry identifier.
func (c *Claim) EntryID() string { return c.entry.ID }

// Reclaimed reports whether the entry was taken over from a stale claim.
func (c *Claim) Reclaimed() bool { return c.entry.Reclaimed }

// FetchedAt returns the claim timestamp.
func (c *Claim) FetchedAt() time.Time {
	if c.entry.FetchedAt == nil {
		return time.Time{}
	}
	return *c.entry.FetchedAt
}

// Acknowledge removes the entry from its queue. Calling it after the claim
// already ended is a no-op.
func (c *Claim) Acknowledge(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != claimHeld {
		return nil
	}
	if err := c.store.AcknowledgeEntry(ctx, c.entry.ID); err != nil {
		return err
	}
	c.state = claimAcknowledged
	c.limits.Release(c.entry.Queue)
	c.metrics.Acknowledged(ctx, c.entry.Queue)
	return nil
}

// Release makes the entry available again. Calling it after the claim
// already ended is a no-op.
func (c *Claim) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != claimHeld {
		return nil
	}
	if err := c.store.ReleaseEntry(ctx, c.entry.ID); err != nil {
		return err
	}
	c.state = claimReleased
	c.limits.Release(c.entry.Queue)
	c.metrics.Released(ctx, c.entry.Queue)
	return nil
}

// Close releases the entry unless it was already acknowledged or released.
func (c *Claim) Close() error {
	return c.Release(context.Background())
}
