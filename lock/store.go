package lock

import (
	"context"
	"time"
)

// Store defines the persistence contract for distributed locks. One row per
// resource; the row names its owner and when it expires.
type Store interface {
	// TryAcquireLock takes resource for owner until now+ttl. It succeeds when
	// the resource is free, when the existing row expired, or when owner
	// already holds it (the expiry is then extended).
	TryAcquireLock(ctx context.Context, resource, owner string, now time.Time, ttl time.Duration) (bool, error)

	// ReleaseLock deletes the row if owner still holds it and reports
	// whether it did.
	ReleaseLock(ctx context.Context, resource, owner string) (bool, error)
}
