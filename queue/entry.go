package queue

import (
	"context"
	"time"
)

// Entry is one job waiting in (or claimed from) a named queue.
type Entry struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`
	Queue string `json:"queue"`

	// FetchedAt is nil while the entry is available. Once set, the entry is
	// invisible to other fetchers until it is older than the invisibility
	// timeout.
	FetchedAt *time.Time `json:"fetched_at,omitempty"`

	// Reclaimed is set by ClaimNext when the entry was taken over from a
	// claimant whose invisibility window lapsed.
	Reclaimed bool `json:"-"`
}

// Store defines the persistence contract for queue entries.
type Store interface {
	// Enqueue appends an available entry for jobID to queue.
	Enqueue(ctx context.Context, queue, jobID string) error

	// ClaimNext atomically claims one entry. Queues are scanned in the
	// given order, first for available entries, then for entries claimed
	// before now minus invisibility. The claimed entry is stamped with now.
	// Returns nil, nil when nothing is claimable.
	ClaimNext(ctx context.Context, queues []string, now time.Time, invisibility time.Duration) (*Entry, error)

	// AcknowledgeEntry deletes a claimed entry.
	AcknowledgeEntry(ctx context.Context, entryID string) error

	// ReleaseEntry clears FetchedAt so the entry is available again.
	ReleaseEntry(ctx context.Context, entryID string) error
}
