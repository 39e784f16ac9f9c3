package maintenance

import (
	"context"
	"time"
)

// Collection names a collection swept by the expiration manager.
type Collection string

// Collections with expiring rows.
const (
	CollectionJobs               Collection = "job"
	CollectionAggregatedCounters Collection = "aggregatedcounter"
	CollectionCounters           Collection = "counter"
	CollectionHashes             Collection = "hash"
	CollectionSets               Collection = "set"
	CollectionLists              Collection = "list"
)

// SweepOrder is the order in which collections are swept.
var SweepOrder = []Collection{
	CollectionJobs,
	CollectionAggregatedCounters,
	CollectionCounters,
	CollectionHashes,
	CollectionSets,
	CollectionLists,
}

// Store defines the persistence contract for background maintenance.
type Store interface {
	// DeleteExpired removes rows of collection whose expiry is before now
	// and returns how many were removed. Rows without expiry are kept.
	DeleteExpired(ctx context.Context, collection Collection, now time.Time) (int, error)

	// AggregateCounters folds up to limit fine-grained counter rows into
	// the aggregated counters in one atomic step and returns how many fine
	// rows were consumed.
	AggregateCounters(ctx context.Context, limit int) (int, error)
}
