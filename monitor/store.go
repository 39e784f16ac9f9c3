package monitor

import (
	"context"

	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/queue"
)

// Store defines the read-only queries behind the monitoring projections.
type Store interface {
	// QueueNames returns the distinct names of queues holding entries,
	// sorted.
	QueueNames(ctx context.Context) ([]string, error)

	// QueueEntries pages through the entries of a queue in insertion
	// order, selecting claimed entries when fetched is true and available
	// ones otherwise.
	QueueEntries(ctx context.Context, queueName string, fetched bool, from, count int) ([]*queue.Entry, error)

	// QueueCounts returns the number of available and claimed entries.
	QueueCounts(ctx context.Context, queueName string) (enqueued, fetched int64, err error)

	// JobsByState pages through jobs currently in state, newest first.
	JobsByState(ctx context.Context, state string, from, count int) ([]*job.Job, error)

	// CountJobsByState returns the number of jobs currently in state.
	CountJobsByState(ctx context.Context, state string) (int64, error)
}

// Source is everything the monitoring API reads from.
type Source interface {
	Store
	job.Store
	kv.Reader
	ListServers(ctx context.Context) ([]*cluster.Server, error)
}
