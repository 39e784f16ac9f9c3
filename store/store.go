package store

import (
	"context"

	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/maintenance"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/queue"
)

// Store is the aggregate persistence interface.
type Store interface {
	job.Store
	queue.Store
	kv.Store
	cluster.Store
	lock.Store
	monitor.Store
	maintenance.Store

	// Migrate creates every collection and index.
	Migrate(ctx context.Context) error

	// Ping checks that the database is open and migrated.
	Ping(ctx context.Context) error

	// Close releases the store's hold on the database.
	Close() error
}
