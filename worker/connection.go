package worker

import (
	"context"
	"time"

	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/queue"
	"github.com/xraph/jobstore/txn"
)

// Connection is the part of the storage connection used by the worker
// host. *storage.Connection satisfies it.
type Connection interface {
	FetchNextJob(ctx context.Context, queues []string) (*queue.Claim, error)
	GetJobData(ctx context.Context, jobID string) (*job.Data, error)
	GetStateData(ctx context.Context, jobID string) (*job.State, error)
	GetJobParameter(ctx context.Context, jobID, name string) (string, bool, error)
	SetJobParameter(ctx context.Context, jobID, name, value string) error
	CreateWriteTransaction() *txn.Transaction

	AcquireDistributedLock(ctx context.Context, resource string, timeout time.Duration) (*lock.Lock, error)
	GetFirstByLowestScoreFromSet(ctx context.Context, key string, from, to float64) (string, bool, error)

	AnnounceServer(ctx context.Context, serverID string, workerCount int, queues []string) error
	Heartbeat(ctx context.Context, serverID string) error
	RemoveServer(ctx context.Context, serverID string) error
	RemoveTimedOutServers(ctx context.Context, timeout time.Duration) (int, error)
}
