package worker_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/storage"
	"github.com/xraph/jobstore/worker"
)

const mailJob = "mail.send"

func openStorage(t *testing.T) *storage.Storage {
	t.Helper()
	cfg := jobstore.DefaultConfig()
	cfg.QueuePollInterval = 10 * time.Millisecond
	st, err := storage.Open(filepath.Join(t.TempDir(), "jobs.db"), storage.WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// enqueue creates a mail job and puts it on the default queue.
func enqueue(t *testing.T, conn *storage.Connection) string {
	t.Helper()
	ctx := context.Background()
	inv := &job.Invocation{Type: "mail", Method: "send", Args: []string{`"bob@example.com"`}}
	jobID, err := conn.CreateExpiredJob(ctx, inv, nil, time.Now(), time.Hour)
	require.NoError(t, err)

	tx := conn.CreateWriteTransaction()
	require.NoError(t, tx.SetJobState(jobID, job.State{Name: job.StateEnqueued}))
	require.NoError(t, tx.AddToQueue(worker.DefaultQueue, jobID))
	require.NoError(t, tx.Commit(ctx))
	return jobID
}

// startPool runs a single-worker pool until the test ends.
func startPool(t *testing.T, conn *storage.Connection, exec *worker.Executor, opts ...worker.PoolOption) *worker.Pool {
	t.Helper()
	opts = append([]worker.PoolOption{
		worker.WithPoolConcurrency(1),
		worker.WithScheduleInterval(10 * time.Millisecond),
	}, opts...)
	pool := worker.NewPool(conn, exec, slog.Default(), opts...)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return pool
}

// waitForState blocks until the job reaches state.
func waitForState(t *testing.T, conn *storage.Connection, jobID, state string) *job.State {
	t.Helper()
	var last *job.State
	require.Eventually(t, func() bool {
		s, err := conn.GetStateData(context.Background(), jobID)
		if err != nil || s == nil {
			return false
		}
		last = s
		return s.Name == state
	}, 5*time.Second, 10*time.Millisecond)
	return last
}
