package worker_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/storage"
	"github.com/xraph/jobstore/worker"
)

// schedule moves jobID to Scheduled and adds it to the schedule set.
func schedule(t *testing.T, conn *storage.Connection, jobID, queue string, due time.Time) {
	t.Helper()
	tx := conn.CreateWriteTransaction()
	require.NoError(t, tx.SetJobState(jobID, job.State{
		Name: job.StateScheduled,
		Data: map[string]string{"Queue": queue},
	}))
	require.NoError(t, tx.AddToSetWithScore(worker.ScheduleKey, jobID, float64(due.Unix())))
	require.NoError(t, tx.Commit(context.Background()))
}

func newJob(t *testing.T, conn *storage.Connection) string {
	t.Helper()
	inv := &job.Invocation{Type: "mail", Method: "send"}
	jobID, err := conn.CreateExpiredJob(context.Background(), inv, nil, time.Now(), time.Hour)
	require.NoError(t, err)
	return jobID
}

func TestScheduler_EnqueuesDueJobs(t *testing.T) {
	st := openStorage(t)
	conn := st.Connection()
	ctx := context.Background()

	due := newJob(t, conn)
	later := newJob(t, conn)
	schedule(t, conn, due, "critical", time.Now().Add(-time.Minute))
	schedule(t, conn, later, "critical", time.Now().Add(time.Hour))

	n, err := worker.NewScheduler(conn, slog.Default()).EnqueueDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	state, err := conn.GetStateData(ctx, due)
	require.NoError(t, err)
	assert.Equal(t, job.StateEnqueued, state.Name)
	assert.Equal(t, "critical", state.Data["Queue"])

	claim, err := conn.FetchNextJob(ctx, []string{"critical"})
	require.NoError(t, err)
	defer claim.Close()
	assert.Equal(t, due, claim.JobID())

	members, err := conn.GetAllItemsFromSet(ctx, worker.ScheduleKey)
	require.NoError(t, err)
	assert.Equal(t, []string{later}, members)
}

func TestScheduler_DropsJobsNoLongerScheduled(t *testing.T) {
	st := openStorage(t)
	conn := st.Connection()
	ctx := context.Background()

	jobID := newJob(t, conn)
	schedule(t, conn, jobID, "", time.Now().Add(-time.Minute))

	tx := conn.CreateWriteTransaction()
	require.NoError(t, tx.SetJobState(jobID, job.State{Name: job.StateDeleted}))
	require.NoError(t, tx.Commit(ctx))

	n, err := worker.NewScheduler(conn, slog.Default()).EnqueueDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := conn.GetSetCount(ctx, worker.ScheduleKey)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestScheduler_DefaultQueue(t *testing.T) {
	st := openStorage(t)
	conn := st.Connection()
	ctx := context.Background()

	jobID := newJob(t, conn)
	schedule(t, conn, jobID, "", time.Now().Add(-time.Second))

	n, err := worker.NewScheduler(conn, slog.Default()).EnqueueDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	claim, err := conn.FetchNextJob(ctx, []string{worker.DefaultQueue})
	require.NoError(t, err)
	defer claim.Close()
	assert.Equal(t, jobID, claim.JobID())
}

func TestScheduler_ExcludesOtherConnectionsOfOneStorage(t *testing.T) {
	st := openStorage(t)
	holder, conn := st.Connection(), st.Connection()
	ctx := context.Background()

	jobID := newJob(t, conn)
	schedule(t, conn, jobID, "default", time.Now().Add(-time.Minute))

	held, err := holder.AcquireDistributedLock(ctx, "locks:schedulepoller", time.Second)
	require.NoError(t, err)

	n, err := worker.NewScheduler(conn, slog.Default()).EnqueueDue(ctx)
	assert.ErrorIs(t, err, jobstore.ErrLockTimeout)
	assert.Zero(t, n)

	state, err := conn.GetStateData(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateScheduled, state.Name)

	require.NoError(t, held.Release(ctx))
	n, err = worker.NewScheduler(conn, slog.Default()).EnqueueDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
