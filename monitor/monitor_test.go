package monitor_test

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/store/bolt"
)

func newStore(t *testing.T) *bolt.Store {
	t.Helper()
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "monitor.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := bolt.New(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func insert(t *testing.T, s *bolt.Store, payload []byte, states ...job.State) string {
	t.Helper()
	j := &job.Job{
		InvocationData: payload,
		Encoding:       job.CodecNameJSON,
		Arguments:      `["x"]`,
		CreatedAt:      time.Now().UTC(),
	}
	for _, st := range states {
		j.AppendState(st)
	}
	id, err := s.InsertJob(context.Background(), j)
	require.NoError(t, err)
	return id
}

var validPayload = []byte(`{"type":"mail","method":"send","args":["\"x\""]}`)

func TestQueuesAndEnqueuedJobs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	enqueuedAt := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 7; i++ {
		id := insert(t, s, validPayload, job.State{
			Name:      job.StateEnqueued,
			Data:      map[string]string{"EnqueuedAt": strconv.FormatInt(enqueuedAt.UnixMilli(), 10)},
			CreatedAt: enqueuedAt,
		})
		require.NoError(t, s.Enqueue(ctx, "default", id))
	}
	id := insert(t, s, validPayload)
	require.NoError(t, s.Enqueue(ctx, "critical", id))
	_, err := s.ClaimNext(ctx, []string{"critical"}, time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	api := monitor.New(s)
	queues, err := api.Queues(ctx)
	require.NoError(t, err)
	require.Len(t, queues, 2)

	assert.Equal(t, "critical", queues[0].Name)
	assert.Equal(t, int64(0), queues[0].Length)
	assert.Equal(t, int64(1), queues[0].Fetched)
	assert.Empty(t, queues[0].FirstJobs)

	assert.Equal(t, "default", queues[1].Name)
	assert.Equal(t, int64(7), queues[1].Length)
	require.Len(t, queues[1].FirstJobs, 5)
	first := queues[1].FirstJobs[0]
	assert.Equal(t, "1", first.ID)
	require.NotNil(t, first.Invocation)
	assert.Equal(t, "mail.send", first.Invocation.Name())
	require.NotNil(t, first.EnqueuedAt)
	assert.True(t, first.EnqueuedAt.Equal(enqueuedAt))

	fetched, err := api.FetchedJobs(ctx, "critical", 0, 10)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.NotNil(t, fetched[0].FetchedAt)

	n, err := api.EnqueuedCount(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	n, err = api.FetchedCount(ctx, "critical")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestJobDetails(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	id := insert(t, s, validPayload,
		job.State{Name: job.StateEnqueued, CreatedAt: base},
		job.State{Name: job.StateProcessing, CreatedAt: base.Add(time.Minute)},
		job.State{Name: job.StateSucceeded, CreatedAt: base.Add(2 * time.Minute)},
	)

	api := monitor.New(s)
	d, err := api.JobDetails(ctx, id)
	require.NoError(t, err)
	require.Len(t, d.History, 3)
	assert.Equal(t, job.StateSucceeded, d.History[0].Name)
	assert.Equal(t, job.StateEnqueued, d.History[2].Name)
	assert.Empty(t, d.LoadError)

	_, err = api.JobDetails(ctx, "999")
	assert.ErrorIs(t, err, jobstore.ErrJobNotFound)
}

func TestMalformedPayloadDegrades(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	insert(t, s, []byte("not json"), job.State{Name: job.StateFailed, Reason: "boom"})

	api := monitor.New(s)
	failed, err := api.FailedJobs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Nil(t, failed[0].Invocation)
	assert.NotEmpty(t, failed[0].LoadError)
	assert.Equal(t, "boom", failed[0].Reason)
}

func TestStateListsAndCounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	insert(t, s, validPayload, job.State{Name: job.StateProcessing, Data: map[string]string{
		"ServerId":  "srv-1",
		"StartedAt": at.Format(time.RFC3339),
	}})
	insert(t, s, validPayload, job.State{Name: job.StateSucceeded, Data: map[string]string{
		"PerformanceDuration": "120",
		"Latency":             "30",
		"Result":              "ok",
	}})
	insert(t, s, validPayload, job.State{Name: job.StateScheduled, Data: map[string]string{
		"EnqueueAt": strconv.FormatInt(at.UnixMilli(), 10),
	}})
	insert(t, s, validPayload, job.State{Name: job.StateDeleted})

	api := monitor.New(s)

	processing, err := api.ProcessingJobs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, processing, 1)
	assert.Equal(t, "srv-1", processing[0].ServerID)
	require.NotNil(t, processing[0].StartedAt)
	assert.True(t, processing[0].StartedAt.Equal(at))

	succeeded, err := api.SucceededJobs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, succeeded, 1)
	require.NotNil(t, succeeded[0].TotalDuration)
	assert.Equal(t, int64(150), *succeeded[0].TotalDuration)
	assert.Equal(t, "ok", succeeded[0].Result)

	scheduled, err := api.ScheduledJobs(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
	require.NotNil(t, scheduled[0].EnqueueAt)
	assert.Nil(t, scheduled[0].ScheduledAt)

	deleted, err := api.DeletedJobs(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, deleted, 1)

	for _, fn := range []func(context.Context) (int64, error){
		api.ProcessingCount, api.SucceededListCount, api.ScheduledCount, api.DeletedListCount,
	} {
		n, err := fn(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	}
	n, err := api.FailedCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStatistics(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id := insert(t, s, validPayload, job.State{Name: job.StateEnqueued})
	require.NoError(t, s.Enqueue(ctx, "default", id))
	insert(t, s, validPayload, job.State{Name: job.StateFailed})
	insert(t, s, validPayload, job.State{Name: job.StateFailed})
	require.NoError(t, s.UpsertSetEntry(ctx, kv.SetEntry{Key: monitor.RecurringJobsKey, Value: "daily-report"}))
	require.NoError(t, s.AnnounceServer(ctx, &cluster.Server{ID: "srv-1", LastHeartbeat: time.Now().UTC()}))

	stats, err := monitor.New(s).Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Enqueued)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Servers)
	assert.Equal(t, int64(1), stats.Queues)
	assert.Equal(t, int64(1), stats.Recurring)

	servers, err := monitor.New(s).Servers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	assert.Equal(t, "srv-1", servers[0].Name)
}

func TestTimelines(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	today := monitor.DailyKey(monitor.TypeSucceeded, now)
	assert.Equal(t, "stats:succeeded:2024-06-10", today)
	assert.Equal(t, "stats:failed:2024-06-10-15", monitor.HourlyKey(monitor.TypeFailed, now))

	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: today, Value: 3}))
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: monitor.DailyKey(monitor.TypeSucceeded, now.AddDate(0, 0, -7)), Value: 2}))
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: monitor.DailyKey(monitor.TypeSucceeded, now.AddDate(0, 0, -8)), Value: 9}))
	_, err := s.AggregateCounters(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: monitor.HourlyKey(monitor.TypeFailed, now.Add(-2*time.Hour)), Value: 4}))

	api := monitor.New(s, monitor.WithClock(func() time.Time { return now }))

	daily, err := api.SucceededByDatesCount(ctx)
	require.NoError(t, err)
	require.Len(t, daily, 8)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), daily[0].Time)
	assert.Equal(t, int64(3), daily[0].Count)
	assert.Equal(t, int64(2), daily[7].Count)

	var sum int64
	for _, p := range daily {
		sum += p.Count
	}
	assert.Equal(t, int64(5), sum, "days outside the window are ignored")

	hourly, err := api.HourlyFailedJobs(ctx)
	require.NoError(t, err)
	require.Len(t, hourly, 24)
	assert.Equal(t, time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC), hourly[0].Time)
	assert.Equal(t, int64(4), hourly[2].Count)

	failed, err := api.FailedByDatesCount(ctx)
	require.NoError(t, err)
	assert.Len(t, failed, 8)
	succeeded, err := api.HourlySucceededJobs(ctx)
	require.NoError(t, err)
	assert.Len(t, succeeded, 24)
}

func TestCollector(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	id := insert(t, s, validPayload, job.State{Name: job.StateEnqueued})
	require.NoError(t, s.Enqueue(ctx, "default", id))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(monitor.NewCollector(monitor.New(s), nil)))

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			name := f.GetName()
			for _, l := range m.GetLabel() {
				name += ":" + l.GetValue()
			}
			values[name] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["jobstore_store_up"])
	assert.Equal(t, 1.0, values["jobstore_jobs:enqueued"])
	assert.Equal(t, 0.0, values["jobstore_jobs:failed"])
	assert.Equal(t, 1.0, values["jobstore_queue_entries:default:enqueued"])
}
