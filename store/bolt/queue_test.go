package bolt_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimFollowsQueuePriority(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, "low", "1"))
	require.NoError(t, s.Enqueue(ctx, "critical", "2"))
	require.NoError(t, s.Enqueue(ctx, "critical", "3"))

	queues := []string{"critical", "low"}
	var got []string
	for i := 0; i < 3; i++ {
		e, err := s.ClaimNext(ctx, queues, at, 30*time.Minute)
		require.NoError(t, err)
		require.NotNil(t, e)
		assert.False(t, e.Reclaimed)
		got = append(got, e.JobID)
	}
	assert.Equal(t, []string{"2", "3", "1"}, got)

	e, err := s.ClaimNext(ctx, queues, at, 30*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, e, "claimed entries are invisible")
}

func TestClaimReclaimsStaleEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, "default", "7"))
	first, err := s.ClaimNext(ctx, []string{"default"}, at.Add(-2*time.Minute), time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	again, err := s.ClaimNext(ctx, []string{"default"}, at, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Reclaimed)
}

func TestClaimPrefersAvailableOverStale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, "default", "1"))
	_, err := s.ClaimNext(ctx, []string{"default"}, at.Add(-time.Hour), time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(ctx, "other", "2"))

	e, err := s.ClaimNext(ctx, []string{"default", "other"}, at, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "2", e.JobID)
	assert.False(t, e.Reclaimed)
}

func TestConcurrentClaimsAreExclusive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, "default", "1"))

	const fetchers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < fetchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.ClaimNext(ctx, []string{"default"}, time.Now().UTC(), time.Hour)
			assert.NoError(t, err)
			if e != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestAcknowledgeAndRelease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Now().UTC()

	require.NoError(t, s.Enqueue(ctx, "default", "1"))
	require.NoError(t, s.Enqueue(ctx, "default", "2"))

	first, err := s.ClaimNext(ctx, []string{"default"}, at, time.Hour)
	require.NoError(t, err)
	second, err := s.ClaimNext(ctx, []string{"default"}, at, time.Hour)
	require.NoError(t, err)

	enq, fetched, err := s.QueueCounts(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(0), enq)
	assert.Equal(t, int64(2), fetched)

	require.NoError(t, s.AcknowledgeEntry(ctx, first.ID))
	require.NoError(t, s.ReleaseEntry(ctx, second.ID))

	enq, fetched, err = s.QueueCounts(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(1), enq)
	assert.Equal(t, int64(0), fetched)

	// Repeated or unknown ids are no-ops.
	require.NoError(t, s.AcknowledgeEntry(ctx, first.ID))
	require.NoError(t, s.ReleaseEntry(ctx, "12345"))
	assert.Error(t, s.AcknowledgeEntry(ctx, "not-a-number"))

	again, err := s.ClaimNext(ctx, []string{"default"}, at, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "2", again.JobID)
}

func TestQueueMonitoring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, q := range []string{"b", "a", "b", "c"} {
		require.NoError(t, s.Enqueue(ctx, q, "1"))
	}
	_, err := s.ClaimNext(ctx, []string{"b"}, time.Now().UTC(), time.Hour)
	require.NoError(t, err)

	names, err := s.QueueNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, names)

	available, err := s.QueueEntries(ctx, "b", false, 0, 10)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Nil(t, available[0].FetchedAt)

	claimed, err := s.QueueEntries(ctx, "b", true, 0, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.NotNil(t, claimed[0].FetchedAt)
}
