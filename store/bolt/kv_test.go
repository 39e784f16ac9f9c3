package bolt_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/store/bolt"
)

func listValues(t *testing.T, s *bolt.Store, key string) []string {
	t.Helper()
	entries, err := s.ListEntries(context.Background(), key)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out
}

func TestCounterValueSumsBothCollections(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: "stats:succeeded", Value: 1}))
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: "stats:succeeded", Value: 1}))
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: "stats:succeeded:x", Value: 5}))

	n, err := s.CounterValue(ctx, "stats:succeeded")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = s.AggregateCounters(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, s.InsertCounter(ctx, kv.Counter{Key: "stats:succeeded", Value: -1}))

	n, err = s.CounterValue(ctx, "stats:succeeded")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSetUpsertKeepsOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertSetEntry(ctx, kv.SetEntry{Key: "k", Value: "v1", Score: 1}))
	require.NoError(t, s.UpsertSetEntry(ctx, kv.SetEntry{Key: "k", Value: "v2", Score: 3}))
	require.NoError(t, s.UpsertSetEntry(ctx, kv.SetEntry{Key: "k", Value: "v1", Score: 2}))
	require.NoError(t, s.UpsertSetEntry(ctx, kv.SetEntry{Key: "kk", Value: "v1"}))

	entries, err := s.SetEntries(ctx, "k")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "v1", entries[0].Value)
	assert.Equal(t, 2.0, entries[0].Score)
	assert.Equal(t, "v2", entries[1].Value)

	require.NoError(t, s.RemoveSetEntry(ctx, "k", "v1"))
	require.NoError(t, s.RemoveSetEntry(ctx, "k", "missing"))
	entries, err = s.SetEntries(ctx, "k")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "v2", entries[0].Value)
}

func TestListInsertAndRemove(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "a", "c"} {
		require.NoError(t, s.InsertListEntry(ctx, kv.ListEntry{Key: "l", Value: v}))
	}
	assert.Equal(t, []string{"a", "b", "a", "c"}, listValues(t, s, "l"))

	require.NoError(t, s.RemoveListValue(ctx, "l", "a"))
	assert.Equal(t, []string{"b", "c"}, listValues(t, s, "l"))
}

func TestTrimList(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		want       []string
	}{
		{"middle", 1, 2, []string{"1", "2"}},
		{"end beyond length", 1, 100, []string{"1", "2", "3"}},
		{"whole list", 0, 3, []string{"0", "1", "2", "3"}},
		{"start after end", 3, 1, []string{}},
		{"start beyond length", 10, 20, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			ctx := context.Background()
			for i := 0; i < 4; i++ {
				require.NoError(t, s.InsertListEntry(ctx, kv.ListEntry{Key: "l", Value: strconv.Itoa(i)}))
			}
			require.NoError(t, s.InsertListEntry(ctx, kv.ListEntry{Key: "other", Value: "x"}))

			require.NoError(t, s.TrimList(ctx, "l", tt.start, tt.end))
			assert.Equal(t, tt.want, listValues(t, s, "l"))
			assert.Equal(t, []string{"x"}, listValues(t, s, "other"))
		})
	}
}

func TestHashUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertHashEntry(ctx, kv.HashEntry{Key: "h", Field: "f1", Value: "1"}))
	require.NoError(t, s.UpsertHashEntry(ctx, kv.HashEntry{Key: "h", Field: "f2", Value: "2"}))
	require.NoError(t, s.UpsertHashEntry(ctx, kv.HashEntry{Key: "h", Field: "f1", Value: "3"}))

	entries, err := s.HashEntries(ctx, "h")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "f1", entries[0].Field)
	assert.Equal(t, "3", entries[0].Value)
	assert.Equal(t, "f2", entries[1].Field)
}

func TestSetKeyExpiryAndRemoveKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	expireAt := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)

	require.NoError(t, s.UpsertHashEntry(ctx, kv.HashEntry{Key: "h", Field: "f1", Value: "1"}))
	require.NoError(t, s.UpsertHashEntry(ctx, kv.HashEntry{Key: "h", Field: "f2", Value: "2"}))

	require.NoError(t, s.SetKeyExpiry(ctx, kv.KindHash, "h", &expireAt))
	entries, err := s.HashEntries(ctx, "h")
	require.NoError(t, err)
	for _, e := range entries {
		require.NotNil(t, e.ExpireAt)
		assert.True(t, e.ExpireAt.Equal(expireAt))
		assert.NotEmpty(t, e.Value, "other fields survive the rewrite")
	}

	require.NoError(t, s.SetKeyExpiry(ctx, kv.KindHash, "h", nil))
	entries, err = s.HashEntries(ctx, "h")
	require.NoError(t, err)
	for _, e := range entries {
		assert.Nil(t, e.ExpireAt)
	}

	require.NoError(t, s.RemoveKey(ctx, kv.KindHash, "h"))
	entries, err = s.HashEntries(ctx, "h")
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.Error(t, s.RemoveKey(ctx, kv.Kind("bogus"), "h"))
}
