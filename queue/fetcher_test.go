package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobstore"
)

// memStore is a minimal in-memory Store used to exercise the fetch loop.
type memStore struct {
	mu      sync.Mutex
	entries []*Entry
	calls   atomic.Int64
	seq     int
	failErr error
}

func (s *memStore) Enqueue(_ context.Context, queue, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.entries = append(s.entries, &Entry{ID: string(rune('0' + s.seq)), JobID: jobID, Queue: queue})
	return nil
}

func (s *memStore) ClaimNext(_ context.Context, queues []string, now time.Time, invisibility time.Duration) (*Entry, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, q := range queues {
		for _, e := range s.entries {
			if e.Queue == q && e.FetchedAt == nil {
				at := now
				e.FetchedAt = &at
				cp := *e
				return &cp, nil
			}
		}
	}
	for _, q := range queues {
		for _, e := range s.entries {
			if e.Queue == q && e.FetchedAt != nil && e.FetchedAt.Before(now.Add(-invisibility)) {
				at := now
				e.FetchedAt = &at
				cp := *e
				cp.Reclaimed = true
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (s *memStore) AcknowledgeEntry(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.ID == entryID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return jobstore.ErrEntryNotFound
}

func (s *memStore) ReleaseEntry(_ context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			e.FetchedAt = nil
			return nil
		}
	}
	return jobstore.ErrEntryNotFound
}

func (s *memStore) fetched(entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == entryID {
			return e.FetchedAt != nil
		}
	}
	return false
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func TestFetch_EmptyQueues(t *testing.T) {
	s := &memStore{}
	f := NewFetcher(s, time.Hour, time.Minute)

	_, err := f.Fetch(context.Background(), nil)
	if !errors.Is(err, jobstore.ErrEmptyQueues) {
		t.Fatalf("expected ErrEmptyQueues, got %v", err)
	}
	if s.calls.Load() != 0 {
		t.Fatal("store must not be touched for an empty queue list")
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	s := &memStore{}
	_ = s.Enqueue(context.Background(), "default", "1")
	f := NewFetcher(s, time.Hour, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, []string{"default"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.calls.Load() != 0 {
		t.Fatal("store must not be touched with a cancelled context")
	}
}

func TestFetch_PriorityOrder(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "default", "1")
	_ = s.Enqueue(ctx, "critical", "2")
	f := NewFetcher(s, time.Hour, time.Minute)

	c, err := f.Fetch(ctx, []string{"critical", "default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if c.JobID() != "2" || c.Queue() != "critical" {
		t.Fatalf("expected critical job 2, got %s from %s", c.JobID(), c.Queue())
	}
}

func TestFetch_WaitsForEntry(t *testing.T) {
	s := &memStore{}
	f := NewFetcher(s, 10*time.Millisecond, time.Minute)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = s.Enqueue(context.Background(), "default", "9")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := f.Fetch(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if c.JobID() != "9" {
		t.Fatalf("expected job 9, got %s", c.JobID())
	}
	if s.calls.Load() < 2 {
		t.Errorf("expected at least two claim rounds, got %d", s.calls.Load())
	}
}

func TestFetch_CancelWhileWaiting(t *testing.T) {
	s := &memStore{}
	f := NewFetcher(s, time.Hour, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, []string{"default"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestFetch_StoreErrorPropagates(t *testing.T) {
	boom := errors.New("disk gone")
	s := &memStore{failErr: boom}
	f := NewFetcher(s, time.Hour, time.Minute)

	_, err := f.Fetch(context.Background(), []string{"default"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestFetch_ReclaimsStaleEntry(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "default", "1")
	stale := time.Now().UTC().Add(-2 * time.Minute)
	s.entries[0].FetchedAt = &stale

	f := NewFetcher(s, time.Hour, time.Minute)
	c, err := f.Fetch(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !c.Reclaimed() || c.JobID() != "1" {
		t.Fatalf("expected reclaimed job 1, got %+v", c.entry)
	}
	if c.FetchedAt().Before(stale.Add(time.Minute)) {
		t.Errorf("expected a fresh claim timestamp, got %v", c.FetchedAt())
	}
}

func TestFetch_SkipsLimitedQueue(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "critical", "1")
	_ = s.Enqueue(ctx, "critical", "2")
	_ = s.Enqueue(ctx, "default", "3")

	limits := NewManager(Config{Name: "critical", MaxConcurrency: 1})
	f := NewFetcher(s, time.Hour, time.Minute, WithLimits(limits))

	first, err := f.Fetch(ctx, []string{"critical", "default"})
	if err != nil || first.JobID() != "1" {
		t.Fatalf("expected job 1, got %v / %v", first, err)
	}
	second, err := f.Fetch(ctx, []string{"critical", "default"})
	if err != nil || second.JobID() != "3" {
		t.Fatalf("expected default job 3 while critical is at capacity, got %v / %v", second, err)
	}

	if err := first.Acknowledge(ctx); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if limits.ActiveCount("critical") != 0 {
		t.Errorf("expected critical capacity returned, got %d", limits.ActiveCount("critical"))
	}
}

func TestClaim_CloseReleases(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "default", "1")
	f := NewFetcher(s, time.Hour, time.Minute)

	c, err := f.Fetch(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !s.fetched(c.EntryID()) {
		t.Fatal("expected entry to be marked fetched")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.fetched(c.EntryID()) {
		t.Fatal("expected Close to release the entry")
	}
}

func TestClaim_AcknowledgeThenClose(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "default", "1")
	f := NewFetcher(s, time.Hour, time.Minute)

	c, err := f.Fetch(ctx, []string{"default"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := c.Acknowledge(ctx); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close after Acknowledge: %v", err)
	}
	if s.len() != 0 {
		t.Fatalf("expected entry removed, %d left", s.len())
	}
}

func TestClaim_ReleaseThenAcknowledgeIsNoop(t *testing.T) {
	s := &memStore{}
	ctx := context.Background()
	_ = s.Enqueue(ctx, "default", "1")
	f := NewFetcher(s, time.Hour, time.Minute)

	c, _ := f.Fetch(ctx, []string{"default"})
	if err := c.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := c.Acknowledge(ctx); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if s.len() != 1 {
		t.Fatal("released entry must stay in the queue")
	}
}
