package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/maintenance"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/queue"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ job.Store         = (*Store)(nil)
	_ queue.Store       = (*Store)(nil)
	_ kv.Store          = (*Store)(nil)
	_ cluster.Store     = (*Store)(nil)
	_ lock.Store        = (*Store)(nil)
	_ monitor.Store     = (*Store)(nil)
	_ maintenance.Store = (*Store)(nil)
)

type entry struct {
	seq uint64
	queue.Entry
}

type setRow struct {
	kv.SetEntry
}

type hashRow struct {
	kv.HashEntry
}

type heldLock struct {
	owner    string
	expireAt time.Time
}

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	seq    uint64
	closed bool

	jobs       map[uint64]*job.Job
	entries    []*entry // FIFO across all queues
	counters   []kv.Counter
	aggregated map[string]kv.Counter
	sets       map[string][]*setRow
	lists      map[string][]kv.ListEntry
	hashes     map[string][]*hashRow
	servers    map[string]*cluster.Server
	locks      map[string]heldLock
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:       make(map[uint64]*job.Job),
		aggregated: make(map[string]kv.Counter),
		sets:       make(map[string][]*setRow),
		lists:      make(map[string][]kv.ListEntry),
		hashes:     make(map[string][]*hashRow),
		servers:    make(map[string]*cluster.Server),
		locks:      make(map[string]heldLock),
	}
}

func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// ── Lifecycle ────────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports ErrStoreClosed once Close has been called.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return jobstore.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed. Data is kept so readers holding the store
// still see it.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// ── Jobs ─────────────────────────────────────────────────────────

// InsertJob stores a copy of j under the next sequence number and sets j.ID.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.next()
	j.ID = job.FormatID(seq)
	s.jobs[seq] = cloneJob(j)
	return j.ID, nil
}

// GetJob returns a copy of the stored job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*job.Job, error) {
	seq, err := job.ParseID(jobID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[seq]
	if !ok {
		return nil, jobstore.ErrJobNotFound
	}
	return cloneJob(j), nil
}

// UpdateJob applies fn to a copy of the job and stores it when fn succeeds.
func (s *Store) UpdateJob(ctx context.Context, jobID string, fn func(*job.Job) error) error {
	seq, err := job.ParseID(jobID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[seq]
	if !ok {
		return jobstore.ErrJobNotFound
	}
	j := cloneJob(cur)
	if err := fn(j); err != nil {
		return fmt.Errorf("jobstore/memory: update job: %w", err)
	}
	j.ID = cur.ID
	s.jobs[seq] = cloneJob(j)
	return nil
}

func cloneJob(j *job.Job) *job.Job {
	c := *j
	c.InvocationData = slices.Clone(j.InvocationData)
	c.Parameters = maps.Clone(j.Parameters)
	c.StateHistory = make([]job.State, len(j.StateHistory))
	for i, st := range j.StateHistory {
		st.Data = maps.Clone(st.Data)
		c.StateHistory[i] = st
	}
	if len(c.StateHistory) == 0 {
		c.StateHistory = nil
	}
	c.ExpireAt = utcPtr(j.ExpireAt)
	return &c
}

// ── Queues ───────────────────────────────────────────────────────

// Enqueue appends an available entry for jobID to queueName.
func (s *Store) Enqueue(ctx context.Context, queueName, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.next()
	s.entries = append(s.entries, &entry{
		seq:   seq,
		Entry: queue.Entry{ID: job.FormatID(seq), JobID: jobID, Queue: queueName},
	})
	return nil
}

// ClaimNext claims the oldest available entry of the first queue that has
// one, falling back to entries whose invisibility window lapsed.
func (s *Store) ClaimNext(ctx context.Context, queues []string, at time.Time, invisibility time.Duration) (*queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := at.Add(-invisibility)
	available := func(e *entry) bool { return e.FetchedAt == nil }
	stale := func(e *entry) bool { return e.FetchedAt != nil && e.FetchedAt.Before(cutoff) }
	for pass, match := range []func(*entry) bool{available, stale} {
		for _, q := range queues {
			for _, e := range s.entries {
				if e.Queue != q || !match(e) {
					continue
				}
				stamp := at.UTC()
				e.FetchedAt = &stamp
				out := e.Entry
				out.FetchedAt = utcPtr(e.FetchedAt)
				out.Reclaimed = pass == 1
				return &out, nil
			}
		}
	}
	return nil, nil
}

// AcknowledgeEntry deletes a claimed entry. Missing entries are ignored.
func (s *Store) AcknowledgeEntry(ctx context.Context, entryID string) error {
	return s.withEntry(ctx, entryID, func(i int) {
		s.entries = slices.Delete(s.entries, i, i+1)
	})
}

// ReleaseEntry clears FetchedAt. Missing entries are ignored.
func (s *Store) ReleaseEntry(ctx context.Context, entryID string) error {
	return s.withEntry(ctx, entryID, func(i int) {
		s.entries[i].FetchedAt = nil
	})
}

func (s *Store) withEntry(ctx context.Context, entryID string, fn func(i int)) error {
	seq, err := job.ParseID(entryID)
	if err != nil {
		return fmt.Errorf("%w: queue entry id %q", jobstore.ErrInvalidArgument, entryID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.entries, func(e *entry) bool { return e.seq == seq })
	if i >= 0 {
		fn(i)
	}
	return nil
}

// ── Counters ─────────────────────────────────────────────────────

// CounterValue sums the fine-grained rows and the aggregated row of key.
func (s *Store) CounterValue(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := s.aggregated[key].Value
	for _, c := range s.counters {
		if c.Key == key {
			total += c.Value
		}
	}
	return total, nil
}

// InsertCounter appends a fine-grained counter row.
func (s *Store) InsertCounter(ctx context.Context, c kv.Counter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ExpireAt = utcPtr(c.ExpireAt)
	s.counters = append(s.counters, c)
	return nil
}

// ── Sets ─────────────────────────────────────────────────────────

// SetEntries returns the members of key in insertion order.
func (s *Store) SetEntries(ctx context.Context, key string) ([]kv.SetEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []kv.SetEntry
	for _, r := range s.sets[key] {
		e := r.SetEntry
		e.ExpireAt = utcPtr(e.ExpireAt)
		out = append(out, e)
	}
	return out, nil
}

// UpsertSetEntry inserts a member or updates its score and expiry in place.
func (s *Store) UpsertSetEntry(ctx context.Context, e kv.SetEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ExpireAt = utcPtr(e.ExpireAt)
	for _, r := range s.sets[e.Key] {
		if r.Value == e.Value {
			r.Score = e.Score
			r.ExpireAt = e.ExpireAt
			return nil
		}
	}
	s.sets[e.Key] = append(s.sets[e.Key], &setRow{SetEntry: e})
	return nil
}

// RemoveSetEntry deletes one member of key.
func (s *Store) RemoveSetEntry(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := slices.DeleteFunc(s.sets[key], func(r *setRow) bool { return r.Value == value })
	s.putSet(key, rows)
	return nil
}

func (s *Store) putSet(key string, rows []*setRow) {
	if len(rows) == 0 {
		delete(s.sets, key)
		return
	}
	s.sets[key] = rows
}

// ── Lists ────────────────────────────────────────────────────────

// ListEntries returns the elements of key, oldest first.
func (s *Store) ListEntries(ctx context.Context, key string) ([]kv.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []kv.ListEntry
	for _, e := range s.lists[key] {
		e.ExpireAt = utcPtr(e.ExpireAt)
		out = append(out, e)
	}
	return out, nil
}

// InsertListEntry appends an element to key.
func (s *Store) InsertListEntry(ctx context.Context, e kv.ListEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ExpireAt = utcPtr(e.ExpireAt)
	s.lists[e.Key] = append(s.lists[e.Key], e)
	return nil
}

// RemoveListValue deletes every element of key equal to value.
func (s *Store) RemoveListValue(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putList(key, slices.DeleteFunc(s.lists[key], func(e kv.ListEntry) bool { return e.Value == value }))
	return nil
}

// TrimList keeps the elements of key at insertion positions start..end
// (inclusive, zero-based) and deletes the rest.
func (s *Store) TrimList(ctx context.Context, key string, start, end int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []kv.ListEntry
	for pos, e := range s.lists[key] {
		if pos >= start && pos <= end {
			kept = append(kept, e)
		}
	}
	s.putList(key, kept)
	return nil
}

func (s *Store) putList(key string, rows []kv.ListEntry) {
	if len(rows) == 0 {
		delete(s.lists, key)
		return
	}
	s.lists[key] = rows
}

// ── Hashes ───────────────────────────────────────────────────────

// HashEntries returns the fields of key in insertion order.
func (s *Store) HashEntries(ctx context.Context, key string) ([]kv.HashEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []kv.HashEntry
	for _, r := range s.hashes[key] {
		e := r.HashEntry
		e.ExpireAt = utcPtr(e.ExpireAt)
		out = append(out, e)
	}
	return out, nil
}

// UpsertHashEntry sets a field of key, replacing any previous value.
func (s *Store) UpsertHashEntry(ctx context.Context, e kv.HashEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ExpireAt = utcPtr(e.ExpireAt)
	for _, r := range s.hashes[e.Key] {
		if r.Field == e.Field {
			r.Value = e.Value
			r.ExpireAt = e.ExpireAt
			return nil
		}
	}
	s.hashes[e.Key] = append(s.hashes[e.Key], &hashRow{HashEntry: e})
	return nil
}

// ── Key-wide operations ──────────────────────────────────────────

// RemoveKey deletes every row of key in collection kind.
func (s *Store) RemoveKey(ctx context.Context, kind kv.Kind, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case kv.KindSet:
		delete(s.sets, key)
	case kv.KindList:
		delete(s.lists, key)
	case kv.KindHash:
		delete(s.hashes, key)
	default:
		return unknownKind(kind)
	}
	return nil
}

// SetKeyExpiry sets or clears the expiry of every row of key in kind.
func (s *Store) SetKeyExpiry(ctx context.Context, kind kv.Kind, key string, expireAt *time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case kv.KindSet:
		for _, r := range s.sets[key] {
			r.ExpireAt = utcPtr(expireAt)
		}
	case kv.KindList:
		for i := range s.lists[key] {
			s.lists[key][i].ExpireAt = utcPtr(expireAt)
		}
	case kv.KindHash:
		for _, r := range s.hashes[key] {
			r.ExpireAt = utcPtr(expireAt)
		}
	default:
		return unknownKind(kind)
	}
	return nil
}

func unknownKind(kind kv.Kind) error {
	return fmt.Errorf("%w: jobstore/memory: unknown kind %q", jobstore.ErrInvalidArgument, kind)
}

// ── Cluster ──────────────────────────────────────────────────────

// AnnounceServer inserts or replaces a server record.
func (s *Store) AnnounceServer(ctx context.Context, srv *cluster.Server) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *srv
	c.Info.Queues = slices.Clone(srv.Info.Queues)
	c.LastHeartbeat = srv.LastHeartbeat.UTC()
	s.servers[srv.ID] = &c
	return nil
}

// HeartbeatServer sets the last heartbeat of a known server.
func (s *Store) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if srv, ok := s.servers[serverID]; ok {
		srv.LastHeartbeat = at.UTC()
	}
	return nil
}

// RemoveServer deletes a server record.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.servers, serverID)
	return nil
}

// RemoveServersBefore deletes servers whose last heartbeat is before cutoff.
func (s *Store) RemoveServersBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int
	for id, srv := range s.servers {
		if srv.LastHeartbeat.Before(cutoff) {
			delete(s.servers, id)
			removed++
		}
	}
	return removed, nil
}

// ListServers returns every registered server ordered by ID.
func (s *Store) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cluster.Server
	for _, id := range slices.Sorted(maps.Keys(s.servers)) {
		c := *s.servers[id]
		c.Info.Queues = slices.Clone(c.Info.Queues)
		out = append(out, &c)
	}
	return out, nil
}

// ── Locks ────────────────────────────────────────────────────────

// TryAcquireLock takes resource when it is free, expired or already owned
// by owner.
func (s *Store) TryAcquireLock(ctx context.Context, resource, owner string, at time.Time, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[resource]; ok && l.owner != owner && l.expireAt.After(at) {
		return false, nil
	}
	s.locks[resource] = heldLock{owner: owner, expireAt: at.Add(ttl).UTC()}
	return true, nil
}

// ReleaseLock deletes the lock if owner still holds it.
func (s *Store) ReleaseLock(ctx context.Context, resource, owner string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[resource]
	if !ok || l.owner != owner {
		return false, nil
	}
	delete(s.locks, resource)
	return true, nil
}

// ── Monitoring ───────────────────────────────────────────────────

// QueueNames returns the sorted names of queues holding entries.
func (s *Store) QueueNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		seen[e.Queue] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, nil
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

// QueueEntries pages through available (or claimed) entries of a queue.
func (s *Store) QueueEntries(ctx context.Context, queueName string, fetched bool, from, count int) ([]*queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		out     []*queue.Entry
		skipped int
	)
	for _, e := range s.entries {
		if e.Queue != queueName || (e.FetchedAt != nil) != fetched {
			continue
		}
		if skipped < from {
			skipped++
			continue
		}
		if len(out) >= count {
			break
		}
		c := e.Entry
		c.FetchedAt = utcPtr(e.FetchedAt)
		out = append(out, &c)
	}
	return out, nil
}

// QueueCounts returns the available and claimed entry counts of a queue.
func (s *Store) QueueCounts(ctx context.Context, queueName string) (enqueued, fetched int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.Queue != queueName {
			continue
		}
		if e.FetchedAt == nil {
			enqueued++
		} else {
			fetched++
		}
	}
	return enqueued, fetched, nil
}

// JobsByState pages through jobs in state, newest first.
func (s *Store) JobsByState(ctx context.Context, state string, from, count int) ([]*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	seqs := s.jobsIn(state)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] > seqs[j] })
	var out []*job.Job
	for i := from; i < len(seqs) && len(out) < count; i++ {
		out = append(out, cloneJob(s.jobs[seqs[i]]))
	}
	return out, nil
}

// CountJobsByState returns the number of jobs in state.
func (s *Store) CountJobsByState(ctx context.Context, state string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.jobsIn(state))), nil
}

func (s *Store) jobsIn(state string) []uint64 {
	var seqs []uint64
	for seq, j := range s.jobs {
		if j.StateName == state {
			seqs = append(seqs, seq)
		}
	}
	return seqs
}

// ── Maintenance ──────────────────────────────────────────────────

// DeleteExpired removes rows of collection that expired before at.
func (s *Store) DeleteExpired(ctx context.Context, collection maintenance.Collection, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := func(t *time.Time) bool { return t != nil && t.Before(at) }
	var removed int
	switch collection {
	case maintenance.CollectionJobs:
		for seq, j := range s.jobs {
			if expired(j.ExpireAt) {
				delete(s.jobs, seq)
				removed++
			}
		}
	case maintenance.CollectionAggregatedCounters:
		for key, c := range s.aggregated {
			if expired(c.ExpireAt) {
				delete(s.aggregated, key)
				removed++
			}
		}
	case maintenance.CollectionCounters:
		n := len(s.counters)
		s.counters = slices.DeleteFunc(s.counters, func(c kv.Counter) bool { return expired(c.ExpireAt) })
		removed = n - len(s.counters)
	case maintenance.CollectionSets:
		for key, rows := range s.sets {
			n := len(rows)
			rows = slices.DeleteFunc(rows, func(r *setRow) bool { return expired(r.ExpireAt) })
			removed += n - len(rows)
			s.putSet(key, rows)
		}
	case maintenance.CollectionLists:
		for key, rows := range s.lists {
			n := len(rows)
			rows = slices.DeleteFunc(rows, func(e kv.ListEntry) bool { return expired(e.ExpireAt) })
			removed += n - len(rows)
			s.putList(key, rows)
		}
	case maintenance.CollectionHashes:
		for key, rows := range s.hashes {
			n := len(rows)
			rows = slices.DeleteFunc(rows, func(r *hashRow) bool { return expired(r.ExpireAt) })
			removed += n - len(rows)
			if len(rows) == 0 {
				delete(s.hashes, key)
			} else {
				s.hashes[key] = rows
			}
		}
	default:
		return 0, fmt.Errorf("%w: jobstore/memory: unknown collection %q", jobstore.ErrInvalidArgument, collection)
	}
	return removed, nil
}

// AggregateCounters folds up to limit fine counter rows into the aggregated
// rows under the store lock.
func (s *Store) AggregateCounters(ctx context.Context, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(limit, len(s.counters))
	if n <= 0 {
		return 0, nil
	}
	rows := s.counters[:n]
	for _, group := range kv.Fold(rows) {
		if cur, ok := s.aggregated[group.Key]; ok {
			group.Value += cur.Value
			group.ExpireAt = kv.MergeExpiry(cur.ExpireAt, group.ExpireAt)
		}
		s.aggregated[group.Key] = group
	}
	s.counters = slices.Clone(s.counters[n:])
	return n, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
