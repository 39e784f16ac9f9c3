package storage

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/id"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/queue"
	"github.com/xraph/jobstore/txn"
)

// NoTTL is returned by the TTL reads when no row of the key expires.
const NoTTL = -time.Second

// Connection is the storage contract seen by a job-processing framework.
// It is safe for concurrent use, but distributed locks taken through one
// connection are re-entrant for every caller of that connection; callers
// that must exclude each other use separate connections.
type Connection struct {
	storage *Storage
	id      id.ConnectionID
	locker  *lock.Locker
}

// ID returns the connection identifier. It is also the owner token of the
// connection's distributed locks.
func (c *Connection) ID() id.ConnectionID { return c.id }

func requireKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key is empty", jobstore.ErrInvalidArgument)
	}
	return nil
}

// ── Transactions and locks ───────────────────────────────────────

// CreateWriteTransaction returns an empty write journal.
func (c *Connection) CreateWriteTransaction() *txn.Transaction {
	s := c.storage
	return txn.New(s.store,
		txn.WithLogger(s.logger),
		txn.WithMetrics(s.metrics),
		txn.WithTracer(s.tracer),
		txn.WithClock(s.now),
	)
}

// AcquireDistributedLock takes resource on behalf of this connection,
// waiting up to timeout. Nested acquisitions through the same connection are
// counted; other connections wait. The returned lock must be released.
func (c *Connection) AcquireDistributedLock(ctx context.Context, resource string, timeout time.Duration) (*lock.Lock, error) {
	return c.locker.Acquire(ctx, resource, timeout)
}

// ── Jobs ─────────────────────────────────────────────────────────

// CreateExpiredJob stores a new job that expires expireIn after createdAt
// unless a later state persists it, and returns its ID.
func (c *Connection) CreateExpiredJob(ctx context.Context, inv *job.Invocation, params map[string]string, createdAt time.Time, expireIn time.Duration) (string, error) {
	if inv == nil {
		return "", fmt.Errorf("%w: invocation is nil", jobstore.ErrInvalidArgument)
	}
	j := &job.Job{
		Parameters: maps.Clone(params),
		CreatedAt:  createdAt.UTC(),
	}
	expireAt := createdAt.Add(expireIn).UTC()
	j.ExpireAt = &expireAt
	if err := job.Encode(j, inv, c.storage.codec); err != nil {
		return "", fmt.Errorf("%w: %w", jobstore.ErrInvalidArgument, err)
	}
	return c.storage.store.InsertJob(ctx, j)
}

// FetchNextJob blocks until an entry from one of queues is claimed.
// Earlier queues have priority.
func (c *Connection) FetchNextJob(ctx context.Context, queues []string) (*queue.Claim, error) {
	return c.storage.fetcher.Fetch(ctx, queues)
}

// SetJobParameter sets one named parameter of a job.
func (c *Connection) SetJobParameter(ctx context.Context, jobID, name, value string) error {
	if name == "" {
		return fmt.Errorf("%w: parameter name is empty", jobstore.ErrInvalidArgument)
	}
	return c.storage.store.UpdateJob(ctx, jobID, func(j *job.Job) error {
		if j.Parameters == nil {
			j.Parameters = make(map[string]string)
		}
		j.Parameters[name] = value
		return nil
	})
}

// GetJobParameter returns a named parameter. ok is false when the job or
// the parameter does not exist.
func (c *Connection) GetJobParameter(ctx context.Context, jobID, name string) (value string, ok bool, err error) {
	if name == "" {
		return "", false, fmt.Errorf("%w: parameter name is empty", jobstore.ErrInvalidArgument)
	}
	j, err := c.getJob(ctx, jobID)
	if err != nil || j == nil {
		return "", false, err
	}
	value, ok = j.Parameters[name]
	return value, ok, nil
}

// GetJobData returns the decoded job, or nil when it does not exist. A
// payload that cannot be decoded or resolved is reported through
// Data.LoadErr, not as an error.
func (c *Connection) GetJobData(ctx context.Context, jobID string) (*job.Data, error) {
	j, err := c.getJob(ctx, jobID)
	if err != nil || j == nil {
		return nil, err
	}
	return job.Decode(j, c.storage.resolver), nil
}

// GetStateData returns the most recent state of a job, or nil when the job
// does not exist or has no state yet.
func (c *Connection) GetStateData(ctx context.Context, jobID string) (*job.State, error) {
	j, err := c.getJob(ctx, jobID)
	if err != nil || j == nil {
		return nil, err
	}
	return j.LastState(), nil
}

func (c *Connection) getJob(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := c.storage.store.GetJob(ctx, jobID)
	if errors.Is(err, jobstore.ErrJobNotFound) {
		return nil, nil
	}
	return j, err
}

// ── Servers ──────────────────────────────────────────────────────

// AnnounceServer registers a server, or refreshes an existing one. The
// start time and heartbeat are set to now.
func (c *Connection) AnnounceServer(ctx context.Context, serverID string, workerCount int, queues []string) error {
	if serverID == "" {
		return fmt.Errorf("%w: server id is empty", jobstore.ErrInvalidArgument)
	}
	now := c.storage.now().UTC()
	return c.storage.store.AnnounceServer(ctx, &cluster.Server{
		ID: serverID,
		Info: cluster.Info{
			WorkerCount: workerCount,
			Queues:      slices.Clone(queues),
			StartedAt:   now,
		},
		LastHeartbeat: now,
	})
}

// RemoveServer deletes a server record. Unknown servers are ignored.
func (c *Connection) RemoveServer(ctx context.Context, serverID string) error {
	if serverID == "" {
		return fmt.Errorf("%w: server id is empty", jobstore.ErrInvalidArgument)
	}
	return c.storage.store.RemoveServer(ctx, serverID)
}

// Heartbeat marks a server alive. Unknown servers are ignored.
func (c *Connection) Heartbeat(ctx context.Context, serverID string) error {
	if serverID == "" {
		return fmt.Errorf("%w: server id is empty", jobstore.ErrInvalidArgument)
	}
	return c.storage.store.HeartbeatServer(ctx, serverID, c.storage.now().UTC())
}

// RemoveTimedOutServers deletes servers that have not heartbeated within
// timeout and returns how many were removed.
func (c *Connection) RemoveTimedOutServers(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout < 0 {
		return 0, fmt.Errorf("%w: timeout must be positive", jobstore.ErrInvalidArgument)
	}
	return c.storage.store.RemoveServersBefore(ctx, c.storage.now().UTC().Add(-timeout))
}

// ── Sets ─────────────────────────────────────────────────────────

// GetAllItemsFromSet returns the members of a set in insertion order.
func (c *Connection) GetAllItemsFromSet(ctx context.Context, key string) ([]string, error) {
	entries, err := c.setEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Value)
	}
	return out, nil
}

// GetFirstByLowestScoreFromSet returns the member with the lowest score in
// [from, to]. Ties go to the earliest inserted member.
func (c *Connection) GetFirstByLowestScoreFromSet(ctx context.Context, key string, from, to float64) (string, bool, error) {
	if to < from {
		return "", false, fmt.Errorf("%w: to score %v is below from score %v", jobstore.ErrInvalidRange, to, from)
	}
	entries, err := c.setEntries(ctx, key)
	if err != nil {
		return "", false, err
	}
	var best *kv.SetEntry
	for i := range entries {
		e := &entries[i]
		if e.Score < from || e.Score > to {
			continue
		}
		if best == nil || e.Score < best.Score {
			best = e
		}
	}
	if best == nil {
		return "", false, nil
	}
	return best.Value, true, nil
}

// GetSetCount returns the number of members of a set.
func (c *Connection) GetSetCount(ctx context.Context, key string) (int64, error) {
	entries, err := c.setEntries(ctx, key)
	return int64(len(entries)), err
}

// GetRangeFromSet returns the members at zero-based positions from..to,
// inclusive, in insertion order.
func (c *Connection) GetRangeFromSet(ctx context.Context, key string, from, to int) ([]string, error) {
	items, err := c.GetAllItemsFromSet(ctx, key)
	if err != nil {
		return nil, err
	}
	return window(items, from, to), nil
}

// GetSetTtl returns the time until the earliest member expiry, or NoTTL.
func (c *Connection) GetSetTtl(ctx context.Context, key string) (time.Duration, error) {
	entries, err := c.setEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	expiries := make([]*time.Time, 0, len(entries))
	for _, e := range entries {
		expiries = append(expiries, e.ExpireAt)
	}
	return c.ttl(expiries), nil
}

func (c *Connection) setEntries(ctx context.Context, key string) ([]kv.SetEntry, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}
	return c.storage.store.SetEntries(ctx, key)
}

// ── Counters ─────────────────────────────────────────────────────

// GetCounter returns the sum of every fine and aggregated row of key.
func (c *Connection) GetCounter(ctx context.Context, key string) (int64, error) {
	if err := requireKey(key); err != nil {
		return 0, err
	}
	return c.storage.store.CounterValue(ctx, key)
}

// ── Hashes ───────────────────────────────────────────────────────

// SetRangeInHash sets several fields of a hash through a one-off write
// transaction.
func (c *Connection) SetRangeInHash(ctx context.Context, key string, pairs map[string]string) error {
	tx := c.CreateWriteTransaction()
	if err := tx.SetRangeInHash(key, pairs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetAllEntriesFromHash returns every field of a hash, or nil when the hash
// has none.
func (c *Connection) GetAllEntriesFromHash(ctx context.Context, key string) (map[string]string, error) {
	entries, err := c.hashEntries(ctx, key)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Field] = e.Value
	}
	return out, nil
}

// GetHashCount returns the number of fields of a hash.
func (c *Connection) GetHashCount(ctx context.Context, key string) (int64, error) {
	entries, err := c.hashEntries(ctx, key)
	return int64(len(entries)), err
}

// GetHashTtl returns the time until the earliest field expiry, or NoTTL.
func (c *Connection) GetHashTtl(ctx context.Context, key string) (time.Duration, error) {
	entries, err := c.hashEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	expiries := make([]*time.Time, 0, len(entries))
	for _, e := range entries {
		expiries = append(expiries, e.ExpireAt)
	}
	return c.ttl(expiries), nil
}

// GetValueFromHash returns one field of a hash.
func (c *Connection) GetValueFromHash(ctx context.Context, key, field string) (string, bool, error) {
	if field == "" {
		return "", false, fmt.Errorf("%w: field is empty", jobstore.ErrInvalidArgument)
	}
	entries, err := c.hashEntries(ctx, key)
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Field == field {
			return e.Value, true, nil
		}
	}
	return "", false, nil
}

func (c *Connection) hashEntries(ctx context.Context, key string) ([]kv.HashEntry, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}
	return c.storage.store.HashEntries(ctx, key)
}

// ── Lists ────────────────────────────────────────────────────────

// GetListCount returns the number of elements of a list.
func (c *Connection) GetListCount(ctx context.Context, key string) (int64, error) {
	entries, err := c.listEntries(ctx, key)
	return int64(len(entries)), err
}

// GetListTtl returns the time until the earliest element expiry, or NoTTL.
func (c *Connection) GetListTtl(ctx context.Context, key string) (time.Duration, error) {
	entries, err := c.listEntries(ctx, key)
	if err != nil {
		return 0, err
	}
	expiries := make([]*time.Time, 0, len(entries))
	for _, e := range entries {
		expiries = append(expiries, e.ExpireAt)
	}
	return c.ttl(expiries), nil
}

// GetRangeFromList returns the elements at zero-based positions from..to,
// inclusive, counting from the most recently inserted.
func (c *Connection) GetRangeFromList(ctx context.Context, key string, from, to int) ([]string, error) {
	items, err := c.GetAllItemsFromList(ctx, key)
	if err != nil {
		return nil, err
	}
	return window(items, from, to), nil
}

// GetAllItemsFromList returns every element of a list, newest first.
func (c *Connection) GetAllItemsFromList(ctx context.Context, key string) ([]string, error) {
	entries, err := c.listEntries(ctx, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].Value)
	}
	return out, nil
}

func (c *Connection) listEntries(ctx context.Context, key string) ([]kv.ListEntry, error) {
	if err := requireKey(key); err != nil {
		return nil, err
	}
	return c.storage.store.ListEntries(ctx, key)
}

// ── Helpers ──────────────────────────────────────────────────────

// window returns items[from..to], clamped to the slice. An empty or
// inverted range yields an empty slice.
func window(items []string, from, to int) []string {
	from = max(from, 0)
	to = min(to, len(items)-1)
	if from > to {
		return []string{}
	}
	return items[from : to+1]
}

func (c *Connection) ttl(expiries []*time.Time) time.Duration {
	earliest := kv.MinExpiry(expiries...)
	if earliest == nil {
		return NoTTL
	}
	return earliest.Sub(c.storage.now())
}
