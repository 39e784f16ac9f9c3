package txn

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{jobstore.ErrInvalidArgument}, args...)...)
}

func requireJobID(jobID string) error {
	if _, err := job.ParseID(jobID); err != nil {
		return err
	}
	return nil
}

func requireKey(key string) error {
	if key == "" {
		return invalid("key is empty")
	}
	return nil
}

func (t *Transaction) expiry(d time.Duration) *time.Time {
	at := t.now().UTC().Add(d)
	return &at
}

// ── Jobs ─────────────────────────────────────────────────────────

// ExpireJob sets the job to expire expireIn after the command runs.
func (t *Transaction) ExpireJob(jobID string, expireIn time.Duration) error {
	if err := requireJobID(jobID); err != nil {
		return err
	}
	return t.Queue("expire job", func(ctx context.Context, s Store) error {
		return s.UpdateJob(ctx, jobID, func(j *job.Job) error {
			j.ExpireAt = t.expiry(expireIn)
			return nil
		})
	})
}

// PersistJob clears the job's expiry.
func (t *Transaction) PersistJob(jobID string) error {
	if err := requireJobID(jobID); err != nil {
		return err
	}
	return t.Queue("persist job", func(ctx context.Context, s Store) error {
		return s.UpdateJob(ctx, jobID, func(j *job.Job) error {
			j.ExpireAt = nil
			return nil
		})
	})
}

// SetJobState moves the job into state and records it in the history.
func (t *Transaction) SetJobState(jobID string, state job.State) error {
	return t.appendState("set job state", jobID, state)
}

// AddJobState records state in the job's history. The current state name
// follows the last recorded entry.
func (t *Transaction) AddJobState(jobID string, state job.State) error {
	return t.appendState("add job state", jobID, state)
}

func (t *Transaction) appendState(name, jobID string, state job.State) error {
	if err := requireJobID(jobID); err != nil {
		return err
	}
	if state.Name == "" {
		return invalid("state name is empty")
	}
	return t.Queue(name, func(ctx context.Context, s Store) error {
		return s.UpdateJob(ctx, jobID, func(j *job.Job) error {
			st := state
			if st.CreatedAt.IsZero() {
				st.CreatedAt = t.now().UTC()
			}
			j.AppendState(st)
			return nil
		})
	})
}

// AddToQueue appends the job to queue.
func (t *Transaction) AddToQueue(queue, jobID string) error {
	if queue == "" {
		return invalid("queue name is empty")
	}
	if err := requireJobID(jobID); err != nil {
		return err
	}
	return t.Queue("add to queue", func(ctx context.Context, s Store) error {
		return s.Enqueue(ctx, queue, jobID)
	})
}

// ── Counters ─────────────────────────────────────────────────────

// IncrementCounter adds 1 to key.
func (t *Transaction) IncrementCounter(key string) error {
	return t.counter("increment counter", key, 1, nil)
}

// IncrementCounterFor adds 1 to key with a row that expires after expireIn.
func (t *Transaction) IncrementCounterFor(key string, expireIn time.Duration) error {
	return t.counter("increment counter", key, 1, &expireIn)
}

// DecrementCounter subtracts 1 from key.
func (t *Transaction) DecrementCounter(key string) error {
	return t.counter("decrement counter", key, -1, nil)
}

// DecrementCounterFor subtracts 1 from key with a row that expires after
// expireIn.
func (t *Transaction) DecrementCounterFor(key string, expireIn time.Duration) error {
	return t.counter("decrement counter", key, -1, &expireIn)
}

func (t *Transaction) counter(name, key string, delta int64, expireIn *time.Duration) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue(name, func(ctx context.Context, s Store) error {
		c := kv.Counter{Key: key, Value: delta}
		if expireIn != nil {
			c.ExpireAt = t.expiry(*expireIn)
		}
		return s.InsertCounter(ctx, c)
	})
}

// ── Sets ─────────────────────────────────────────────────────────

// AddToSet adds value to the set with score 0.
func (t *Transaction) AddToSet(key, value string) error {
	return t.AddToSetWithScore(key, value, 0)
}

// AddToSetWithScore adds value to the set or updates its score. The
// member's expiry is cleared.
func (t *Transaction) AddToSetWithScore(key, value string, score float64) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("add to set", func(ctx context.Context, s Store) error {
		return s.UpsertSetEntry(ctx, kv.SetEntry{Key: key, Value: value, Score: score})
	})
}

// AddRangeToSet adds every item to the set with score 0.
func (t *Transaction) AddRangeToSet(key string, items []string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	if items == nil {
		return invalid("items are nil")
	}
	for _, item := range items {
		if err := t.AddToSet(key, item); err != nil {
			return err
		}
	}
	return nil
}

// RemoveFromSet removes value from the set.
func (t *Transaction) RemoveFromSet(key, value string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("remove from set", func(ctx context.Context, s Store) error {
		return s.RemoveSetEntry(ctx, key, value)
	})
}

// RemoveSet removes every member of the set.
func (t *Transaction) RemoveSet(key string) error {
	return t.removeKey(kv.KindSet, key)
}

// ExpireSet sets every member of the set to expire after expireIn.
func (t *Transaction) ExpireSet(key string, expireIn time.Duration) error {
	return t.expireKey(kv.KindSet, key, &expireIn)
}

// PersistSet clears the expiry of every member of the set.
func (t *Transaction) PersistSet(key string) error {
	return t.expireKey(kv.KindSet, key, nil)
}

// ── Lists ────────────────────────────────────────────────────────

// InsertToList appends value to the list.
func (t *Transaction) InsertToList(key, value string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("insert to list", func(ctx context.Context, s Store) error {
		return s.InsertListEntry(ctx, kv.ListEntry{Key: key, Value: value})
	})
}

// RemoveFromList removes every element equal to value.
func (t *Transaction) RemoveFromList(key, value string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("remove from list", func(ctx context.Context, s Store) error {
		return s.RemoveListValue(ctx, key, value)
	})
}

// TrimList keeps the elements at insertion positions keepFrom..keepTo
// (inclusive, zero-based) and removes the rest.
func (t *Transaction) TrimList(key string, keepFrom, keepTo int) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("trim list", func(ctx context.Context, s Store) error {
		return s.TrimList(ctx, key, keepFrom, keepTo)
	})
}

// ExpireList sets every element of the list to expire after expireIn.
func (t *Transaction) ExpireList(key string, expireIn time.Duration) error {
	return t.expireKey(kv.KindList, key, &expireIn)
}

// PersistList clears the expiry of every element of the list.
func (t *Transaction) PersistList(key string) error {
	return t.expireKey(kv.KindList, key, nil)
}

// ── Hashes ───────────────────────────────────────────────────────

// SetRangeInHash sets every field in pairs. Each field is one command.
func (t *Transaction) SetRangeInHash(key string, pairs map[string]string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	if pairs == nil {
		return invalid("hash pairs are nil")
	}
	for field, value := range pairs {
		e := kv.HashEntry{Key: key, Field: field, Value: value}
		err := t.Queue("set hash field", func(ctx context.Context, s Store) error {
			return s.UpsertHashEntry(ctx, e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// RemoveHash removes every field of the hash.
func (t *Transaction) RemoveHash(key string) error {
	return t.removeKey(kv.KindHash, key)
}

// ExpireHash sets every field of the hash to expire after expireIn.
func (t *Transaction) ExpireHash(key string, expireIn time.Duration) error {
	return t.expireKey(kv.KindHash, key, &expireIn)
}

// PersistHash clears the expiry of every field of the hash.
func (t *Transaction) PersistHash(key string) error {
	return t.expireKey(kv.KindHash, key, nil)
}

// ── Key-wide helpers ─────────────────────────────────────────────

func (t *Transaction) removeKey(kind kv.Kind, key string) error {
	if err := requireKey(key); err != nil {
		return err
	}
	return t.Queue("remove "+string(kind), func(ctx context.Context, s Store) error {
		return s.RemoveKey(ctx, kind, key)
	})
}

func (t *Transaction) expireKey(kind kv.Kind, key string, expireIn *time.Duration) error {
	if err := requireKey(key); err != nil {
		return err
	}
	name := "persist " + string(kind)
	if expireIn != nil {
		name = "expire " + string(kind)
	}
	return t.Queue(name, func(ctx context.Context, s Store) error {
		var at *time.Time
		if expireIn != nil {
			at = t.expiry(*expireIn)
		}
		return s.SetKeyExpiry(ctx, kind, key, at)
	})
}
