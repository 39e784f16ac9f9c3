package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/queue"
)

// Enqueue appends an available entry for jobID to queueName. Entries are
// keyed by queue name and sequence number, so a prefix scan of one queue
// yields its entries in FIFO order.
func (s *Store) Enqueue(ctx context.Context, queueName, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, s.names.queueIndex)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encode(&queueEntryModel{Seq: seq, JobID: jobID, Queue: queueName})
		if err != nil {
			return err
		}
		key := compositeKey(queueName, u64(seq))
		if err := b.Put(key, data); err != nil {
			return err
		}
		return idx.Put(u64(seq), key)
	})
	if err != nil {
		return fmt.Errorf("jobstore/bolt: enqueue: %w", err)
	}
	return nil
}

// ClaimNext claims one entry inside a single write transaction. bbolt runs
// one writer at a time, so the check that an entry is claimable and the
// stamp that claims it cannot interleave with another fetcher.
func (s *Store) ClaimNext(ctx context.Context, queues []string, at time.Time, invisibility time.Duration) (*queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var claimed *queue.Entry
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}

		available := func(m *queueEntryModel) bool { return m.FetchedAt == nil }
		cutoff := at.Add(-invisibility)
		stale := func(m *queueEntryModel) bool { return m.FetchedAt != nil && m.FetchedAt.Before(cutoff) }

		for pass, match := range []func(*queueEntryModel) bool{available, stale} {
			for _, q := range queues {
				key, m, err := firstMatching(b, q, match)
				if err != nil {
					return err
				}
				if m == nil {
					continue
				}
				stamp := at.UTC()
				m.FetchedAt = &stamp
				data, err := encode(m)
				if err != nil {
					return err
				}
				if err := b.Put(key, data); err != nil {
					return err
				}
				claimed = fromQueueEntryModel(m)
				claimed.Reclaimed = pass == 1
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: claim: %w", err)
	}
	return claimed, nil
}

// firstMatching returns the oldest entry of queueName accepted by match.
func firstMatching(b *bbolt.Bucket, queueName string, match func(*queueEntryModel) bool) ([]byte, *queueEntryModel, error) {
	var (
		key   []byte
		found *queueEntryModel
	)
	err := stopped(scanPrefix(b, keyPrefix(queueName), func(k, v []byte) error {
		var m queueEntryModel
		if err := decode(v, &m); err != nil {
			return err
		}
		if !match(&m) {
			return nil
		}
		key = append([]byte(nil), k...)
		found = &m
		return errStop
	}))
	if err != nil {
		return nil, nil, err
	}
	return key, found, nil
}

// AcknowledgeEntry deletes a claimed entry. Missing entries are ignored.
func (s *Store) AcknowledgeEntry(ctx context.Context, entryID string) error {
	return s.withEntry(ctx, "acknowledge", entryID, func(b, idx *bbolt.Bucket, key []byte, _ *queueEntryModel) error {
		if err := b.Delete(key); err != nil {
			return err
		}
		seq, _ := job.ParseID(entryID)
		return idx.Delete(u64(seq))
	})
}

// ReleaseEntry clears FetchedAt. Missing entries are ignored.
func (s *Store) ReleaseEntry(ctx context.Context, entryID string) error {
	return s.withEntry(ctx, "release", entryID, func(b, _ *bbolt.Bucket, key []byte, m *queueEntryModel) error {
		m.FetchedAt = nil
		data, err := encode(m)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

func (s *Store) withEntry(ctx context.Context, op, entryID string, fn func(b, idx *bbolt.Bucket, key []byte, m *queueEntryModel) error) error {
	seq, err := job.ParseID(entryID)
	if err != nil {
		return fmt.Errorf("%w: queue entry id %q", jobstore.ErrInvalidArgument, entryID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}
		idx, err := bucket(tx, s.names.queueIndex)
		if err != nil {
			return err
		}
		key := idx.Get(u64(seq))
		if key == nil {
			return nil
		}
		key = append([]byte(nil), key...)
		v := b.Get(key)
		if v == nil {
			return idx.Delete(u64(seq))
		}
		var m queueEntryModel
		if err := decode(v, &m); err != nil {
			return err
		}
		return fn(b, idx, key, &m)
	})
	if err != nil {
		return fmt.Errorf("jobstore/bolt: %s entry: %w", op, err)
	}
	return nil
}
