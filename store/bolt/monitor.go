package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/queue"
)

// QueueNames returns the sorted names of queues holding entries.
func (s *Store) QueueNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; {
			name, _, ok := splitKey(k)
			if !ok {
				return fmt.Errorf("malformed queue key %x", k)
			}
			names = append(names, name)
			next := prefixEnd(keyPrefix(name))
			if next == nil {
				break
			}
			k, _ = c.Seek(next)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: queue names: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// QueueEntries pages through available (or claimed) entries of a queue.
func (s *Store) QueueEntries(ctx context.Context, queueName string, fetched bool, from, count int) ([]*queue.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*queue.Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}
		skipped := 0
		return stopped(scanPrefix(b, keyPrefix(queueName), func(_, v []byte) error {
			var m queueEntryModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if (m.FetchedAt != nil) != fetched {
				return nil
			}
			if skipped < from {
				skipped++
				return nil
			}
			if len(out) >= count {
				return errStop
			}
			out = append(out, fromQueueEntryModel(&m))
			return nil
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: queue entries: %w", err)
	}
	return out, nil
}

// QueueCounts returns the available and claimed entry counts of a queue.
func (s *Store) QueueCounts(ctx context.Context, queueName string) (enqueued, fetched int64, err error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	err = s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.queue)
		if err != nil {
			return err
		}
		return scanPrefix(b, keyPrefix(queueName), func(_, v []byte) error {
			var m queueEntryModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if m.FetchedAt == nil {
				enqueued++
			} else {
				fetched++
			}
			return nil
		})
	})
	if err != nil {
		return 0, 0, fmt.Errorf("jobstore/bolt: queue counts: %w", err)
	}
	return enqueued, fetched, nil
}

// JobsByState pages through jobs in state, newest first, using the state
// index.
func (s *Store) JobsByState(ctx context.Context, state string, from, count int) ([]*job.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*job.Job
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx, err := bucket(tx, s.names.jobState)
		if err != nil {
			return err
		}
		jobs, err := bucket(tx, s.names.job)
		if err != nil {
			return err
		}
		skipped := 0
		return stopped(scanPrefixReverse(idx, keyPrefix(state), func(k, _ []byte) error {
			if skipped < from {
				skipped++
				return nil
			}
			if len(out) >= count {
				return errStop
			}
			_, suffix, ok := splitKey(k)
			if !ok || len(suffix) != 8 {
				return fmt.Errorf("malformed state index key %x", k)
			}
			m, err := getJob(jobs, binary.BigEndian.Uint64(suffix))
			if err != nil {
				return err
			}
			out = append(out, fromJobModel(m))
			return nil
		}))
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: jobs by state: %w", err)
	}
	return out, nil
}

// CountJobsByState returns the number of jobs in state.
func (s *Store) CountJobsByState(ctx context.Context, state string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		idx, err := bucket(tx, s.names.jobState)
		if err != nil {
			return err
		}
		return scanPrefix(idx, keyPrefix(state), func(_, _ []byte) error {
			n++
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("jobstore/bolt: count jobs by state: %w", err)
	}
	return n, nil
}
