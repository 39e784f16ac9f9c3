package bolt

import (
	"context"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/maintenance"
)

// DeleteExpired removes rows of collection that expired before at.
func (s *Store) DeleteExpired(ctx context.Context, collection maintenance.Collection, at time.Time) (int, error) {
	name, err := s.names.forCollection(collection)
	if err != nil {
		return 0, err
	}

	var removed int
	err = s.update(ctx, "delete expired "+string(collection), func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}

		if collection == maintenance.CollectionJobs {
			var doomed []*jobModel
			err := b.ForEach(func(_, v []byte) error {
				var m jobModel
				if err := decode(v, &m); err != nil {
					return err
				}
				if m.ExpireAt != nil && m.ExpireAt.Before(at) {
					doomed = append(doomed, &m)
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, m := range doomed {
				if err := s.deleteJob(tx, b, m); err != nil {
					return err
				}
			}
			removed = len(doomed)
			return nil
		}

		var doomed [][]byte
		err = b.ForEach(func(k, v []byte) error {
			var m expiryModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if m.ExpireAt != nil && m.ExpireAt.Before(at) {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		removed = len(doomed)
		return deleteKeys(b, doomed)
	})
	return removed, err
}

// AggregateCounters reads up to limit fine counter rows, deletes them and
// adds their folded sums into the aggregated rows, all in one write
// transaction, so no reader ever observes a counter with rows missing from
// both collections.
func (s *Store) AggregateCounters(ctx context.Context, limit int) (int, error) {
	var consumed int
	err := s.update(ctx, "aggregate counters", func(tx *bbolt.Tx) error {
		fine, err := bucket(tx, s.names.counter)
		if err != nil {
			return err
		}
		agg, err := bucket(tx, s.names.aggregated)
		if err != nil {
			return err
		}

		var (
			keys [][]byte
			rows []kv.Counter
		)
		c := fine.Cursor()
		for k, v := c.First(); k != nil && len(rows) < limit; k, v = c.Next() {
			var m counterModel
			if err := decode(v, &m); err != nil {
				return err
			}
			keys = append(keys, append([]byte(nil), k...))
			rows = append(rows, fromCounterModel(&m))
		}
		if err := deleteKeys(fine, keys); err != nil {
			return err
		}

		for _, group := range kv.Fold(rows) {
			merged := group
			if v := agg.Get([]byte(group.Key)); v != nil {
				var m counterModel
				if err := decode(v, &m); err != nil {
					return err
				}
				merged.Value += m.Value
				merged.ExpireAt = kv.MergeExpiry(m.ExpireAt, group.ExpireAt)
			}
			data, err := encode(toCounterModel(merged))
			if err != nil {
				return err
			}
			if err := agg.Put([]byte(group.Key), data); err != nil {
				return err
			}
		}
		consumed = len(rows)
		return nil
	})
	return consumed, err
}
