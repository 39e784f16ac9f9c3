package bolt

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/jobstore/kv"
)

// ── Counters ─────────────────────────────────────────────────────

// CounterValue sums the fine-grained rows and the aggregated row of key.
func (s *Store) CounterValue(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var total int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		fine, err := bucket(tx, s.names.counter)
		if err != nil {
			return err
		}
		agg, err := bucket(tx, s.names.aggregated)
		if err != nil {
			return err
		}
		err = scanPrefix(fine, keyPrefix(key), func(_, v []byte) error {
			var m counterModel
			if err := decode(v, &m); err != nil {
				return err
			}
			total += m.Value
			return nil
		})
		if err != nil {
			return err
		}
		if v := agg.Get([]byte(key)); v != nil {
			var m counterModel
			if err := decode(v, &m); err != nil {
				return err
			}
			total += m.Value
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("jobstore/bolt: counter value: %w", err)
	}
	return total, nil
}

// InsertCounter appends a fine-grained counter row.
func (s *Store) InsertCounter(ctx context.Context, c kv.Counter) error {
	return s.update(ctx, "insert counter", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.counter)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encode(toCounterModel(c))
		if err != nil {
			return err
		}
		return b.Put(compositeKey(c.Key, u64(seq)), data)
	})
}

// ── Sets ─────────────────────────────────────────────────────────

// SetEntries returns the members of key in insertion order.
func (s *Store) SetEntries(ctx context.Context, key string) ([]kv.SetEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var models []setModel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.set)
		if err != nil {
			return err
		}
		return scanPrefix(b, keyPrefix(key), func(_, v []byte) error {
			var m setModel
			if err := decode(v, &m); err != nil {
				return err
			}
			models = append(models, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: set entries: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Seq < models[j].Seq })

	out := make([]kv.SetEntry, len(models))
	for i := range models {
		out[i] = fromSetModel(&models[i])
	}
	return out, nil
}

// UpsertSetEntry inserts a member or updates its score and expiry in place.
func (s *Store) UpsertSetEntry(ctx context.Context, e kv.SetEntry) error {
	return s.update(ctx, "upsert set entry", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.set)
		if err != nil {
			return err
		}
		key := compositeKey(e.Key, []byte(e.Value))

		m := setModel{Key: e.Key, Value: e.Value}
		if v := b.Get(key); v != nil {
			if err := decode(v, &m); err != nil {
				return err
			}
		} else if m.Seq, err = b.NextSequence(); err != nil {
			return err
		}
		m.Score = e.Score
		m.ExpireAt = utcPtr(e.ExpireAt)

		data, err := encode(&m)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// RemoveSetEntry deletes one member of key.
func (s *Store) RemoveSetEntry(ctx context.Context, key, value string) error {
	return s.update(ctx, "remove set entry", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.set)
		if err != nil {
			return err
		}
		return b.Delete(compositeKey(key, []byte(value)))
	})
}

// ── Lists ────────────────────────────────────────────────────────

// ListEntries returns the elements of key, oldest first.
func (s *Store) ListEntries(ctx context.Context, key string) ([]kv.ListEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []kv.ListEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.list)
		if err != nil {
			return err
		}
		return scanPrefix(b, keyPrefix(key), func(_, v []byte) error {
			var m listModel
			if err := decode(v, &m); err != nil {
				return err
			}
			out = append(out, fromListModel(&m))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: list entries: %w", err)
	}
	return out, nil
}

// InsertListEntry appends an element to key.
func (s *Store) InsertListEntry(ctx context.Context, e kv.ListEntry) error {
	return s.update(ctx, "insert list entry", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.list)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := encode(&listModel{Key: e.Key, Value: e.Value, ExpireAt: utcPtr(e.ExpireAt)})
		if err != nil {
			return err
		}
		return b.Put(compositeKey(e.Key, u64(seq)), data)
	})
}

// RemoveListValue deletes every element of key equal to value.
func (s *Store) RemoveListValue(ctx context.Context, key, value string) error {
	return s.update(ctx, "remove list value", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.list)
		if err != nil {
			return err
		}
		var doomed [][]byte
		err = scanPrefix(b, keyPrefix(key), func(k, v []byte) error {
			var m listModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if m.Value == value {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, doomed)
	})
}

// TrimList keeps the elements of key at insertion positions start..end
// (inclusive, zero-based) and deletes the rest.
func (s *Store) TrimList(ctx context.Context, key string, start, end int) error {
	return s.update(ctx, "trim list", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.list)
		if err != nil {
			return err
		}
		var doomed [][]byte
		pos := 0
		err = scanPrefix(b, keyPrefix(key), func(k, _ []byte) error {
			if pos < start || pos > end {
				doomed = append(doomed, append([]byte(nil), k...))
			}
			pos++
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, doomed)
	})
}

// ── Hashes ───────────────────────────────────────────────────────

// HashEntries returns the fields of key in insertion order.
func (s *Store) HashEntries(ctx context.Context, key string) ([]kv.HashEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var models []hashModel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.hash)
		if err != nil {
			return err
		}
		return scanPrefix(b, keyPrefix(key), func(_, v []byte) error {
			var m hashModel
			if err := decode(v, &m); err != nil {
				return err
			}
			models = append(models, m)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: hash entries: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Seq < models[j].Seq })

	out := make([]kv.HashEntry, len(models))
	for i := range models {
		out[i] = fromHashModel(&models[i])
	}
	return out, nil
}

// UpsertHashEntry sets a field of key, replacing any previous value.
func (s *Store) UpsertHashEntry(ctx context.Context, e kv.HashEntry) error {
	return s.update(ctx, "upsert hash entry", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.hash)
		if err != nil {
			return err
		}
		key := compositeKey(e.Key, []byte(e.Field))

		m := hashModel{Key: e.Key, Field: e.Field}
		if v := b.Get(key); v != nil {
			if err := decode(v, &m); err != nil {
				return err
			}
		} else if m.Seq, err = b.NextSequence(); err != nil {
			return err
		}
		m.Value = e.Value
		m.ExpireAt = utcPtr(e.ExpireAt)

		data, err := encode(&m)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// ── Key-wide operations ──────────────────────────────────────────

// RemoveKey deletes every row of key in collection kind.
func (s *Store) RemoveKey(ctx context.Context, kind kv.Kind, key string) error {
	name, err := s.names.forKind(kind)
	if err != nil {
		return err
	}
	return s.update(ctx, "remove "+string(kind), func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		var doomed [][]byte
		err = scanPrefix(b, keyPrefix(key), func(k, _ []byte) error {
			doomed = append(doomed, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		return deleteKeys(b, doomed)
	})
}

// SetKeyExpiry sets or clears the expiry of every row of key in kind.
func (s *Store) SetKeyExpiry(ctx context.Context, kind kv.Kind, key string, expireAt *time.Time) error {
	name, err := s.names.forKind(kind)
	if err != nil {
		return err
	}
	expireAt = utcPtr(expireAt)
	return s.update(ctx, "expire "+string(kind), func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		type rewrite struct {
			key, data []byte
		}
		var rewrites []rewrite
		err = scanPrefix(b, keyPrefix(key), func(k, v []byte) error {
			var doc bson.D
			if err := decode(v, &doc); err != nil {
				return err
			}
			data, err := encode(withExpiry(doc, expireAt))
			if err != nil {
				return err
			}
			rewrites = append(rewrites, rewrite{key: append([]byte(nil), k...), data: data})
			return nil
		})
		if err != nil {
			return err
		}
		for _, r := range rewrites {
			if err := b.Put(r.key, r.data); err != nil {
				return err
			}
		}
		return nil
	})
}

// withExpiry replaces the expire_at element of doc.
func withExpiry(doc bson.D, expireAt *time.Time) bson.D {
	out := doc[:0]
	for _, e := range doc {
		if e.Key != "expire_at" {
			out = append(out, e)
		}
	}
	if expireAt != nil {
		out = append(out, bson.E{Key: "expire_at", Value: *expireAt})
	}
	return out
}

// update runs fn in a write transaction and wraps its error with op.
func (s *Store) update(ctx context.Context, op string, fn func(tx *bbolt.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(fn); err != nil {
		return fmt.Errorf("jobstore/bolt: %s: %w", op, err)
	}
	return nil
}
