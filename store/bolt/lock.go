package bolt

import (
	"context"
	"time"

	"go.etcd.io/bbolt"
)

// TryAcquireLock writes the lock row for resource when it is free, expired
// or already owned by owner.
func (s *Store) TryAcquireLock(ctx context.Context, resource, owner string, at time.Time, ttl time.Duration) (bool, error) {
	var acquired bool
	err := s.update(ctx, "acquire lock", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.locks)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(resource)); v != nil {
			var m lockModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if m.Owner != owner && m.ExpireAt.After(at) {
				return nil
			}
		}
		data, err := encode(&lockModel{Resource: resource, Owner: owner, ExpireAt: at.Add(ttl).UTC()})
		if err != nil {
			return err
		}
		acquired = true
		return b.Put([]byte(resource), data)
	})
	return acquired, err
}

// ReleaseLock deletes the lock row if owner still holds it.
func (s *Store) ReleaseLock(ctx context.Context, resource, owner string) (bool, error) {
	var released bool
	err := s.update(ctx, "release lock", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.locks)
		if err != nil {
			return err
		}
		v := b.Get([]byte(resource))
		if v == nil {
			return nil
		}
		var m lockModel
		if err := decode(v, &m); err != nil {
			return err
		}
		if m.Owner != owner {
			return nil
		}
		released = true
		return b.Delete([]byte(resource))
	})
	return released, err
}
