package bolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/xraph/jobstore/cluster"
)

// AnnounceServer inserts or replaces a server record.
func (s *Store) AnnounceServer(ctx context.Context, srv *cluster.Server) error {
	return s.update(ctx, "announce server", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.server)
		if err != nil {
			return err
		}
		data, err := encode(toServerModel(srv))
		if err != nil {
			return err
		}
		return b.Put([]byte(srv.ID), data)
	})
}

// HeartbeatServer sets the last heartbeat of a known server.
func (s *Store) HeartbeatServer(ctx context.Context, serverID string, at time.Time) error {
	return s.update(ctx, "heartbeat server", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.server)
		if err != nil {
			return err
		}
		v := b.Get([]byte(serverID))
		if v == nil {
			return nil
		}
		var m serverModel
		if err := decode(v, &m); err != nil {
			return err
		}
		m.LastHeartbeat = at.UTC()
		data, err := encode(&m)
		if err != nil {
			return err
		}
		return b.Put([]byte(serverID), data)
	})
}

// RemoveServer deletes a server record.
func (s *Store) RemoveServer(ctx context.Context, serverID string) error {
	return s.update(ctx, "remove server", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.server)
		if err != nil {
			return err
		}
		return b.Delete([]byte(serverID))
	})
}

// RemoveServersBefore deletes servers whose last heartbeat is before cutoff.
func (s *Store) RemoveServersBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var removed int
	err := s.update(ctx, "remove timed out servers", func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.server)
		if err != nil {
			return err
		}
		var doomed [][]byte
		err = b.ForEach(func(k, v []byte) error {
			var m serverModel
			if err := decode(v, &m); err != nil {
				return err
			}
			if m.LastHeartbeat.Before(cutoff) {
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

// ListServers returns every registered server ordered by ID.
func (s *Store) ListServers(ctx context.Context) ([]*cluster.Server, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*cluster.Server
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, s.names.server)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var m serverModel
			if err := decode(v, &m); err != nil {
				return err
			}
			out = append(out, fromServerModel(&m))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: list servers: %w", err)
	}
	return out, nil
}
