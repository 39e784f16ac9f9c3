package cluster

import (
	"context"
	"time"
)

// Store defines the persistence contract for server registration.
type Store interface {
	// AnnounceServer inserts s, or replaces the info and heartbeat of an
	// existing server with the same ID.
	AnnounceServer(ctx context.Context, s *Server) error

	// HeartbeatServer sets the last heartbeat of a server. Unknown servers
	// are ignored.
	HeartbeatServer(ctx context.Context, serverID string, at time.Time) error

	// RemoveServer deletes a server. Unknown servers are ignored.
	RemoveServer(ctx context.Context, serverID string) error

	// RemoveServersBefore deletes every server whose last heartbeat is
	// before cutoff and returns how many were removed.
	RemoveServersBefore(ctx context.Context, cutoff time.Time) (int, error)

	// ListServers returns all registered servers.
	ListServers(ctx context.Context) ([]*Server, error)
}
