package cluster

import "time"

// Info is the metadata a server announces about itself.
type Info struct {
	WorkerCount int       `json:"worker_count"`
	Queues      []string  `json:"queues"`
	StartedAt   time.Time `json:"started_at"`
}

// Server is a registered processing server.
type Server struct {
	ID            string    `json:"id"`
	Info          Info      `json:"info"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Alive reports whether the server heartbeated within timeout of now.
func (s *Server) Alive(now time.Time, timeout time.Duration) bool {
	return !s.LastHeartbeat.Before(now.Add(-timeout))
}
