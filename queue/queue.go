package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-queue claim limits for the local process.
type Config struct {
	// Name is the queue identifier.
	Name string

	// MaxConcurrency limits how many claims on this queue this process may
	// hold at once. Zero means no limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained claims per second on this queue.
	// Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// queueState tracks runtime state for a single queue.
type queueState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

// Manager controls per-queue claim rate and concurrency. A fetcher asks it
// which queues may be claimed from this round; queues over their limit are
// skipped. It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*queueState
}

// NewManager creates a Manager with the given queue configurations.
// Queues not listed here have no limits.
func NewManager(configs ...Config) *Manager {
	m := &Manager{
		queues: make(map[string]*queueState, len(configs)),
	}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newQueueState(cfg)
	}
	return m
}

func newQueueState(cfg Config) *queueState {
	qs := &queueState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		qs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return qs
}

// Available returns the subset of queues, in the given order, that may be
// claimed from right now. A nil Manager allows every queue.
func (m *Manager) Available(queues []string) []string {
	if m == nil {
		return queues
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(queues))
	for _, q := range queues {
		qs := m.queues[q]
		if qs != nil {
			if qs.limiter != nil && qs.limiter.Tokens() < 1 {
				continue
			}
			if qs.config.MaxConcurrency > 0 && qs.active >= qs.config.MaxConcurrency {
				continue
			}
		}
		out = append(out, q)
	}
	return out
}

// Acquire charges a claim on queue against its limits. The caller MUST
// call Release when the claim ends. Acquire never refuses: by the time it
// runs the entry is already claimed, so a concurrent overdraw is absorbed
// by the next Available check.
func (m *Manager) Acquire(queue string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil {
		if qs.limiter != nil {
			qs.limiter.Allow()
		}
		qs.active++
	}
}

// Release decrements the active claim count for the queue.
func (m *Manager) Release(queue string) {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if qs := m.queues[queue]; qs != nil && qs.active > 0 {
		qs.active--
	}
}

// SetQueueConfig dynamically updates (or creates) a queue configuration.
func (m *Manager) SetQueueConfig(cfg Config) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.queues[cfg.Name]
	qs := newQueueState(cfg)

	// Preserve current active count if reconfiguring.
	if existing != nil {
		qs.active = existing.active
	}
	m.queues[cfg.Name] = qs
}

// ActiveCount returns the current number of held claims for a queue.
func (m *Manager) ActiveCount(queue string) int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if qs := m.queues[queue]; qs != nil {
		return qs.active
	}
	return 0
}
