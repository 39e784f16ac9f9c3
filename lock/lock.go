package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/backoff"
)

// Locker acquires distributed locks on behalf of one owner. Acquisitions
// of a resource the owner already holds are counted rather than re-taken,
// and the lock row is released when the last handle is released. While a
// resource is held its expiry is renewed every ttl/2.
type Locker struct {
	store    Store
	owner    string
	ttl      time.Duration
	strategy backoff.Strategy
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	held map[string]*holding
}

type holding struct {
	count int
	stop  chan struct{}
	done  chan struct{}
}

// Option configures a Locker.
type Option func(*Locker)

// WithStrategy sets the delay between acquisition attempts.
func WithStrategy(s backoff.Strategy) Option {
	return func(l *Locker) { l.strategy = s }
}

// WithLogger sets the logger used for renewal failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locker) { l.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Locker) { l.now = now }
}

// NewLocker creates a Locker for owner. ttl bounds how long a crashed
// owner's locks block others.
func NewLocker(store Store, owner string, ttl time.Duration, opts ...Option) *Locker {
	l := &Locker{
		store:    store,
		owner:    owner,
		ttl:      ttl,
		strategy: backoff.LockStrategy(),
		logger:   slog.Default(),
		now:      time.Now,
		held:     make(map[string]*holding),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Owner returns the owner token written to lock rows.
func (l *Locker) Owner() string { return l.owner }

// Acquire takes resource, retrying until timeout elapses. It returns an
// error wrapping jobstore.ErrLockTimeout when the resource stayed busy.
func (l *Locker) Acquire(ctx context.Context, resource string, timeout time.Duration) (*Lock, error) {
	if resource == "" {
		return nil, fmt.Errorf("%w: lock resource is empty", jobstore.ErrInvalidArgument)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: lock timeout is negative", jobstore.ErrInvalidArgument)
	}

	l.mu.Lock()
	if h, ok := l.held[resource]; ok {
		h.count++
		l.mu.Unlock()
		return &Lock{locker: l, resource: resource}, nil
	}
	l.mu.Unlock()

	deadline := l.now().Add(timeout)
	for attempt := 1; ; attempt++ {
		ok, err := l.store.TryAcquireLock(ctx, resource, l.owner, l.now().UTC(), l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", resource, err)
		}
		if ok {
			l.hold(resource)
			return &Lock{locker: l, resource: resource}, nil
		}

		remaining := deadline.Sub(l.now())
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: resource %q", jobstore.ErrLockTimeout, resource)
		}
		if err := backoff.Sleep(ctx, min(l.strategy.Delay(attempt), remaining)); err != nil {
			return nil, err
		}
	}
}

func (l *Locker) hold(resource string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[resource]; ok {
		h.count++
		return
	}
	h := &holding{count: 1, stop: make(chan struct{}), done: make(chan struct{})}
	l.held[resource] = h
	go l.renew(resource, h)
}

// renew keeps the lock row alive until stop is closed.
func (l *Locker) renew(resource string, h *holding) {
	defer close(h.done)

	interval := l.ttl / 2
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ok, err := l.store.TryAcquireLock(context.Background(), resource, l.owner, l.now().UTC(), l.ttl)
			if err != nil {
				l.logger.Error("lock renewal failed",
					slog.String("resource", resource),
					slog.String("error", err.Error()),
				)
				continue
			}
			if !ok {
				l.logger.Warn("lock lost to another owner", slog.String("resource", resource))
				return
			}
		}
	}
}

func (l *Locker) release(ctx context.Context, resource string) error {
	l.mu.Lock()
	h, ok := l.held[resource]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("%w: resource %q", jobstore.ErrLockNotHeld, resource)
	}
	h.count--
	if h.count > 0 {
		l.mu.Unlock()
		return nil
	}
	delete(l.held, resource)
	l.mu.Unlock()

	close(h.stop)
	<-h.done

	released, err := l.store.ReleaseLock(ctx, resource, l.owner)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", resource, err)
	}
	if !released {
		return fmt.Errorf("%w: resource %q expired before release", jobstore.ErrLockNotHeld, resource)
	}
	return nil
}

// Lock is one acquisition of a resource. Release it exactly once; Close is
// Release with a background context so it can be deferred.
type Lock struct {
	locker   *Locker
	resource string

	once sync.Once
	err  error
}

// Resource returns the locked resource name.
func (k *Lock) Resource() string { return k.resource }

// Release gives up this acquisition. Further calls return the first result.
func (k *Lock) Release(ctx context.Context) error {
	k.once.Do(func() {
		k.err = k.locker.release(ctx, k.resource)
	})
	return k.err
}

// Close releases the lock.
func (k *Lock) Close() error {
	return k.Release(context.Background())
}
