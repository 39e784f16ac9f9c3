package bolt

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// openTimeout bounds how long Open waits for another process's file lock.
const openTimeout = time.Second

// Registry shares one database handle per file path within a process.
// bbolt takes an exclusive file lock, so a second bbolt.Open of the same
// path in the same process would block; the registry hands out counted
// shares instead and closes the file when the last share is released.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle
}

type handle struct {
	db   *bbolt.DB
	refs int
}

// DefaultRegistry is the process-wide registry used by Open.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*handle)}
}

// Open returns a Store over the database at path, opening the file on first
// use. The Store's Close releases its share.
func (r *Registry) Open(path string, opts ...Option) (*Store, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("jobstore/bolt: resolve path %q: %w", path, err)
	}
	key = filepath.Clean(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[key]
	if !ok {
		db, err := bbolt.Open(key, 0o600, &bbolt.Options{Timeout: openTimeout})
		if err != nil {
			return nil, fmt.Errorf("jobstore/bolt: open %q: %w", key, err)
		}
		h = &handle{db: db}
		r.handles[key] = h
	}
	h.refs++

	s := New(h.db, opts...)
	var once sync.Once
	s.release = func() error {
		var err error
		once.Do(func() { err = r.release(key) })
		return err
	}
	return s, nil
}

// Len returns the number of open database files.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

func (r *Registry) release(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[key]
	if !ok {
		return nil
	}
	h.refs--
	if h.refs > 0 {
		return nil
	}
	delete(r.handles, key)
	if err := h.db.Close(); err != nil {
		return fmt.Errorf("jobstore/bolt: close %q: %w", key, err)
	}
	return nil
}
