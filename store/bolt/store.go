package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/cluster"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/maintenance"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/queue"
	"github.com/xraph/jobstore/store"
)

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ job.Store         = (*Store)(nil)
	_ queue.Store       = (*Store)(nil)
	_ kv.Store          = (*Store)(nil)
	_ cluster.Store     = (*Store)(nil)
	_ lock.Store        = (*Store)(nil)
	_ monitor.Store     = (*Store)(nil)
	_ monitor.Source    = (*Store)(nil)
	_ maintenance.Store = (*Store)(nil)
	_ store.Store       = (*Store)(nil)
)

// errNotMigrated is returned when a collection bucket is missing.
var errNotMigrated = errors.New("collection missing, run Migrate")

// Store is a bbolt implementation of store.Store. Every collection is a
// bucket named "<prefix>_<collection>"; documents are BSON encoded.
type Store struct {
	db      *bbolt.DB
	names   bucketNames
	logger  *slog.Logger
	release func() error
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithPrefix sets the collection name prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.names = newBucketNames(prefix)
	}
}

// New creates a Store over an open database. The caller owns the db
// lifecycle; Close does not close it.
func New(db *bbolt.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		names:  newBucketNames(jobstore.DefaultPrefix),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns a Store over the database file at path, sharing one handle
// per path through DefaultRegistry. Close releases the share.
func Open(path string, opts ...Option) (*Store, error) {
	return DefaultRegistry.Open(path, opts...)
}

// DB returns the underlying *bbolt.DB for advanced usage.
func (s *Store) DB() *bbolt.DB {
	return s.db
}

// Prefix returns the collection name prefix.
func (s *Store) Prefix() string {
	return s.names.prefix
}

// Migrate creates every collection and index bucket.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range s.names.all() {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: jobstore/bolt: %w", jobstore.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks that the database is open and every collection exists.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(tx *bbolt.Tx) error {
		for _, name := range s.names.all() {
			if tx.Bucket(name) == nil {
				return fmt.Errorf("jobstore/bolt: ping: %s: %w", name, errNotMigrated)
			}
		}
		return nil
	})
}

// Close releases this Store's share of a registry handle. Stores built
// with New leave the database open.
func (s *Store) Close() error {
	if s.release == nil {
		return nil
	}
	release := s.release
	s.release = nil
	return release()
}

// ── bucket names ─────────────────────────────────────────────────

type bucketNames struct {
	prefix     string
	job        []byte
	jobState   []byte
	queue      []byte
	queueIndex []byte
	counter    []byte
	aggregated []byte
	set        []byte
	list       []byte
	hash       []byte
	server     []byte
	locks      []byte
}

func newBucketNames(prefix string) bucketNames {
	name := func(s string) []byte { return []byte(prefix + "_" + s) }
	return bucketNames{
		prefix:     prefix,
		job:        name("job"),
		jobState:   name("job_state"),
		queue:      name("jobQueue"),
		queueIndex: name("jobQueue_id"),
		counter:    name("counter"),
		aggregated: name("aggregatedcounter"),
		set:        name("set"),
		list:       name("list"),
		hash:       name("hash"),
		server:     name("server"),
		locks:      name("locks"),
	}
}

func (n bucketNames) all() [][]byte {
	return [][]byte{
		n.job, n.jobState, n.queue, n.queueIndex, n.counter, n.aggregated,
		n.set, n.list, n.hash, n.server, n.locks,
	}
}

func (n bucketNames) forKind(kind kv.Kind) ([]byte, error) {
	switch kind {
	case kv.KindSet:
		return n.set, nil
	case kv.KindList:
		return n.list, nil
	case kv.KindHash:
		return n.hash, nil
	default:
		return nil, fmt.Errorf("%w: unknown collection kind %q", jobstore.ErrInvalidArgument, kind)
	}
}

func (n bucketNames) forCollection(c maintenance.Collection) ([]byte, error) {
	switch c {
	case maintenance.CollectionJobs:
		return n.job, nil
	case maintenance.CollectionAggregatedCounters:
		return n.aggregated, nil
	case maintenance.CollectionCounters:
		return n.counter, nil
	case maintenance.CollectionHashes:
		return n.hash, nil
	case maintenance.CollectionSets:
		return n.set, nil
	case maintenance.CollectionLists:
		return n.list, nil
	default:
		return nil, fmt.Errorf("%w: unknown collection %q", jobstore.ErrInvalidArgument, c)
	}
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s: %w", name, errNotMigrated)
	}
	return b, nil
}

// u64 encodes a sequence number so byte order matches numeric order.
func u64(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// keyPrefix length-prefixes a user key so that no key is a prefix of
// another key's rows.
func keyPrefix(key string) []byte {
	b := binary.AppendUvarint(make([]byte, 0, len(key)+binary.MaxVarintLen64), uint64(len(key)))
	return append(b, key...)
}

// compositeKey joins a user key with a suffix.
func compositeKey(key string, suffix []byte) []byte {
	return append(keyPrefix(key), suffix...)
}

// splitKey returns the user key of a composite key.
func splitKey(k []byte) (string, []byte, bool) {
	n, w := binary.Uvarint(k)
	if w <= 0 || uint64(len(k)-w) < n {
		return "", nil, false
	}
	end := w + int(n)
	return string(k[w:end]), k[end:], true
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// scanPrefix calls fn for every key starting with prefix, in key order.
func scanPrefix(b *bbolt.Bucket, prefix []byte, fn func(k, v []byte) error) error {
	c := b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// scanPrefixReverse calls fn for every key starting with prefix, in
// reverse key order.
func scanPrefixReverse(b *bbolt.Bucket, prefix []byte, fn func(k, v []byte) error) error {
	c := b.Cursor()
	var k, v []byte
	if end := prefixEnd(prefix); end == nil {
		k, v = c.Last()
	} else if k, v = c.Seek(end); k == nil {
		k, v = c.Last()
	} else {
		k, v = c.Prev()
	}
	for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Prev() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// errStop ends a scan early without reporting an error.
var errStop = errors.New("stop scan")

// stopped clears errStop from a scan result.
func stopped(err error) error {
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

func encode(doc any) ([]byte, error) {
	return bson.Marshal(doc)
}

// decode unmarshals a bucket value. Values are only valid for the life of
// the transaction, so the bytes are copied first.
func decode(v []byte, doc any) error {
	return bson.Unmarshal(bytes.Clone(v), doc)
}

// deleteKeys removes keys collected during a scan.
func deleteKeys(b *bbolt.Bucket, keys [][]byte) error {
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
