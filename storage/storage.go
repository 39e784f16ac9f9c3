package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/id"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/lock"
	"github.com/xraph/jobstore/maintenance"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/observability"
	"github.com/xraph/jobstore/queue"
	"github.com/xraph/jobstore/store"
	"github.com/xraph/jobstore/store/bolt"
)

// Storage wires a store.Store to the claim protocol, the monitoring
// projections and the maintenance processes. One Storage is shared by every
// connection of a process.
type Storage struct {
	store    store.Store
	config   jobstore.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	limits   *queue.Manager
	resolver job.Resolver
	codec    job.Codec
	now      func() time.Time

	fetcher    *queue.Fetcher
	monitoring *monitor.API
	components []maintenance.Process
}

// Open opens (or shares) the database file at path and returns a Storage
// over it. The file is created and migrated when needed; a locked or
// corrupt file fails here.
func Open(path string, opts ...Option) (*Storage, error) {
	s, err := newStorage(opts)
	if err != nil {
		return nil, err
	}
	st, err := bolt.Open(path,
		bolt.WithPrefix(s.config.Prefix),
		bolt.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	if err := s.init(st); err != nil {
		_ = st.Close()
		return nil, err
	}
	return s, nil
}

// New returns a Storage over an existing store and migrates it. The
// store's collection prefix is its own; Config.Prefix is not applied.
func New(st store.Store, opts ...Option) (*Storage, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is nil", jobstore.ErrInvalidArgument)
	}
	s, err := newStorage(opts)
	if err != nil {
		return nil, err
	}
	if err := s.init(st); err != nil {
		return nil, err
	}
	return s, nil
}

func newStorage(opts []Option) (*Storage, error) {
	s := &Storage{
		config:  jobstore.DefaultConfig(),
		logger:  slog.Default(),
		metrics: observability.NewMetrics(),
		tracer:  observability.Tracer(),
		codec:   &job.JSONCodec{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) init(st store.Store) error {
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	s.store = st

	s.fetcher = queue.NewFetcher(st, s.config.QueuePollInterval, s.config.InvisibilityTimeout,
		queue.WithLimits(s.limits),
		queue.WithLogger(s.logger),
		queue.WithMetrics(s.metrics),
		queue.WithTracer(s.tracer),
		queue.WithClock(s.now),
	)

	monOpts := []monitor.Option{monitor.WithClock(s.now)}
	if s.resolver != nil {
		monOpts = append(monOpts, monitor.WithResolver(s.resolver))
	}
	s.monitoring = monitor.New(st, monOpts...)

	s.components = []maintenance.Process{
		maintenance.NewExpirationManager(st, s.maintenanceOptions(s.config.JobExpirationCheckInterval)...),
		maintenance.NewCountersAggregator(st, s.maintenanceOptions(s.config.CountersAggregateInterval)...),
	}

	s.logger.Info("storage ready",
		slog.String("prefix", s.config.Prefix),
	)
	return nil
}

func (s *Storage) maintenanceOptions(interval time.Duration) []maintenance.Option {
	return []maintenance.Option{
		maintenance.WithInterval(interval),
		maintenance.WithLogger(s.logger),
		maintenance.WithMetrics(s.metrics),
		maintenance.WithTracer(s.tracer),
		maintenance.WithClock(s.now),
	}
}

// Connection returns a new connection. Connections are cheap and share the
// storage's handle and fetcher. Each connection owns its distributed locks:
// its ID is the owner token written to lock rows, so two connections exclude
// each other even within one process.
func (s *Storage) Connection() *Connection {
	cid := id.NewConnectionID()
	return &Connection{
		storage: s,
		id:      cid,
		locker: lock.NewLocker(s.store, cid.String(), s.config.DistributedLockLifetime,
			lock.WithLogger(s.logger.With(slog.String("connection", cid.String()))),
			lock.WithClock(s.now),
		),
	}
}

// Monitoring returns the read projections used by dashboards.
func (s *Storage) Monitoring() *monitor.API { return s.monitoring }

// Components returns the background processes a host should run: the
// expiration manager and the counters aggregator.
func (s *Storage) Components() []maintenance.Process { return s.components }

// Config returns the effective configuration.
func (s *Storage) Config() jobstore.Config { return s.config }

// Store returns the underlying store.
func (s *Storage) Store() store.Store { return s.store }

// Logger returns the storage's logger.
func (s *Storage) Logger() *slog.Logger { return s.logger }

// Metrics returns the storage's metrics recorder.
func (s *Storage) Metrics() *observability.Metrics { return s.metrics }

// Ping checks that the database is open and migrated.
func (s *Storage) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Run runs every component until ctx is done. A component that fails
// stops the others.
func (s *Storage) Run(ctx context.Context) error {
	return maintenance.NewRunner(s.logger, s.components...).Run(ctx)
}

// Close releases the storage's share of the database.
func (s *Storage) Close() error {
	return s.store.Close()
}
