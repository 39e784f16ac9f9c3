package queue

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/observability"
)

// Fetcher runs the claim protocol: it polls a Store until an entry in one
// of the requested queues can be claimed or the context is done.
type Fetcher struct {
	store        Store
	pollInterval time.Duration
	invisibility time.Duration
	limits       *Manager
	logger       *slog.Logger
	metrics      *observability.Metrics
	tracer       trace.Tracer
	now          func() time.Time
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithLimits applies per-queue claim limits.
func WithLimits(m *Manager) FetcherOption {
	return func(f *Fetcher) { f.limits = m }
}

// WithLogger sets the logger for the fetcher.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) FetcherOption {
	return func(f *Fetcher) { f.metrics = m }
}

// WithTracer sets the tracer used for fetch spans.
func WithTracer(t trace.Tracer) FetcherOption {
	return func(f *Fetcher) { f.tracer = t }
}

// WithClock overrides the time source used to stamp claims.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

// NewFetcher creates a Fetcher over store.
func NewFetcher(store Store, pollInterval, invisibility time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		store:        store,
		pollInterval: pollInterval,
		invisibility: invisibility,
		logger:       slog.Default(),
		tracer:       observability.Tracer(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch blocks until an entry from queues is claimed. Queues are tried in
// the given order, so earlier queues have priority. An empty queue list is
// rejected immediately; a done context is returned as ctx.Err() without
// touching the store.
func (f *Fetcher) Fetch(ctx context.Context, queues []string) (_ *Claim, err error) {
	if len(queues) == 0 {
		return nil, jobstore.ErrEmptyQueues
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, f.tracer, "jobstore.queue.fetch",
		attribute.StringSlice("jobstore.queues", queues))
	defer func() { observability.EndSpan(span, err) }()

	start := time.Now()
	defer func() { f.metrics.FetchWaited(ctx, time.Since(start)) }()

	timer := time.NewTimer(f.pollInterval)
	defer timer.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if candidates := f.limits.Available(queues); len(candidates) > 0 {
			entry, err := f.store.ClaimNext(ctx, candidates, f.now().UTC(), f.invisibility)
			if err != nil {
				return nil, err
			}
			if entry != nil {
				return f.newClaim(ctx, entry), nil
			}
		}

		timer.Reset(f.pollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (f *Fetcher) newClaim(ctx context.Context, entry *Entry) *Claim {
	f.limits.Acquire(entry.Queue)
	f.metrics.Claimed(ctx, entry.Queue, entry.Reclaimed)
	if entry.Reclaimed {
		f.logger.Warn("reclaimed queue entry after invisibility timeout",
			slog.String("queue", entry.Queue),
			slog.String("job_id", entry.JobID),
		)
	}
	return &Claim{
		entry:   *entry,
		store:   f.store,
		limits:  f.limits,
		metrics: f.metrics,
	}
}
