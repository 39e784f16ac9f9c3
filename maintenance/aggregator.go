package maintenance

import (
	"context"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore/observability"
)

const (
	// CountersPerPass is the number of fine counter rows folded by one
	// aggregation step.
	CountersPerPass = 1000

	// DelayBetweenPasses is the pause after a full batch before the next
	// one starts.
	DelayBetweenPasses = 500 * time.Millisecond

	// DefaultAggregateInterval is how often counters are aggregated when
	// no schedule is configured.
	DefaultAggregateInterval = 5 * time.Minute
)

// CountersAggregator folds fine-grained counter rows into one aggregated
// row per key so counter reads stay cheap.
type CountersAggregator struct {
	store    Store
	schedule cronlib.Schedule
	batch    int
	delay    time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCountersAggregator creates a CountersAggregator over store.
func NewCountersAggregator(store Store, opts ...Option) *CountersAggregator {
	o := newOptions(DefaultAggregateInterval, opts)
	return &CountersAggregator{
		store:    store,
		schedule: o.schedule,
		batch:    o.batch,
		delay:    o.delay,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		now:      o.now,
	}
}

// Name identifies the process in logs.
func (a *CountersAggregator) Name() string { return "counters-aggregator" }

// Run aggregates immediately and then on schedule until ctx is done.
func (a *CountersAggregator) Run(ctx context.Context) error {
	return runScheduled(ctx, a.schedule, a.now, func(ctx context.Context) {
		if _, err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("counter aggregation failed", slog.String("error", err.Error()))
			a.metrics.MaintenanceFailed(ctx, a.Name())
		}
	})
}

// RunOnce aggregates batches until one comes back short, pausing between
// full batches. It returns the number of fine rows consumed.
func (a *CountersAggregator) RunOnce(ctx context.Context) (total int, err error) {
	ctx, span := observability.StartSpan(ctx, a.tracer, "jobstore.maintenance.aggregate")
	defer func() {
		span.SetAttributes(attribute.Int("jobstore.maintenance.rows", total))
		observability.EndSpan(span, err)
	}()

	for {
		n, err := a.store.AggregateCounters(ctx, a.batch)
		if err != nil {
			return total, err
		}
		total += n
		a.metrics.Aggregated(ctx, n)
		if n < a.batch {
			if total > 0 {
				a.logger.Debug("aggregated counters", slog.Int("count", total))
			}
			return total, nil
		}

		timer := time.NewTimer(a.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return total, ctx.Err()
		case <-timer.C:
		}
	}
}
