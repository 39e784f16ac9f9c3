package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore/observability"
)

// DefaultExpirationInterval is how often expired rows are swept when no
// schedule is configured.
const DefaultExpirationInterval = time.Hour

// ExpirationManager removes rows whose expiry has passed from every
// collection that carries one.
type ExpirationManager struct {
	store    Store
	schedule cronlib.Schedule
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// NewExpirationManager creates an ExpirationManager over store.
func NewExpirationManager(store Store, opts ...Option) *ExpirationManager {
	o := newOptions(DefaultExpirationInterval, opts)
	return &ExpirationManager{
		store:    store,
		schedule: o.schedule,
		logger:   o.logger,
		metrics:  o.metrics,
		tracer:   o.tracer,
		now:      o.now,
	}
}

// Name identifies the process in logs.
func (m *ExpirationManager) Name() string { return "expiration-manager" }

// Run sweeps immediately and then on schedule until ctx is done.
func (m *ExpirationManager) Run(ctx context.Context) error {
	return runScheduled(ctx, m.schedule, m.now, func(ctx context.Context) {
		_, _ = m.RunOnce(ctx)
	})
}

// RunOnce sweeps every collection once and returns the number of rows
// removed per collection. The cutoff is fixed when the pass starts. A
// collection that fails is logged and skipped; the returned error joins
// every failure.
func (m *ExpirationManager) RunOnce(ctx context.Context) (removed map[Collection]int, err error) {
	now := m.now().UTC()
	ctx, span := observability.StartSpan(ctx, m.tracer, "jobstore.maintenance.expire")
	defer func() { observability.EndSpan(span, err) }()

	removed = make(map[Collection]int, len(SweepOrder))
	var errs []error
	for _, c := range SweepOrder {
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = append(errs, ctxErr)
			break
		}
		n, sweepErr := m.store.DeleteExpired(ctx, c, now)
		if sweepErr != nil {
			m.logger.Error("expiration sweep failed",
				slog.String("collection", string(c)),
				slog.String("error", sweepErr.Error()),
			)
			m.metrics.MaintenanceFailed(ctx, m.Name())
			errs = append(errs, sweepErr)
			continue
		}
		removed[c] = n
		m.metrics.Expired(ctx, string(c), n)
		if n > 0 {
			m.logger.Debug("removed expired rows",
				slog.String("collection", string(c)),
				slog.Int("count", n),
			)
		}
	}
	span.SetAttributes(attribute.Int("jobstore.maintenance.collections", len(removed)))
	return removed, errors.Join(errs...)
}
