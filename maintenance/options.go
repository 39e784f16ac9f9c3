package maintenance

import (
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore/observability"
)

type options struct {
	schedule cronlib.Schedule
	batch    int
	delay    time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a maintenance process.
type Option func(*options)

// WithInterval runs the process at a fixed interval.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.schedule = Every(d)
		}
	}
}

// WithSchedule runs the process on a cron schedule, as returned by
// ParseSchedule.
func WithSchedule(s cronlib.Schedule) Option {
	return func(o *options) {
		if s != nil {
			o.schedule = s
		}
	}
}

// WithBatchSize overrides CountersPerPass for the aggregator.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batch = n
		}
	}
}

// WithPassDelay overrides DelayBetweenPasses for the aggregator.
func WithPassDelay(d time.Duration) Option {
	return func(o *options) { o.delay = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for pass spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(interval time.Duration, opts []Option) options {
	o := options{
		schedule: Every(interval),
		batch:    CountersPerPass,
		delay:    DelayBetweenPasses,
		logger:   slog.Default(),
		tracer:   observability.Tracer(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
