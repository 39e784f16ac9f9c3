package storage

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/observability"
	"github.com/xraph/jobstore/queue"
)

// Option configures a Storage.
type Option func(*Storage)

// WithConfig replaces the default configuration. It is validated when the
// storage is built.
func WithConfig(cfg jobstore.Config) Option {
	return func(s *Storage) { s.config = cfg }
}

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(s *Storage) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. A nil recorder records nothing.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Storage) { s.metrics = m }
}

// WithTracer sets the tracer for claim, commit and maintenance spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Storage) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithLimits applies per-queue claim limits to FetchNextJob.
func WithLimits(configs ...queue.Config) Option {
	return func(s *Storage) { s.limits = queue.NewManager(configs...) }
}

// WithResolver makes GetJobData and the monitoring projections report
// invocations this process cannot run through LoadErr.
func WithResolver(r job.Resolver) Option {
	return func(s *Storage) { s.resolver = r }
}

// WithCodec sets the codec CreateExpiredJob encodes invocations with.
// Stored jobs name their codec, so readers decode either kind.
func WithCodec(c job.Codec) Option {
	return func(s *Storage) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		if now != nil {
			s.now = now
		}
	}
}
