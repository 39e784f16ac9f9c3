package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for jobstore metrics.
const meterName = "github.com/xraph/jobstore"

// Metrics holds the OpenTelemetry instruments shared by the queue,
// transaction, maintenance and worker packages. A nil *Metrics records
// nothing.
//
// Instruments:
//   - jobstore.queue.claims (Int64Counter): claimed entries, attributes
//     queue and reclaimed
//   - jobstore.queue.acks / jobstore.queue.releases (Int64Counter): terminal
//     claim actions, attribute queue
//   - jobstore.queue.fetch.duration (Float64Histogram): time a fetch blocked,
//     in seconds
//   - jobstore.txn.commands (Int64Counter): applied journal commands,
//     attribute status
//   - jobstore.maintenance.expired (Int64Counter): rows removed by the
//     expiration sweep, attribute collection
//   - jobstore.maintenance.aggregated (Int64Counter): counter rows folded
//   - jobstore.maintenance.errors (Int64Counter): failed passes, attribute
//     process
//   - jobstore.worker.jobs (Int64Counter) and jobstore.worker.duration
//     (Float64Histogram): executed jobs, attributes job_name and status
type Metrics struct {
	claims      metric.Int64Counter
	acks        metric.Int64Counter
	releases    metric.Int64Counter
	fetchWait   metric.Float64Histogram
	commands    metric.Int64Counter
	expired     metric.Int64Counter
	aggregated  metric.Int64Counter
	maintErrors metric.Int64Counter
	jobs        metric.Int64Counter
	jobDuration metric.Float64Histogram
}

// NewMetrics creates instruments from the global MeterProvider. If none is
// configured the instruments are noops.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates instruments from meter. This variant allows
// injecting a specific MeterProvider for testing.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	// On error the OTel API returns noop instruments, so errors are ignored.
	m := &Metrics{}
	m.claims, _ = meter.Int64Counter("jobstore.queue.claims",
		metric.WithDescription("Queue entries claimed by fetchers"),
		metric.WithUnit("{entry}"))
	m.acks, _ = meter.Int64Counter("jobstore.queue.acks",
		metric.WithDescription("Claimed entries removed from their queue"),
		metric.WithUnit("{entry}"))
	m.releases, _ = meter.Int64Counter("jobstore.queue.releases",
		metric.WithDescription("Claimed entries returned to their queue"),
		metric.WithUnit("{entry}"))
	m.fetchWait, _ = meter.Float64Histogram("jobstore.queue.fetch.duration",
		metric.WithDescription("Time a fetch blocked before returning"),
		metric.WithUnit("s"))
	m.commands, _ = meter.Int64Counter("jobstore.txn.commands",
		metric.WithDescription("Write journal commands applied on commit"),
		metric.WithUnit("{command}"))
	m.expired, _ = meter.Int64Counter("jobstore.maintenance.expired",
		metric.WithDescription("Rows removed by the expiration sweep"),
		metric.WithUnit("{row}"))
	m.aggregated, _ = meter.Int64Counter("jobstore.maintenance.aggregated",
		metric.WithDescription("Counter rows folded into aggregated counters"),
		metric.WithUnit("{row}"))
	m.maintErrors, _ = meter.Int64Counter("jobstore.maintenance.errors",
		metric.WithDescription("Failed maintenance passes"),
		metric.WithUnit("{error}"))
	m.jobs, _ = meter.Int64Counter("jobstore.worker.jobs",
		metric.WithDescription("Jobs executed by the worker pool"),
		metric.WithUnit("{job}"))
	m.jobDuration, _ = meter.Float64Histogram("jobstore.worker.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"))
	return m
}

// Claimed records a claimed queue entry.
func (m *Metrics) Claimed(ctx context.Context, queue string, reclaimed bool) {
	if m == nil {
		return
	}
	m.claims.Add(ctx, 1, metric.WithAttributes(
		attribute.String("queue", queue),
		attribute.Bool("reclaimed", reclaimed),
	))
}

// Acknowledged records a claimed entry removed from its queue.
func (m *Metrics) Acknowledged(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.acks.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// Released records a claimed entry returned to its queue.
func (m *Metrics) Released(ctx context.Context, queue string) {
	if m == nil {
		return
	}
	m.releases.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queue)))
}

// FetchWaited records how long a fetch blocked.
func (m *Metrics) FetchWaited(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.fetchWait.Record(ctx, d.Seconds())
}

// CommandsApplied records journal commands applied by one commit.
func (m *Metrics) CommandsApplied(ctx context.Context, n int, err error) {
	if m == nil || n == 0 {
		return
	}
	m.commands.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", status(err))))
}

// Expired records rows removed from collection by one sweep.
func (m *Metrics) Expired(ctx context.Context, collection string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.expired.Add(ctx, int64(n), metric.WithAttributes(attribute.String("collection", collection)))
}

// Aggregated records counter rows folded by one aggregation pass.
func (m *Metrics) Aggregated(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.aggregated.Add(ctx, int64(n))
}

// MaintenanceFailed records a failed maintenance pass.
func (m *Metrics) MaintenanceFailed(ctx context.Context, process string) {
	if m == nil {
		return
	}
	m.maintErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("process", process)))
}

// JobExecuted records one job run by the worker pool.
func (m *Metrics) JobExecuted(ctx context.Context, name string, d time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("job_name", name),
		attribute.String("status", status(err)),
	)
	m.jobs.Add(ctx, 1, attrs)
	m.jobDuration.Record(ctx, d.Seconds(), attrs)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
