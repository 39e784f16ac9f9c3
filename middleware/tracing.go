package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore/observability"
)

// Tracing returns middleware that wraps job execution in an OpenTelemetry
// span from the global TracerProvider. Without a configured provider the
// noop tracer makes this a pass-through.
//
// Span attributes: jobstore.job.id, jobstore.job.name, jobstore.queue,
// jobstore.reclaimed. On error the span status is codes.Error.
func Tracing() Middleware {
	return TracingWithTracer(observability.Tracer())
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, e *Execution, next Handler) error {
		ctx, span := tracer.Start(ctx, "jobstore.job.execute",
			trace.WithAttributes(
				attribute.String("jobstore.job.id", e.JobID),
				attribute.String("jobstore.job.name", e.Name),
				attribute.String("jobstore.queue", e.Queue),
				attribute.Bool("jobstore.reclaimed", e.Reclaimed),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
