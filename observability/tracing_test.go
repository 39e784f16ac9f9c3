package observability_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/xraph/jobstore/observability"
)

func TestStartEndSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := tp.Tracer("test")

	_, span := observability.StartSpan(context.Background(), tracer, "jobstore.test",
		attribute.String("jobstore.queue", "default"))
	observability.EndSpan(span, nil)

	_, span = observability.StartSpan(context.Background(), tracer, "jobstore.test.fail")
	observability.EndSpan(span, errors.New("boom"))

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "jobstore.test" || spans[0].Status().Code != codes.Ok {
		t.Errorf("unexpected first span %q status %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "boom" {
		t.Errorf("unexpected error status %v", spans[1].Status())
	}
	if len(spans[1].Events()) == 0 {
		t.Error("expected recorded error event")
	}
}
