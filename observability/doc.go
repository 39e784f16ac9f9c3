// Package observability provides the OpenTelemetry metrics and tracing
// helpers used across jobstore.
//
// Instruments are created once per [Metrics] value and are safe for
// concurrent use. Without a configured MeterProvider or TracerProvider the
// global noop implementations are used.
//
//	metrics := observability.NewMetrics()
//	st, _ := storage.Open("jobs.db", storage.WithMetrics(metrics))
package observability
