package middleware

import (
	"context"
	"time"

	"github.com/xraph/jobstore/observability"
)

// Metrics returns middleware that records each execution on m
// (jobstore.worker.jobs and jobstore.worker.duration). A nil m records
// nothing.
func Metrics(m *observability.Metrics) Middleware {
	return func(ctx context.Context, e *Execution, next Handler) error {
		start := time.Now()
		err := next(ctx)
		m.JobExecuted(ctx, e.Name, time.Since(start), err)
		return err
	}
}
