package middleware

import (
	"context"
	"log/slog"
)

// Timeout returns middleware that enforces a per-job execution deadline.
// If the execution has a positive Timeout the handler runs under a
// context.WithTimeout and should return context.DeadlineExceeded once it
// fires.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *Execution, next Handler) error {
		if e.Timeout > 0 {
			logger.Debug("job timeout set",
				slog.String("job_id", e.JobID),
				slog.Duration("timeout", e.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
