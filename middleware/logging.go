package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs job start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, e *Execution, next Handler) error {
		logger.Info("job started",
			slog.String("job_name", e.Name),
			slog.String("job_id", e.JobID),
			slog.String("queue", e.Queue),
			slog.Bool("reclaimed", e.Reclaimed),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job failed",
				slog.String("job_name", e.Name),
				slog.String("job_id", e.JobID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job completed",
				slog.String("job_name", e.Name),
				slog.String("job_id", e.JobID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
