package maintenance

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Process is a long-running background task.
type Process interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner runs processes side by side until the context is done.
type Runner struct {
	processes []Process
	logger    *slog.Logger
}

// NewRunner creates a Runner for processes.
func NewRunner(logger *slog.Logger, processes ...Process) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{processes: processes, logger: logger}
}

// Run starts every process and blocks until all return. Cancellation of
// ctx is the normal way to stop and is not reported as an error.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range r.processes {
		g.Go(func() error {
			r.logger.Info("background process started", slog.String("process", p.Name()))
			err := p.Run(gctx)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				err = nil
			}
			if err != nil {
				r.logger.Error("background process stopped",
					slog.String("process", p.Name()),
					slog.String("error", err.Error()),
				)
				return err
			}
			r.logger.Info("background process stopped", slog.String("process", p.Name()))
			return nil
		})
	}
	return g.Wait()
}
