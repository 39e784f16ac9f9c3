package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobstore/job"
)

// scheduleLockResource guards the schedule set across servers.
const scheduleLockResource = "locks:schedulepoller"

// DefaultQueue receives scheduled jobs that do not name a queue.
const DefaultQueue = "default"

// Scheduler moves due jobs from the schedule set back into their queues.
type Scheduler struct {
	conn        Connection
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewScheduler creates a Scheduler. A nil logger uses slog.Default.
func NewScheduler(conn Connection, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		conn:        conn,
		lockTimeout: time.Second,
		logger:      logger,
		now:         time.Now,
	}
}

// EnqueueDue enqueues every scheduled job whose time has come and returns
// how many were moved. Jobs whose state changed since they were scheduled
// are dropped from the set without being enqueued.
func (s *Scheduler) EnqueueDue(ctx context.Context) (int, error) {
	l, err := s.conn.AcquireDistributedLock(ctx, scheduleLockResource, s.lockTimeout)
	if err != nil {
		return 0, err
	}
	defer func() {
		if relErr := l.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logger.Warn("release schedule lock", slog.String("error", relErr.Error()))
		}
	}()

	moved := 0
	for {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		jobID, ok, err := s.conn.GetFirstByLowestScoreFromSet(ctx, ScheduleKey, 0, float64(s.now().Unix()))
		if err != nil {
			return moved, err
		}
		if !ok {
			return moved, nil
		}
		enqueued, err := s.enqueue(ctx, jobID)
		if err != nil {
			return moved, fmt.Errorf("enqueue scheduled job %s: %w", jobID, err)
		}
		if enqueued {
			moved++
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, jobID string) (bool, error) {
	state, err := s.conn.GetStateData(ctx, jobID)
	if err != nil {
		return false, err
	}

	tx := s.conn.CreateWriteTransaction()
	if err := tx.RemoveFromSet(ScheduleKey, jobID); err != nil {
		return false, err
	}
	if state == nil || state.Name != job.StateScheduled {
		return false, tx.Commit(ctx)
	}

	q := state.Data["Queue"]
	if q == "" {
		q = DefaultQueue
	}
	now := s.now().UTC()
	if err := errors.Join(
		tx.SetJobState(jobID, job.State{
			Name:      job.StateEnqueued,
			Reason:    "Triggered by the schedule",
			Data:      map[string]string{"Queue": q, "EnqueuedAt": unixMilli(now)},
			CreatedAt: now,
		}),
		tx.AddToQueue(q, jobID),
	); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	s.logger.Debug("scheduled job enqueued",
		slog.String("job_id", jobID),
		slog.String("queue", q),
	)
	return true, nil
}
