package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xraph/jobstore/backoff"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/middleware"
	"github.com/xraph/jobstore/monitor"
	"github.com/xraph/jobstore/queue"
)

// Keys and parameters written by the executor.
const (
	// ScheduleKey is the set of jobs waiting for a retry, scored by the
	// unix second they become due.
	ScheduleKey = "schedule"

	// RetryCountParam is the job parameter holding the number of retries
	// already scheduled.
	RetryCountParam = "RetryCount"
)

// Counter lifetimes of the timeline keys.
const (
	dailyCounterTTL  = 30 * 24 * time.Hour
	hourlyCounterTTL = 24 * time.Hour
)

// Executor runs a single claimed job through middleware and the registered
// handler, then records the outcome and ends the claim.
type Executor struct {
	conn         Connection
	registry     *job.Registry
	mw           middleware.Middleware
	maxRetries   int
	retryDelay   backoff.Strategy
	jobTimeout   time.Duration
	succeededTTL time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMiddleware sets the middleware chain, outermost first.
func WithMiddleware(mws ...middleware.Middleware) ExecutorOption {
	return func(e *Executor) { e.mw = middleware.Chain(mws...) }
}

// WithMaxRetries sets how many times a failed job is rescheduled before it
// is marked Failed. Zero disables retries.
func WithMaxRetries(n int) ExecutorOption {
	return func(e *Executor) { e.maxRetries = max(n, 0) }
}

// WithRetryStrategy sets the delay before each retry.
func WithRetryStrategy(s backoff.Strategy) ExecutorOption {
	return func(e *Executor) {
		if s != nil {
			e.retryDelay = s
		}
	}
}

// WithJobTimeout bounds each handler call. Zero means no bound.
func WithJobTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.jobTimeout = d }
}

// WithSucceededTTL sets how long succeeded jobs are kept.
func WithSucceededTTL(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.succeededTTL = d }
}

// WithExecutorClock replaces time.Now.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an Executor that resolves handlers from registry.
func NewExecutor(conn Connection, registry *job.Registry, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		conn:         conn,
		registry:     registry,
		mw:           middleware.Chain(),
		maxRetries:   3,
		retryDelay:   backoff.NewExponential(15*time.Second, time.Hour),
		succeededTTL: 24 * time.Hour,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the job behind claim. The returned error reports storage
// failures; handler errors are recorded on the job instead.
//
// When ctx is cancelled while the handler runs, the entry is released so
// another worker picks the job up again.
func (e *Executor) Execute(ctx context.Context, serverID string, claim *queue.Claim) error {
	jobID := claim.JobID()
	// Outcome writes must land even when the job context was cancelled.
	wctx := context.WithoutCancel(ctx)

	data, err := e.conn.GetJobData(ctx, jobID)
	if err != nil {
		return e.abandon(wctx, claim, fmt.Errorf("load job %s: %w", jobID, err))
	}
	if data == nil {
		e.logger.Warn("queued job no longer exists",
			slog.String("job_id", jobID),
			slog.String("queue", claim.Queue()),
		)
		return claim.Acknowledge(wctx)
	}

	started := e.now().UTC()
	tx := e.conn.CreateWriteTransaction()
	if err := tx.SetJobState(jobID, job.State{
		Name:      job.StateProcessing,
		Data:      map[string]string{"ServerId": serverID, "StartedAt": unixMilli(started)},
		CreatedAt: started,
	}); err != nil {
		return e.abandon(wctx, claim, err)
	}
	if err := tx.Commit(wctx); err != nil {
		return e.abandon(wctx, claim, err)
	}

	loadErr := data.LoadErr
	var handler job.HandlerFunc
	if loadErr == nil {
		handler, loadErr = e.registry.Resolve(data.Invocation)
	}

	runErr := loadErr
	var name string
	if loadErr == nil {
		name = data.Invocation.Name()
		runErr = e.run(ctx, claim, data, handler)
	}

	if runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		e.logger.Warn("job interrupted, returning it to the queue",
			slog.String("job_id", jobID),
			slog.String("job_name", name),
		)
		return claim.Release(wctx)
	}

	finished := e.now().UTC()
	if runErr == nil {
		return e.finish(wctx, claim, e.succeeded(jobID, data, started, finished))
	}

	// A job that cannot be loaded fails for good.
	if loadErr == nil {
		retried, err := e.scheduleRetry(wctx, claim, runErr, finished)
		if err != nil {
			return e.abandon(wctx, claim, err)
		}
		if retried {
			return nil
		}
	}
	return e.finish(wctx, claim, e.failed(jobID, runErr, finished))
}

// run calls handler through the middleware chain.
func (e *Executor) run(ctx context.Context, claim *queue.Claim, data *job.Data, handler job.HandlerFunc) error {
	exec := &middleware.Execution{
		JobID:     claim.JobID(),
		Queue:     claim.Queue(),
		Name:      data.Invocation.Name(),
		Args:      data.Invocation.Args,
		Reclaimed: claim.Reclaimed(),
		Timeout:   e.jobTimeout,
	}
	return e.mw(ctx, exec, func(ctx context.Context) error {
		return handler(ctx, exec.Args)
	})
}

// outcome is the write set recording how a job ended.
type outcome struct {
	jobID   string
	state   job.State
	counter string
	expire  bool
}

func (e *Executor) succeeded(jobID string, data *job.Data, started, finished time.Time) outcome {
	return outcome{
		jobID: jobID,
		state: job.State{
			Name: job.StateSucceeded,
			Data: map[string]string{
				"SucceededAt":         unixMilli(finished),
				"PerformanceDuration": strconv.FormatInt(finished.Sub(started).Milliseconds(), 10),
				"Latency":             strconv.FormatInt(started.Sub(data.CreatedAt).Milliseconds(), 10),
			},
			CreatedAt: finished,
		},
		counter: monitor.TypeSucceeded,
		expire:  true,
	}
}

func (e *Executor) failed(jobID string, cause error, at time.Time) outcome {
	return outcome{
		jobID: jobID,
		state: job.State{
			Name:   job.StateFailed,
			Reason: "An exception occurred during processing of a background job.",
			Data: map[string]string{
				"FailedAt":         unixMilli(at),
				"ExceptionType":    fmt.Sprintf("%T", rootCause(cause)),
				"ExceptionMessage": cause.Error(),
			},
			CreatedAt: at,
		},
		counter: monitor.TypeFailed,
	}
}

// finish commits o and acknowledges the claim.
func (e *Executor) finish(ctx context.Context, claim *queue.Claim, o outcome) error {
	tx := e.conn.CreateWriteTransaction()
	err := errors.Join(
		tx.SetJobState(o.jobID, o.state),
		tx.IncrementCounter("stats:"+o.counter),
		tx.IncrementCounterFor(monitor.DailyKey(o.counter, o.state.CreatedAt), dailyCounterTTL),
		tx.IncrementCounterFor(monitor.HourlyKey(o.counter, o.state.CreatedAt), hourlyCounterTTL),
	)
	if err == nil {
		if o.expire {
			err = tx.ExpireJob(o.jobID, e.succeededTTL)
		} else {
			err = tx.PersistJob(o.jobID)
		}
	}
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		return e.abandon(ctx, claim, fmt.Errorf("record %s state for job %s: %w", o.state.Name, o.jobID, err))
	}
	return claim.Acknowledge(ctx)
}

// scheduleRetry moves the job to Scheduled when it has retries left.
func (e *Executor) scheduleRetry(ctx context.Context, claim *queue.Claim, cause error, at time.Time) (bool, error) {
	if e.maxRetries == 0 {
		return false, nil
	}
	jobID := claim.JobID()

	v, ok, err := e.conn.GetJobParameter(ctx, jobID, RetryCountParam)
	if err != nil {
		return false, err
	}
	attempt := 0
	if ok {
		attempt, _ = strconv.Atoi(v)
	}
	if attempt >= e.maxRetries {
		return false, nil
	}
	attempt++

	if err := e.conn.SetJobParameter(ctx, jobID, RetryCountParam, strconv.Itoa(attempt)); err != nil {
		return false, err
	}

	due := at.Add(e.retryDelay.Delay(attempt))
	tx := e.conn.CreateWriteTransaction()
	if err := errors.Join(
		tx.SetJobState(jobID, job.State{
			Name:   job.StateScheduled,
			Reason: fmt.Sprintf("Retry attempt %d of %d: %s", attempt, e.maxRetries, cause.Error()),
			Data: map[string]string{
				"EnqueueAt":   unixMilli(due),
				"ScheduledAt": unixMilli(at),
				"Queue":       claim.Queue(),
			},
			CreatedAt: at,
		}),
		tx.AddToSetWithScore(ScheduleKey, jobID, float64(due.Unix())),
	); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}

	e.logger.Info("job scheduled for retry",
		slog.String("job_id", jobID),
		slog.Int("attempt", attempt),
		slog.Int("max_retries", e.maxRetries),
		slog.Time("due", due),
	)
	return true, claim.Acknowledge(ctx)
}

// abandon releases the claim after a storage failure and returns err.
func (e *Executor) abandon(ctx context.Context, claim *queue.Claim, err error) error {
	e.logger.Error("job processing aborted",
		slog.String("job_id", claim.JobID()),
		slog.String("error", err.Error()),
	)
	if relErr := claim.Release(ctx); relErr != nil {
		return errors.Join(err, relErr)
	}
	return err
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func unixMilli(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
