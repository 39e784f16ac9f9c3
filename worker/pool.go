package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/backoff"
	"github.com/xraph/jobstore/id"
	"github.com/xraph/jobstore/queue"
)

// Pool manages a set of concurrent worker goroutines that claim jobs and
// run them through the Executor.
type Pool struct {
	conn        Connection
	executor    *Executor
	scheduler   *Scheduler
	concurrency int
	queues      []string
	serverID    id.ServerID
	logger      *slog.Logger

	// Server liveness.
	heartbeatInterval time.Duration
	serverTimeout     time.Duration

	// Schedule polling; zero disables it.
	scheduleInterval time.Duration

	// Delay after a failed fetch.
	retry backoff.Strategy

	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolQueues sets the queues the pool claims from, highest priority
// first.
func WithPoolQueues(queues []string) PoolOption {
	return func(p *Pool) {
		if len(queues) > 0 {
			p.queues = queues
		}
	}
}

// WithHeartbeatInterval sets how often the pool refreshes its server
// record.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithServerTimeout sets the heartbeat age after which other servers are
// removed. A zero value disables removal.
func WithServerTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.serverTimeout = d }
}

// WithScheduleInterval sets how often due retries are moved back into
// their queues. A zero value disables the scheduler.
func WithScheduleInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.scheduleInterval = d }
}

// WithFetchRetryStrategy sets the delay after a failed fetch.
func WithFetchRetryStrategy(s backoff.Strategy) PoolOption {
	return func(p *Pool) {
		if s != nil {
			p.retry = s
		}
	}
}

// NewPool creates a worker pool.
func NewPool(conn Connection, executor *Executor, logger *slog.Logger, opts ...PoolOption) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		conn:              conn,
		executor:          executor,
		scheduler:         NewScheduler(conn, logger),
		concurrency:       10,
		queues:            []string{DefaultQueue},
		serverID:          id.NewServerID(),
		logger:            logger,
		heartbeatInterval: 30 * time.Second,
		serverTimeout:     5 * time.Minute,
		scheduleInterval:  15 * time.Second,
		retry:             backoff.RetryStrategy(),
		activeJobs:        make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ServerID returns the identifier the pool announces itself under.
func (p *Pool) ServerID() id.ServerID { return p.serverID }

// Start announces the server and launches the worker goroutines. It
// returns once the server is registered.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if err := p.conn.AnnounceServer(ctx, p.serverID.String(), p.concurrency, p.queues); err != nil {
		return err
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("server_id", p.serverID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.queues),
	)

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	for range p.concurrency {
		p.wg.Add(1)
		go p.fetchLoop(loopCtx)
	}

	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.every(loopCtx, p.heartbeatInterval, p.heartbeat)
	}

	if p.scheduleInterval > 0 {
		p.wg.Add(1)
		go p.every(loopCtx, p.scheduleInterval, p.enqueueDue)
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If ctx is done first, active jobs are cancelled and their entries
// returned to the queue. The server record is removed either way.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("server_id", p.serverID.String()))

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return p.conn.RemoveServer(context.WithoutCancel(ctx), p.serverID.String())
}

// fetchLoop is run by each worker goroutine.
func (p *Pool) fetchLoop(ctx context.Context) {
	defer p.wg.Done()

	failures := 0
	for {
		claim, err := p.conn.FetchNextJob(ctx, p.queues)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			p.logger.Error("fetch error",
				slog.String("error", err.Error()),
				slog.Int("failures", failures),
			)
			if backoff.Sleep(ctx, p.retry.Delay(failures)) != nil {
				return
			}
			continue
		}
		failures = 0
		p.process(claim)
	}
}

func (p *Pool) process(claim *queue.Claim) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobID := claim.JobID()
	p.trackJob(jobID, cancel)
	defer p.untrackJob(jobID)

	if err := p.executor.Execute(ctx, p.serverID.String(), claim); err != nil {
		p.logger.Error("job execution failed",
			slog.String("job_id", jobID),
			slog.String("queue", claim.Queue()),
			slog.String("error", err.Error()),
		)
	}
}

// every runs fn on each tick until ctx is done.
func (p *Pool) every(ctx context.Context, d time.Duration, fn func(ctx context.Context)) {
	defer p.wg.Done()

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

func (p *Pool) heartbeat(ctx context.Context) {
	if err := p.conn.Heartbeat(ctx, p.serverID.String()); err != nil {
		p.logger.Warn("heartbeat failed", slog.String("error", err.Error()))
	}
	if p.serverTimeout <= 0 {
		return
	}
	n, err := p.conn.RemoveTimedOutServers(ctx, p.serverTimeout)
	if err != nil {
		p.logger.Warn("remove timed out servers", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		p.logger.Info("removed timed out servers", slog.Int("count", n))
	}
}

func (p *Pool) enqueueDue(ctx context.Context) {
	n, err := p.scheduler.EnqueueDue(ctx)
	if err != nil {
		// Another server holds the schedule lock.
		if errors.Is(err, jobstore.ErrLockTimeout) || ctx.Err() != nil {
			return
		}
		p.logger.Error("enqueue scheduled jobs", slog.String("error", err.Error()))
	}
	if n > 0 {
		p.logger.Debug("scheduled jobs enqueued", slog.Int("count", n))
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
