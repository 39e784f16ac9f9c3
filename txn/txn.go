package txn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/kv"
	"github.com/xraph/jobstore/observability"
)

// ErrCommitted is returned by Commit and by the queueing methods once a
// transaction has been committed, successfully or not.
var ErrCommitted = errors.New("jobstore/txn: transaction already committed")

// Store is the persistence surface a transaction writes through.
type Store interface {
	job.Store
	kv.Writer

	// Enqueue appends an available entry for jobID to queue.
	Enqueue(ctx context.Context, queue, jobID string) error
}

// CommandFunc applies one journaled mutation.
type CommandFunc func(ctx context.Context, s Store) error

type command struct {
	name  string
	apply CommandFunc
}

// CommitError reports a commit that stopped part way. Commands before the
// failing one stay applied; nothing is rolled back.
type CommitError struct {
	Applied int    // commands applied before the failure
	Total   int    // commands in the journal
	Command string // name of the failing command
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("jobstore/txn: command %d/%d (%s): %v", e.Applied+1, e.Total, e.Command, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Transaction journals mutations in memory and applies them in order on
// Commit. It is a write journal, not an atomic unit: a failing command
// leaves earlier ones applied.
type Transaction struct {
	store   Store
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time

	mu        sync.Mutex
	commands  []command
	committed bool
}

// Option configures a Transaction.
type Option func(*Transaction)

// WithLogger sets the logger for commit failures.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transaction) { t.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Transaction) { t.metrics = m }
}

// WithTracer sets the tracer used for commit spans.
func WithTracer(tr trace.Tracer) Option {
	return func(t *Transaction) { t.tracer = tr }
}

// WithClock overrides the time source used for expiries and state
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Transaction) { t.now = now }
}

// New creates an empty transaction over store.
func New(store Store, opts ...Option) *Transaction {
	t := &Transaction{
		store:  store,
		logger: slog.Default(),
		tracer: observability.Tracer(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len returns the number of journaled commands.
func (t *Transaction) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.commands)
}

// Queue appends a named command to the journal.
func (t *Transaction) Queue(name string, fn CommandFunc) error {
	if fn == nil {
		return invalid("command %q has no function", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.committed {
		return ErrCommitted
	}
	t.commands = append(t.commands, command{name: name, apply: fn})
	return nil
}

// Commit applies the journal in FIFO order and stops at the first failing
// command, returning a *CommitError. A transaction commits at most once.
func (t *Transaction) Commit(ctx context.Context) (err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed {
		return ErrCommitted
	}
	t.committed = true

	ctx, span := observability.StartSpan(ctx, t.tracer, "jobstore.txn.commit",
		attribute.Int("jobstore.txn.commands", len(t.commands)),
	)
	defer func() { observability.EndSpan(span, err) }()

	for i, c := range t.commands {
		if err := ctx.Err(); err != nil {
			return t.fail(ctx, i, c.name, err)
		}
		if err := c.apply(ctx, t.store); err != nil {
			return t.fail(ctx, i, c.name, err)
		}
	}
	t.metrics.CommandsApplied(ctx, len(t.commands), nil)
	return nil
}

func (t *Transaction) fail(ctx context.Context, applied int, name string, err error) error {
	t.metrics.CommandsApplied(ctx, applied, nil)
	t.metrics.CommandsApplied(ctx, 1, err)
	t.logger.Error("transaction commit failed",
		slog.String("command", name),
		slog.Int("applied", applied),
		slog.Int("total", len(t.commands)),
		slog.String("error", err.Error()),
	)
	return &CommitError{Applied: applied, Total: len(t.commands), Command: name, Err: err}
}
