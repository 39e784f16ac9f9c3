package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
	"github.com/xraph/jobstore/queue"
)

const (
	// RecurringJobsKey is the set holding recurring job ids.
	RecurringJobsKey = "recurring-jobs"

	// firstJobsPerQueue is how many waiting jobs Queues shows per queue.
	firstJobsPerQueue = 5

	timelineDays  = 8
	timelineHours = 24
)

// Timeline counter types.
const (
	TypeSucceeded = "succeeded"
	TypeFailed    = "failed"
)

// DailyKey is the counter key of a day's total for typ.
func DailyKey(typ string, t time.Time) string {
	return "stats:" + typ + ":" + t.UTC().Format("2006-01-02")
}

// HourlyKey is the counter key of an hour's total for typ.
func HourlyKey(typ string, t time.Time) string {
	return "stats:" + typ + ":" + t.UTC().Format("2006-01-02-15")
}

// API serves the read projections used by dashboards.
type API struct {
	src      Source
	resolver job.Resolver
	now      func() time.Time
}

// Option configures an API.
type Option func(*API)

// WithResolver checks that listed invocations can be run by this process.
// Unresolvable ones are reported through LoadError.
func WithResolver(r job.Resolver) Option {
	return func(a *API) { a.resolver = r }
}

// WithClock overrides the time source for the timelines.
func WithClock(now func() time.Time) Option {
	return func(a *API) { a.now = now }
}

// New creates an API reading from src.
func New(src Source, opts ...Option) *API {
	a := &API{src: src, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ── Queues and servers ───────────────────────────────────────────

// Queues lists every queue with its counts and first waiting jobs.
func (a *API) Queues(ctx context.Context) ([]QueueSummary, error) {
	names, err := a.src.QueueNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]QueueSummary, 0, len(names))
	for _, name := range names {
		enq, fetched, err := a.src.QueueCounts(ctx, name)
		if err != nil {
			return nil, err
		}
		first, err := a.EnqueuedJobs(ctx, name, 0, firstJobsPerQueue)
		if err != nil {
			return nil, err
		}
		out = append(out, QueueSummary{Name: name, Length: enq, Fetched: fetched, FirstJobs: first})
	}
	return out, nil
}

// Servers lists the registered processing servers.
func (a *API) Servers(ctx context.Context) ([]ServerSummary, error) {
	servers, err := a.src.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ServerSummary, 0, len(servers))
	for _, s := range servers {
		out = append(out, ServerSummary{
			Name:         s.ID,
			WorkersCount: s.Info.WorkerCount,
			Queues:       s.Info.Queues,
			StartedAt:    s.Info.StartedAt,
			Heartbeat:    s.LastHeartbeat,
		})
	}
	return out, nil
}

// ── Jobs ─────────────────────────────────────────────────────────

// JobDetails returns one job with its history, newest first. It returns
// jobstore.ErrJobNotFound for unknown ids.
func (a *API) JobDetails(ctx context.Context, jobID string) (*JobDetails, error) {
	j, err := a.src.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	d := job.Decode(j, a.resolver)

	history := make([]job.State, len(j.StateHistory))
	copy(history, j.StateHistory)
	sort.SliceStable(history, func(i, k int) bool {
		return history[i].CreatedAt.After(history[k].CreatedAt)
	})

	return &JobDetails{
		ID:         j.ID,
		Invocation: d.Invocation,
		LoadError:  loadError(d),
		Arguments:  j.Arguments,
		CreatedAt:  j.CreatedAt,
		ExpireAt:   j.ExpireAt,
		Properties: j.Parameters,
		History:    history,
	}, nil
}

// Statistics returns the dashboard summary.
func (a *API) Statistics(ctx context.Context) (*Statistics, error) {
	s := &Statistics{}
	counts := []struct {
		state string
		dst   *int64
	}{
		{job.StateEnqueued, &s.Enqueued},
		{job.StateScheduled, &s.Scheduled},
		{job.StateProcessing, &s.Processing},
		{job.StateSucceeded, &s.Succeeded},
		{job.StateFailed, &s.Failed},
		{job.StateDeleted, &s.Deleted},
	}
	for _, c := range counts {
		n, err := a.src.CountJobsByState(ctx, c.state)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	servers, err := a.src.ListServers(ctx)
	if err != nil {
		return nil, err
	}
	s.Servers = int64(len(servers))

	queues, err := a.src.QueueNames(ctx)
	if err != nil {
		return nil, err
	}
	s.Queues = int64(len(queues))

	recurring, err := a.src.SetEntries(ctx, RecurringJobsKey)
	if err != nil {
		return nil, err
	}
	s.Recurring = int64(len(recurring))
	return s, nil
}

// EnqueuedJobs pages through the waiting jobs of a queue, oldest first.
func (a *API) EnqueuedJobs(ctx context.Context, queueName string, from, perPage int) ([]EnqueuedJob, error) {
	entries, err := a.src.QueueEntries(ctx, queueName, false, from, perPage)
	if err != nil {
		return nil, err
	}
	out := make([]EnqueuedJob, 0, len(entries))
	err = a.eachJob(ctx, entries, func(_ *queue.Entry, j *job.Job) {
		sum := a.summarize(j, j.LastState())
		e := EnqueuedJob{JobSummary: sum}
		if j.StateName == job.StateEnqueued {
			e.EnqueuedAt = parseStateTime(sum.StateData, "EnqueuedAt")
		}
		out = append(out, e)
	})
	return out, err
}

// FetchedJobs pages through the claimed jobs of a queue, oldest first.
func (a *API) FetchedJobs(ctx context.Context, queueName string, from, perPage int) ([]FetchedJob, error) {
	entries, err := a.src.QueueEntries(ctx, queueName, true, from, perPage)
	if err != nil {
		return nil, err
	}
	out := make([]FetchedJob, 0, len(entries))
	err = a.eachJob(ctx, entries, func(e *queue.Entry, j *job.Job) {
		out = append(out, FetchedJob{
			JobSummary: a.summarize(j, stateRecord(j, j.StateName)),
			FetchedAt:  e.FetchedAt,
		})
	})
	return out, err
}

// ProcessingJobs pages through jobs in the Processing state, newest first.
func (a *API) ProcessingJobs(ctx context.Context, from, count int) ([]ProcessingJob, error) {
	return listByState(ctx, a, job.StateProcessing, from, count, func(s JobSummary) ProcessingJob {
		server := s.StateData["ServerId"]
		if server == "" {
			server = s.StateData["ServerName"]
		}
		return ProcessingJob{
			JobSummary: s,
			ServerID:   server,
			StartedAt:  parseStateTime(s.StateData, "StartedAt"),
		}
	})
}

// ScheduledJobs pages through jobs in the Scheduled state, newest first.
func (a *API) ScheduledJobs(ctx context.Context, from, count int) ([]ScheduledJob, error) {
	return listByState(ctx, a, job.StateScheduled, from, count, func(s JobSummary) ScheduledJob {
		return ScheduledJob{
			JobSummary:  s,
			EnqueueAt:   parseStateTime(s.StateData, "EnqueueAt"),
			ScheduledAt: parseStateTime(s.StateData, "ScheduledAt"),
		}
	})
}

// SucceededJobs pages through jobs in the Succeeded state, newest first.
func (a *API) SucceededJobs(ctx context.Context, from, count int) ([]SucceededJob, error) {
	return listByState(ctx, a, job.StateSucceeded, from, count, func(s JobSummary) SucceededJob {
		out := SucceededJob{
			JobSummary:  s,
			Result:      s.StateData["Result"],
			SucceededAt: parseStateTime(s.StateData, "SucceededAt"),
		}
		perf, err1 := strconv.ParseInt(s.StateData["PerformanceDuration"], 10, 64)
		latency, err2 := strconv.ParseInt(s.StateData["Latency"], 10, 64)
		if err1 == nil && err2 == nil {
			total := perf + latency
			out.TotalDuration = &total
		}
		return out
	})
}

// FailedJobs pages through jobs in the Failed state, newest first.
func (a *API) FailedJobs(ctx context.Context, from, count int) ([]FailedJob, error) {
	return listByState(ctx, a, job.StateFailed, from, count, func(s JobSummary) FailedJob {
		return FailedJob{
			JobSummary:       s,
			Reason:           s.StateReason,
			ExceptionType:    s.StateData["ExceptionType"],
			ExceptionMessage: s.StateData["ExceptionMessage"],
			ExceptionDetails: s.StateData["ExceptionDetails"],
			FailedAt:         parseStateTime(s.StateData, "FailedAt"),
		}
	})
}

// DeletedJobs pages through jobs in the Deleted state, newest first.
func (a *API) DeletedJobs(ctx context.Context, from, count int) ([]DeletedJob, error) {
	return listByState(ctx, a, job.StateDeleted, from, count, func(s JobSummary) DeletedJob {
		return DeletedJob{
			JobSummary: s,
			DeletedAt:  parseStateTime(s.StateData, "DeletedAt"),
		}
	})
}

// ── Counts ───────────────────────────────────────────────────────

// ScheduledCount returns the number of scheduled jobs.
func (a *API) ScheduledCount(ctx context.Context) (int64, error) {
	return a.src.CountJobsByState(ctx, job.StateScheduled)
}

// FailedCount returns the number of failed jobs.
func (a *API) FailedCount(ctx context.Context) (int64, error) {
	return a.src.CountJobsByState(ctx, job.StateFailed)
}

// ProcessingCount returns the number of jobs being processed.
func (a *API) ProcessingCount(ctx context.Context) (int64, error) {
	return a.src.CountJobsByState(ctx, job.StateProcessing)
}

// SucceededListCount returns the number of succeeded jobs still stored.
func (a *API) SucceededListCount(ctx context.Context) (int64, error) {
	return a.src.CountJobsByState(ctx, job.StateSucceeded)
}

// DeletedListCount returns the number of deleted jobs still stored.
func (a *API) DeletedListCount(ctx context.Context) (int64, error) {
	return a.src.CountJobsByState(ctx, job.StateDeleted)
}

// EnqueuedCount returns the number of waiting entries in a queue.
func (a *API) EnqueuedCount(ctx context.Context, queueName string) (int64, error) {
	enq, _, err := a.src.QueueCounts(ctx, queueName)
	return enq, err
}

// FetchedCount returns the number of claimed entries in a queue.
func (a *API) FetchedCount(ctx context.Context, queueName string) (int64, error) {
	_, fetched, err := a.src.QueueCounts(ctx, queueName)
	return fetched, err
}

// ── Timelines ────────────────────────────────────────────────────

// SucceededByDatesCount returns daily succeeded totals for the last eight
// days, today first.
func (a *API) SucceededByDatesCount(ctx context.Context) ([]TimelinePoint, error) {
	return a.daily(ctx, TypeSucceeded)
}

// FailedByDatesCount returns daily failed totals for the last eight days,
// today first.
func (a *API) FailedByDatesCount(ctx context.Context) ([]TimelinePoint, error) {
	return a.daily(ctx, TypeFailed)
}

// HourlySucceededJobs returns hourly succeeded totals for the last 24
// hours, current hour first.
func (a *API) HourlySucceededJobs(ctx context.Context) ([]TimelinePoint, error) {
	return a.hourly(ctx, TypeSucceeded)
}

// HourlyFailedJobs returns hourly failed totals for the last 24 hours,
// current hour first.
func (a *API) HourlyFailedJobs(ctx context.Context) ([]TimelinePoint, error) {
	return a.hourly(ctx, TypeFailed)
}

func (a *API) daily(ctx context.Context, typ string) ([]TimelinePoint, error) {
	day := a.now().UTC().Truncate(24 * time.Hour)
	out := make([]TimelinePoint, 0, timelineDays)
	for i := 0; i < timelineDays; i++ {
		t := day.AddDate(0, 0, -i)
		n, err := a.src.CounterValue(ctx, DailyKey(typ, t))
		if err != nil {
			return nil, err
		}
		out = append(out, TimelinePoint{Time: t, Count: n})
	}
	return out, nil
}

func (a *API) hourly(ctx context.Context, typ string) ([]TimelinePoint, error) {
	hour := a.now().UTC().Truncate(time.Hour)
	out := make([]TimelinePoint, 0, timelineHours)
	for i := 0; i < timelineHours; i++ {
		t := hour.Add(-time.Duration(i) * time.Hour)
		n, err := a.src.CounterValue(ctx, HourlyKey(typ, t))
		if err != nil {
			return nil, err
		}
		out = append(out, TimelinePoint{Time: t, Count: n})
	}
	return out, nil
}

// ── helpers ──────────────────────────────────────────────────────

// eachJob loads the job of every entry, skipping entries whose job is gone.
func (a *API) eachJob(ctx context.Context, entries []*queue.Entry, fn func(*queue.Entry, *job.Job)) error {
	for _, e := range entries {
		j, err := a.src.GetJob(ctx, e.JobID)
		if errors.Is(err, jobstore.ErrJobNotFound) || errors.Is(err, jobstore.ErrInvalidArgument) {
			continue
		}
		if err != nil {
			return fmt.Errorf("monitor: load job %s: %w", e.JobID, err)
		}
		fn(e, j)
	}
	return nil
}

func listByState[T any](ctx context.Context, a *API, state string, from, count int, fn func(JobSummary) T) ([]T, error) {
	jobs, err := a.src.JobsByState(ctx, state, from, count)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, fn(a.summarize(j, stateRecord(j, state))))
	}
	return out, nil
}

func (a *API) summarize(j *job.Job, st *job.State) JobSummary {
	d := job.Decode(j, a.resolver)
	s := JobSummary{
		ID:         j.ID,
		Invocation: d.Invocation,
		LoadError:  loadError(d),
		Arguments:  j.Arguments,
		CreatedAt:  j.CreatedAt,
		ExpireAt:   j.ExpireAt,
		StateName:  j.StateName,
	}
	if st != nil {
		s.StateReason = st.Reason
		s.StateData = st.Data
	}
	return s
}

// stateRecord returns the most recent history entry named name.
func stateRecord(j *job.Job, name string) *job.State {
	for i := len(j.StateHistory) - 1; i >= 0; i-- {
		if j.StateHistory[i].Name == name {
			s := j.StateHistory[i]
			return &s
		}
	}
	return nil
}

func loadError(d *job.Data) string {
	if d.LoadErr == nil {
		return ""
	}
	return d.LoadErr.Error()
}

// parseStateTime reads a timestamp from state data. Values are either
// Unix milliseconds or RFC 3339 strings.
func parseStateTime(data map[string]string, key string) *time.Time {
	v, ok := data[key]
	if !ok || v == "" {
		return nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}
