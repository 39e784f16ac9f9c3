package monitor

import (
	"time"

	"github.com/xraph/jobstore/job"
)

// JobSummary is the common view of a job in the paged lists.
type JobSummary struct {
	ID          string            `json:"id"`
	Invocation  *job.Invocation   `json:"invocation,omitempty"`
	LoadError   string            `json:"load_error,omitempty"`
	Arguments   string            `json:"arguments"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpireAt    *time.Time        `json:"expire_at,omitempty"`
	StateName   string            `json:"state_name,omitempty"`
	StateReason string            `json:"state_reason,omitempty"`
	StateData   map[string]string `json:"state_data,omitempty"`
}

// EnqueuedJob is a job waiting in a queue.
type EnqueuedJob struct {
	JobSummary
	EnqueuedAt *time.Time `json:"enqueued_at,omitempty"`
}

// FetchedJob is a job claimed from a queue but not yet acknowledged.
type FetchedJob struct {
	JobSummary
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

// ProcessingJob is a job in the Processing state.
type ProcessingJob struct {
	JobSummary
	ServerID  string     `json:"server_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// ScheduledJob is a job in the Scheduled state.
type ScheduledJob struct {
	JobSummary
	EnqueueAt   *time.Time `json:"enqueue_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// SucceededJob is a job in the Succeeded state.
type SucceededJob struct {
	JobSummary
	Result        string     `json:"result,omitempty"`
	TotalDuration *int64     `json:"total_duration_ms,omitempty"`
	SucceededAt   *time.Time `json:"succeeded_at,omitempty"`
}

// FailedJob is a job in the Failed state.
type FailedJob struct {
	JobSummary
	Reason           string     `json:"reason,omitempty"`
	ExceptionType    string     `json:"exception_type,omitempty"`
	ExceptionMessage string     `json:"exception_message,omitempty"`
	ExceptionDetails string     `json:"exception_details,omitempty"`
	FailedAt         *time.Time `json:"failed_at,omitempty"`
}

// DeletedJob is a job in the Deleted state.
type DeletedJob struct {
	JobSummary
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// QueueSummary describes one queue and its first waiting jobs.
type QueueSummary struct {
	Name      string        `json:"name"`
	Length    int64         `json:"length"`
	Fetched   int64         `json:"fetched"`
	FirstJobs []EnqueuedJob `json:"first_jobs"`
}

// ServerSummary describes a registered processing server.
type ServerSummary struct {
	Name         string    `json:"name"`
	WorkersCount int       `json:"workers_count"`
	Queues       []string  `json:"queues"`
	StartedAt    time.Time `json:"started_at"`
	Heartbeat    time.Time `json:"heartbeat"`
}

// JobDetails is the full view of one job. History is newest first.
type JobDetails struct {
	ID         string            `json:"id"`
	Invocation *job.Invocation   `json:"invocation,omitempty"`
	LoadError  string            `json:"load_error,omitempty"`
	Arguments  string            `json:"arguments"`
	CreatedAt  time.Time         `json:"created_at"`
	ExpireAt   *time.Time        `json:"expire_at,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	History    []job.State       `json:"history"`
}

// Statistics is the dashboard summary.
type Statistics struct {
	Enqueued   int64 `json:"enqueued"`
	Scheduled  int64 `json:"scheduled"`
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Deleted    int64 `json:"deleted"`
	Servers    int64 `json:"servers"`
	Queues     int64 `json:"queues"`
	Recurring  int64 `json:"recurring"`
}

// TimelinePoint is one bucket of a succeeded or failed history.
type TimelinePoint struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}
