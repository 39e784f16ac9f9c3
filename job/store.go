package job

import "context"

// Store defines the persistence contract for job records.
type Store interface {
	// InsertJob persists j, assigns j.ID and returns it.
	InsertJob(ctx context.Context, j *Job) (string, error)

	// GetJob retrieves a job by ID. Returns jobstore.ErrJobNotFound when
	// no such job exists.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// UpdateJob reads the job, applies fn and writes it back in one atomic
	// step. Returns jobstore.ErrJobNotFound when no such job exists.
	UpdateJob(ctx context.Context, jobID string, fn func(*Job) error) error
}
