package jobstore

import "errors"

var (
	// Store errors.
	ErrStoreClosed     = errors.New("jobstore: store closed")
	ErrMigrationFailed = errors.New("jobstore: migration failed")
	ErrInvalidConfig   = errors.New("jobstore: invalid config")

	// Not found errors.
	ErrJobNotFound   = errors.New("jobstore: job not found")
	ErrEntryNotFound = errors.New("jobstore: queue entry not found")

	// Contract violations. Callers are expected to fix the call, not retry it.
	ErrInvalidArgument = errors.New("jobstore: invalid argument")
	ErrInvalidRange    = errors.New("jobstore: invalid range")
	ErrEmptyQueues     = errors.New("jobstore: queue list is empty")

	// Lock errors.
	ErrLockTimeout = errors.New("jobstore: distributed lock timeout")
	ErrLockNotHeld = errors.New("jobstore: distributed lock not held")
)
