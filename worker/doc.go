// Package worker hosts job processing on top of a storage connection.
//
// A [Pool] announces itself as a server, heartbeats, and runs a number of
// fetch loops that claim queue entries and hand them to an [Executor].
// The Executor moves the job to Processing, runs the registered handler
// through the middleware chain, and records the outcome in a single write
// transaction before acknowledging the entry:
//
//   - success: Succeeded state, job expires after the succeeded TTL
//   - failure with retries left: Scheduled state and an entry in the
//     "schedule" set, picked up again by the [Scheduler]
//   - failure otherwise: Failed state, job persisted
//
// Succeeded and failed outcomes also bump the stats:<type> counters and
// the daily and hourly timeline counters read by the monitor package.
package worker
