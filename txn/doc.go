// Package txn provides the write journal used by job state transitions.
//
// A [Transaction] collects mutations (job state and expiry changes, queue
// appends, counter deltas, set, list and hash edits) and applies them in
// the order they were queued when [Transaction.Commit] runs:
//
//	tx := txn.New(store)
//	_ = tx.SetJobState(id, job.State{Name: job.StateSucceeded})
//	_ = tx.IncrementCounter("stats:succeeded")
//	_ = tx.ExpireJob(id, 24*time.Hour)
//	if err := tx.Commit(ctx); err != nil {
//		var ce *txn.CommitError
//		if errors.As(err, &ce) {
//			// ce.Applied commands reached the store before ce.Command failed.
//		}
//	}
//
// Arguments are validated when a command is queued, so a malformed call
// fails with jobstore.ErrInvalidArgument before anything is written.
// Commit is not atomic and does not retry.
package txn
