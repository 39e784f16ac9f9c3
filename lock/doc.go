// Package lock implements named distributed locks on top of the store.
//
// A lock is a row keyed by resource that records its owner and an expiry.
// A [Locker] acquires locks for one owner (one storage connection), polls
// with jittered backoff until a timeout, counts nested acquisitions and
// keeps held rows alive by renewing them every half lifetime. A crashed
// owner blocks a resource for at most one lifetime.
//
//	l, err := locker.Acquire(ctx, "recurring-jobs:lock", 5*time.Second)
//	if err != nil {
//	    return err // wraps jobstore.ErrLockTimeout when busy
//	}
//	defer l.Close()
package lock
