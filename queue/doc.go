// Package queue implements the claim protocol over named job queues.
//
// A queue [Entry] is available while FetchedAt is nil. [Fetcher.Fetch]
// claims the first available entry across the requested queues, scanning
// them in order so earlier queues take priority. When none is available it
// falls back to entries whose claim is older than the invisibility timeout,
// which recovers work from crashed workers. With nothing to claim it waits
// for the poll interval and tries again until the context is done.
//
//	claim, err := fetcher.Fetch(ctx, []string{"critical", "default"})
//	if err != nil {
//	    return err
//	}
//	defer claim.Close() // releases unless acknowledged
//
//	// run the job ...
//	return claim.Acknowledge(ctx)
//
// The Store is expected to make ClaimNext a single atomic compare-and-set,
// so two fetchers never receive the same entry.
//
// # Claim Limits
//
// [Manager] caps claims per queue for the local process with a token-bucket
// rate limiter (golang.org/x/time/rate) and a held-claims gate:
//
//	limits := queue.NewManager(
//	    queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	    queue.Config{Name: "email", MaxConcurrency: 4},
//	)
//	fetcher := queue.NewFetcher(store, poll, invisibility, queue.WithLimits(limits))
//
// Queues over their limit are skipped for the round.
package queue
