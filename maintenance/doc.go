// Package maintenance runs the background upkeep of a job store.
//
// [ExpirationManager] deletes rows whose expiry has passed, collection by
// collection in [SweepOrder]; a failing collection is logged and the sweep
// moves on. [CountersAggregator] folds fine-grained counter rows into one
// aggregated row per key in batches of [CountersPerPass], pausing
// [DelayBetweenPasses] between full batches. Both run once at start and
// then on a schedule: a fixed interval by default, or any cron expression
// accepted by [ParseSchedule]. [Runner] runs them side by side.
package maintenance
