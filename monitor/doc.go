// Package monitor provides the read projections behind operational
// dashboards: queue summaries, server lists, job details, per-state paged
// job lists, state counts and the daily and hourly succeeded/failed
// timelines.
//
// Paged lists of a state are newest first; queue lists are in queue order.
// Jobs whose invocation cannot be decoded are still listed, with a nil
// Invocation and LoadError set.
//
// Timeline buckets read the counters written by job processing under
// "stats:<type>:YYYY-MM-DD" and "stats:<type>:YYYY-MM-DD-HH" keys (see
// [DailyKey] and [HourlyKey]).
//
// [Collector] exports the statistics to Prometheus.
package monitor
