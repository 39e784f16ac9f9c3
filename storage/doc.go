// Package storage is the entry point of jobstore: it opens the database and
// exposes the connection contract a job-processing framework programs
// against.
//
// A Storage owns one share of a database handle (see store/bolt.Registry)
// and one queue fetcher. Connections are thin views over it; create as many
// as needed. Distributed locks belong to the connection that took them.
//
//	st, err := storage.Open("jobs.db", storage.WithLogger(logger))
//	if err != nil { ... }
//	defer st.Close()
//
//	go st.Run(ctx) // expiration manager and counters aggregator
//
//	conn := st.Connection()
//	claim, err := conn.FetchNextJob(ctx, []string{"critical", "default"})
//
// Read operations follow the conventions of the processing framework:
// missing jobs yield nil rather than an error, TTL reads return NoTTL when
// nothing expires, list reads are newest first and set reads are in
// insertion order.
package storage
