// Package jobstore is a persistence adapter for background job processing
// built on an embedded, single-file document database.
//
// It stores everything a job-processing framework needs between runs: job
// records with their state history, queue entries with claim/reclaim
// semantics, counters, sets, lists, hashes, distributed locks and server
// heartbeats. Execution engines and state machines are callers of the
// storage contract; this module only persists.
//
// # Quick Start
//
//	st, err := storage.Open("jobs.db",
//	    storage.WithConfig(jobstore.DefaultConfig()),
//	)
//	if err != nil { ... }
//	defer st.Close()
//
//	conn := st.Connection()
//	jobID, _ := conn.CreateExpiredJob(ctx, inv, nil, time.Now(), time.Hour)
//	tx := conn.CreateWriteTransaction()
//	_ = tx.AddToQueue("default", jobID)
//	_ = tx.Commit(ctx)
//
//	claim, _ := conn.FetchNextJob(ctx, []string{"critical", "default"})
//	defer claim.Close()
//
// # Architecture
//
// Each subsystem (job, queue, kv, cluster, lock, monitor, maintenance)
// defines its own store interface. The bbolt backend in store/bolt
// implements all of them over one database file.
package jobstore
