// Package store defines the aggregate persistence interface.
//
// Each subsystem (job, queue, kv, cluster, lock, monitor, maintenance)
// defines its own store interface. The composite [Store] composes them all,
// so a single backend satisfies every subsystem's persistence contract.
//
// # Backends
//
// store/bolt keeps every collection in one bbolt file. Documents are BSON
// encoded; keys are laid out so that per-key reads are prefix scans and
// claims run inside a single serialized write transaction.
//
//	st, err := bolt.Open("jobs.db", bolt.WithPrefix("hangfire"))
//	if err != nil { ... }
//	if err := st.Migrate(ctx); err != nil { ... }
//	defer st.Close()
//
// store/memory holds everything in process memory behind one mutex. It has
// the same observable semantics and suits tests and throwaway servers:
//
//	st, err := storage.New(memory.New())
package store
