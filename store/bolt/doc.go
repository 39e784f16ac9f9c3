// Package bolt implements store.Store on go.etcd.io/bbolt, a single-file
// embedded key/value database, with documents encoded as BSON.
//
// Each collection is a bucket named "<prefix>_<collection>" (prefix
// defaults to "hangfire"). Keys are laid out for the queries the store
// serves:
//
//	job                 seq                     job document
//	job_state           state + seq             state index
//	jobQueue            queue + seq             queue entry (FIFO per queue)
//	jobQueue_id         seq                     entry id → jobQueue key
//	counter             key + seq               fine-grained counter row
//	aggregatedcounter   key                     folded counter row
//	set                 key + value             member (unique)
//	list                key + seq               element (insertion order)
//	hash                key + field             field (unique)
//	server              server id               server record
//	locks               resource                lock row (unique)
//
// User keys are length-prefixed, so a prefix scan of one key never
// reaches rows of another. bbolt serializes write transactions; every
// read-modify-write in this package, including queue claims and counter
// aggregation, runs inside one.
//
// A bbolt file can be opened once per process. [Open] shares one handle per
// path through [DefaultRegistry]; [New] wraps a handle the caller owns.
package bolt
