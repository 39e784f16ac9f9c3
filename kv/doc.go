// Package kv defines the auxiliary key-value collections of the store:
// counters, scored sets, lists and hashes.
//
// A counter's logical value is the sum of its fine-grained rows and its
// aggregated row. [Fold] and [MergeExpiry] define how fine rows collapse
// into the aggregated row so that sum never changes.
package kv
