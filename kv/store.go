package kv

import (
	"context"
	"time"
)

// Reader defines read access to counters, sets, lists and hashes.
// Readers return rows in insertion order.
type Reader interface {
	// CounterValue returns the sum of all fine and aggregated rows for key.
	CounterValue(ctx context.Context, key string) (int64, error)

	// SetEntries returns the members of a set.
	SetEntries(ctx context.Context, key string) ([]SetEntry, error)

	// ListEntries returns the elements of a list, oldest first.
	ListEntries(ctx context.Context, key string) ([]ListEntry, error)

	// HashEntries returns the fields of a hash.
	HashEntries(ctx context.Context, key string) ([]HashEntry, error)
}

// Writer defines the mutations issued by write transactions.
type Writer interface {
	// InsertCounter appends a fine-grained counter row.
	InsertCounter(ctx context.Context, c Counter) error

	// UpsertSetEntry inserts a member or updates score and expiry in place.
	UpsertSetEntry(ctx context.Context, e SetEntry) error

	// RemoveSetEntry deletes one member. Missing members are ignored.
	RemoveSetEntry(ctx context.Context, key, value string) error

	// InsertListEntry appends an element to a list.
	InsertListEntry(ctx context.Context, e ListEntry) error

	// RemoveListValue deletes every element of key equal to value.
	RemoveListValue(ctx context.Context, key, value string) error

	// TrimList keeps the elements whose zero-based insertion position lies
	// in [start, end] and deletes the rest. start > end deletes everything.
	TrimList(ctx context.Context, key string, start, end int) error

	// UpsertHashEntry sets a field, replacing any previous value.
	UpsertHashEntry(ctx context.Context, e HashEntry) error

	// RemoveKey deletes every row of key in collection kind.
	RemoveKey(ctx context.Context, kind Kind, key string) error

	// SetKeyExpiry sets (or clears, with nil) the expiry of every row of key
	// in collection kind.
	SetKeyExpiry(ctx context.Context, kind Kind, key string, expireAt *time.Time) error
}

// Store combines read and write access.
type Store interface {
	Reader
	Writer
}
