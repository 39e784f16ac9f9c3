package kv

import "time"

// Counter is one signed delta for a counter key. Fine-grained rows are
// written by transactions; aggregated rows hold folded sums, one per key.
type Counter struct {
	Key      string     `json:"key"`
	Value    int64      `json:"value"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// SetEntry is a member of a scored set. (Key, Value) is unique.
type SetEntry struct {
	Key      string     `json:"key"`
	Value    string     `json:"value"`
	Score    float64    `json:"score"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// ListEntry is one element of a list, in insertion order. Duplicates are
// allowed.
type ListEntry struct {
	Key      string     `json:"key"`
	Value    string     `json:"value"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// HashEntry is one field of a hash. (Key, Field) is unique.
type HashEntry struct {
	Key      string     `json:"key"`
	Field    string     `json:"field"`
	Value    string     `json:"value"`
	ExpireAt *time.Time `json:"expire_at,omitempty"`
}

// Kind names a key-value collection whose rows share a key-wide expiry.
type Kind string

// Kinds that support key-wide expire and persist.
const (
	KindSet  Kind = "set"
	KindList Kind = "list"
	KindHash Kind = "hash"
)

// MinExpiry returns the earliest non-nil expiry, or nil when none is set.
func MinExpiry(expiries ...*time.Time) *time.Time {
	var out *time.Time
	for _, e := range expiries {
		if e == nil {
			continue
		}
		if out == nil || e.Before(*out) {
			t := *e
			out = &t
		}
	}
	return out
}
