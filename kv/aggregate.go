package kv

import "time"

// MergeExpiry combines the expiries of two counter contributions to the
// same key. A contribution that never expires keeps the key alive forever,
// so nil wins; otherwise the later expiry wins.
func MergeExpiry(a, b *time.Time) *time.Time {
	if a == nil || b == nil {
		return nil
	}
	if b.After(*a) {
		t := *b
		return &t
	}
	t := *a
	return &t
}

// Fold groups counter rows by key, summing values and merging expiries.
// The result preserves the order in which keys were first seen.
func Fold(rows []Counter) []Counter {
	index := make(map[string]int, len(rows))
	out := make([]Counter, 0, len(rows))
	for _, r := range rows {
		i, ok := index[r.Key]
		if !ok {
			index[r.Key] = len(out)
			out = append(out, r)
			continue
		}
		out[i].Value += r.Value
		out[i].ExpireAt = MergeExpiry(out[i].ExpireAt, r.ExpireAt)
	}
	return out
}
