// Package series holds the time-windowed reconciliation primitives shared by
// every day-series the dispatcher maintains: window filtering, merge of a
// rolling snapshot against a fresh load, and left-padding to local midnight.
package series

import (
	"time"

	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/griddash/griddash/pkg/types"
)

// Keep returns the points within [from, to).
func Keep[V any](s types.Series[V], from, to time.Time) types.Series[V] {
	out := make(types.Series[V], 0, len(s))
	for _, p := range s {
		if !p.TS.Before(from) && p.TS.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

// AppendTail appends tail to head and returns the result.
func AppendTail[V any](head, tail types.Series[V]) types.Series[V] {
	return append(head, tail...)
}

// Merge reconciles the previous snapshot of a series against a freshly loaded
// one. A new calendar day discards the previous snapshot entirely; within the
// same day the already-elapsed hours (before loadStart, the fresh load's
// generation time truncated to the hour) are kept from the previous snapshot
// and the fresh load provides the remainder. The result is clipped to
// [dayStart, dayEnd).
func Merge[V any](prev types.Series[V], prevDay timeutil.Date, fresh types.Series[V], freshDay timeutil.Date, loadStart, dayStart, dayEnd time.Time) types.Series[V] {
	fresh = Keep(fresh, dayStart, dayEnd)
	if prevDay != freshDay {
		return fresh
	}
	return AppendTail(Keep(prev, dayStart, loadStart), fresh)
}

// PadStart synthesizes zero-value points walking backward from the series'
// first point to from, stepping by step, so every day-series starts exactly at
// local midnight with no gaps. An empty series is returned unchanged.
func PadStart[V any](s types.Series[V], from time.Time, step time.Duration) types.Series[V] {
	if len(s) == 0 || !s[0].TS.After(from) {
		return s
	}
	var zero V
	var pad types.Series[V]
	for t := from; t.Before(s[0].TS); t = t.Add(step) {
		pad = append(pad, types.Point[V]{TS: t, V: zero})
	}
	return append(pad, s...)
}
