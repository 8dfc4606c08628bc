// Package diff computes added and removed item sets between two inventory
// snapshots.
package diff

import (
	"fmt"

	"maptrack/internal/snapshot"
)

// Result holds the two disjoint outcome sets of a diff. Order follows the
// source order of the input sides; no further ordering is promised.
type Result struct {
	Added   []snapshot.ItemRecord
	Removed []snapshot.ItemRecord
}

// key derives a stable identity for an item. The source's own id wins when
// present; otherwise a positional composite stands in, because stacked or
// re-indexed items may not retain identifiers across fetches.
func key(it snapshot.ItemRecord) string {
	if it.ID != "" {
		return "id:" + it.ID
	}
	return fmt.Sprintf("pos:%s|%d|%d|%s", it.TypeLine, it.X, it.Y, it.BaseType)
}

// Diff returns the items present only in after (Added) and only in before
// (Removed). An item whose derived key appears on both sides is reported as
// unchanged even if its position or stack size moved.
func Diff(before, after []snapshot.ItemRecord) Result {
	beforeKeys := make(map[string]struct{}, len(before))
	for _, it := range before {
		beforeKeys[key(it)] = struct{}{}
	}
	afterKeys := make(map[string]struct{}, len(after))
	for _, it := range after {
		afterKeys[key(it)] = struct{}{}
	}

	var res Result
	for _, it := range after {
		if _, ok := beforeKeys[key(it)]; !ok {
			res.Added = append(res.Added, it)
		}
	}
	for _, it := range before {
		if _, ok := afterKeys[key(it)]; !ok {
			res.Removed = append(res.Removed, it)
		}
	}
	return res
}
