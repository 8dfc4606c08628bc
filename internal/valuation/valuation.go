// Package valuation resolves item values against a remote pricing service
// and ranks the results.
//
// Unresolvable items get zero values, never errors; a pricing outage
// degrades a run to zero value instead of aborting the flow.
package valuation

import (
	"context"
	"sort"

	"maptrack/internal/snapshot"
)

// ItemValue pairs an item with its resolved unit values.
type ItemValue struct {
	Item         snapshot.ItemRecord
	ChaosEach    float64
	ExaltedEach  float64
	ChaosTotal   float64
	ExaltedTotal float64
	Category     Category
}

// Result is the outcome of valuating one diff's added items.
type Result struct {
	TotalExalted float64
	TotalChaos   float64
	Items        []ItemValue
	Top3         []ItemValue
}

// Valuer resolves values for a sequence of item records.
type Valuer interface {
	Value(ctx context.Context, items []snapshot.ItemRecord) (*Result, error)
}

// Offline is a Valuer for running without a pricing endpoint: every item
// resolves to zero value, categories still come from the name heuristic.
type Offline struct{}

// Value implements Valuer.
func (Offline) Value(_ context.Context, items []snapshot.ItemRecord) (*Result, error) {
	values := make([]ItemValue, len(items))
	for i, it := range items {
		values[i] = ItemValue{Item: it, Category: Categorize(it.Name, it.BaseType)}
	}
	return Finalize(values), nil
}

// stack returns the effective stack size of an item, never below one.
func stack(it snapshot.ItemRecord) int {
	if it.StackSize > 1 {
		return it.StackSize
	}
	return 1
}

// Finalize computes line totals, grand totals and the top-3 ranking for a
// set of per-item unit values. Negative unit values are treated as zero.
func Finalize(items []ItemValue) *Result {
	res := &Result{Items: items}
	for i := range res.Items {
		iv := &res.Items[i]
		if iv.ChaosEach < 0 {
			iv.ChaosEach = 0
		}
		if iv.ExaltedEach < 0 {
			iv.ExaltedEach = 0
		}
		n := float64(stack(iv.Item))
		iv.ChaosTotal = iv.ChaosEach * n
		iv.ExaltedTotal = iv.ExaltedEach * n
		res.TotalChaos += iv.ChaosTotal
		res.TotalExalted += iv.ExaltedTotal
	}
	res.Top3 = TopK(res.Items, 3)
	return res
}

// TopK returns the k most valuable entries by exalted line total, sorted
// descending. Only entries with positive value qualify; ties keep
// first-seen order.
func TopK(items []ItemValue, k int) []ItemValue {
	ranked := make([]ItemValue, 0, len(items))
	for _, iv := range items {
		if iv.ExaltedTotal > 0 {
			ranked = append(ranked, iv)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].ExaltedTotal > ranked[j].ExaltedTotal
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
