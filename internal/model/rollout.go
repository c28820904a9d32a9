package model

import (
	"cmp"
	"slices"

	"github.com/samcharles93/organ/internal/tensor"
)

// SortByLength returns a copy of r with rows ordered by descending length.
// Ties keep their sampled order.
func (r *Rollout) SortByLength() *Rollout {
	order := make([]int, len(r.Lengths))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(r.Lengths[b], r.Lengths[a])
	})
	lengths := make([]int, len(order))
	for i, src := range order {
		lengths[i] = r.Lengths[src]
	}
	return &Rollout{
		Sequences: r.Sequences.Gather(order),
		Rewards:   tensor.GatherRows(&r.Rewards, order),
		Lengths:   lengths,
	}
}
