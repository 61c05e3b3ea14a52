package algo

import (
	"slices"
	"sort"
)

// RankDescending orders column indices by score in descending order and
// returns the top 'k' of them. Equal scores keep their original order.
// The returned indices are sorted ascending so callers can report the
// winners in column order. If k is greater than the number of scores,
// every index is returned.
func RankDescending(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k < 0 {
		k = 0
	}
	if len(idx) > k {
		idx = idx[:k]
	}
	slices.Sort(idx)
	return idx
}
