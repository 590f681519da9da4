package ranking

import "sort"

// SortByRank returns a copy of results ordered by descending rank. Ties
// keep their row order.
func SortByRank(results []RankedDeveloper) []RankedDeveloper {
	sorted := make([]RankedDeveloper, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank > sorted[j].Rank
	})
	return sorted
}

// Top returns the first k results, or all of them when k <= 0
func Top(results []RankedDeveloper, k int) []RankedDeveloper {
	if k <= 0 || k >= len(results) {
		return results
	}
	return results[:k]
}
