// Package ranking orders competitors by total score with competition-style
// ties (1, 1, 3).
package ranking

import (
	"math"
	"sort"

	"github.com/okian/belay/internal/domain/model"
	"github.com/okian/belay/internal/domain/types"
)

// tieEpsilon absorbs float summation noise; scores are multiples of a tenth.
const tieEpsilon = 1e-9

// Rank returns competitors sorted by total descending. Equal totals keep
// input order and share the rank of the first of them. Missing or
// non-finite totals count as zero. Rank neither retains nor mutates its
// arguments.
func Rank(competitors []*model.Competitor, totals map[string]float64) []types.Entry {
	out := make([]types.Entry, 0, len(competitors))
	for _, c := range competitors {
		t := totals[c.Name]
		if math.IsNaN(t) || math.IsInf(t, 0) {
			t = 0
		}
		out = append(out, types.Entry{Competitor: c.Name, Club: c.Club, Total: t})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total-out[j].Total > tieEpsilon
	})
	Assign(out)
	return out
}

// Assign sets competition ranks on entries already sorted by total.
func Assign(entries []types.Entry) {
	for i := range entries {
		if i > 0 && Tied(entries[i].Total, entries[i-1].Total) {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// Tied reports whether two totals rank equally.
func Tied(a, b float64) bool {
	return math.Abs(a-b) <= tieEpsilon
}

// Top returns at most limit entries; limit <= 0 returns all.
func Top(entries []types.Entry, limit int) []types.Entry {
	if limit <= 0 || limit >= len(entries) {
		return entries
	}
	return entries[:limit]
}
