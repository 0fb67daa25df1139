package citation

import (
	"math"
	"sort"
)

// Rank drops recommendations that cannot be linked and orders the rest by
// intent match score, highest first. Equal scores keep their input order.
func Rank(recs []Recommendation) []Recommendation {
	out := make([]Recommendation, 0, len(recs))
	for _, r := range recs {
		if !r.Usable() {
			continue
		}
		r = r.Clone()
		if math.IsNaN(r.IntentMatchScore) {
			r.IntentMatchScore = 0
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IntentMatchScore > out[j].IntentMatchScore
	})
	return out
}

func clampIndex(idx, n int) int {
	if idx < 0 {
		return 0
	}
	if idx >= n {
		return n - 1
	}
	return idx
}
