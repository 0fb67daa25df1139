package render

import (
	"math"

	"yashubustudio/citelink/citation"
)

func sameRecommendations(a, b []citation.Recommendation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameRecommendation(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sameRecommendation(a, b citation.Recommendation) bool {
	if a.AdID != b.AdID || a.ProductID != b.ProductID || a.Title != b.Title ||
		a.Reason != b.Reason || a.AdmeshLink != b.AdmeshLink || a.URL != b.URL {
		return false
	}
	if !sameScore(a.IntentMatchScore, b.IntentMatchScore) {
		return false
	}
	return sameStrings(a.Keywords, b.Keywords)
}

// NaN scores rank as zero, so two NaNs are treated as equal.
func sameScore(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

func sameOptions(a, b citation.Options) bool {
	if a.Strategy.Normalize() != b.Strategy.Normalize() || a.Template != b.Template {
		return false
	}
	if len(a.Patterns) != len(b.Patterns) || len(a.ExternalLinks) != len(b.ExternalLinks) {
		return false
	}
	for i := range a.Patterns {
		if !samePattern(a.Patterns[i], b.Patterns[i]) {
			return false
		}
	}
	for k, v := range a.ExternalLinks {
		if w, ok := b.ExternalLinks[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func samePattern(a, b citation.Pattern) bool {
	if a.Pattern != b.Pattern || a.Regex != b.Regex ||
		a.RecommendationIndex != b.RecommendationIndex || a.LinkText != b.LinkText {
		return false
	}
	switch {
	case a.Compiled == nil && b.Compiled == nil:
		return true
	case a.Compiled == nil || b.Compiled == nil:
		return false
	default:
		return a.Compiled.String() == b.Compiled.String()
	}
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
