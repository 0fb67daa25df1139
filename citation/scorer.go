package citation

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// Scorer fills in intent match scores from embedding similarity between the
// narrative and each recommendation's title, reason and keywords.
type Scorer struct {
	embedder Embedder
}

// NewScorer wraps an embedder.
func NewScorer(e Embedder) *Scorer {
	return &Scorer{embedder: e}
}

// Score returns a copy of recs with scores computed according to mode.
// ScoringMissing only touches zero scores; ScoringAlways replaces all of them.
func (s *Scorer) Score(ctx context.Context, text string, recs []Recommendation, mode ScoringMode) ([]Recommendation, error) {
	out := make([]Recommendation, len(recs))
	targets := make([]int, 0, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
		switch mode {
		case ScoringAlways:
			targets = append(targets, i)
		case ScoringMissing:
			if r.IntentMatchScore == 0 || math.IsNaN(r.IntentMatchScore) {
				targets = append(targets, i)
			}
		}
	}
	if len(targets) == 0 || s == nil || s.embedder == nil || strings.TrimSpace(text) == "" {
		return out, nil
	}
	query, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	docs := make([]string, len(targets))
	for i, idx := range targets {
		docs[i] = recommendationDocument(out[idx])
	}
	vecs, err := s.embedder.EmbedTexts(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed recommendations: %w", err)
	}
	for i, idx := range targets {
		out[idx].IntentMatchScore = float64(clamp01(cosineSimilarity(query, vecs[i])))
	}
	return out, nil
}

func recommendationDocument(r Recommendation) string {
	parts := make([]string, 0, 3)
	if v := strings.TrimSpace(r.Title); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(r.Reason); v != "" {
		parts = append(parts, v)
	}
	if len(r.Keywords) > 0 {
		parts = append(parts, strings.Join(r.Keywords, ", "))
	}
	return strings.Join(parts, "\n")
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		fa := float64(a[i])
		fb := float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
