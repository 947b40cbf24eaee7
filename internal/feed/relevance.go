// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package feed

import "strings"

// scoreBaseline is the relevance score of a text matching no keywords.
const scoreBaseline = 0.5

// Scorer maps lowercase keywords to fixed score increments. Scoring is a
// pure lookup over the table: no learning, no adaptation.
type Scorer map[string]float64

// Score returns baseline + the increment of every keyword present in text
// (case-insensitive substring match), clipped to [0,1]. An empty text scores
// the baseline.
func (s Scorer) Score(text string) float64 {
	score := scoreBaseline
	lower := strings.ToLower(text)
	for kw, w := range s {
		if strings.Contains(lower, kw) {
			score += w
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	if score < 0.0 {
		score = 0.0
	}
	return score
}

// DefaultScorer returns the static keyword-weight table used by the pollers.
func DefaultScorer() Scorer {
	return Scorer{
		"consciousness": 0.15,
		"organoid":      0.15,
		"neural":        0.10,
		"plasticity":    0.10,
		"cognition":     0.10,
		"emergence":     0.10,
		"self-model":    0.10,
		"memory":        0.05,
		"brain":         0.05,
		"attention":     0.05,
		"learning":      0.05,
		"embodiment":    0.05,
	}
}
