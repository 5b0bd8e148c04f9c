package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Criterion names for component scores and weights.
const (
	CriterionSemantic   = "semantic"
	CriterionSkills     = "skills"
	CriterionExperience = "experience"
	CriterionLocation   = "location"
)

// ScoringWeights holds the per-criterion blend weights. Weights must be
// non-negative and need not sum to 1: they are normalized at combination
// time. The zero value is invalid; use Validate before scoring.
type ScoringWeights struct {
	Semantic   float64
	Skills     float64
	Experience float64
	Location   float64
}

// DefaultScoringWeights returns the semantic-dominant default blend.
func DefaultScoringWeights() ScoringWeights {
	return ScoringWeights{
		Semantic:   0.5,
		Skills:     0.3,
		Experience: 0.1,
		Location:   0.1,
	}
}

// Validate rejects negative weights and all-zero weight sets eagerly,
// before any scoring work happens.
func (w ScoringWeights) Validate() error {
	for _, c := range []struct {
		name string
		val  float64
	}{
		{CriterionSemantic, w.Semantic},
		{CriterionSkills, w.Skills},
		{CriterionExperience, w.Experience},
		{CriterionLocation, w.Location},
	} {
		if c.val < 0 {
			return fmt.Errorf("weight %q is negative (%g): %w", c.name, c.val, ErrInvalidWeights)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("all weights are zero: %w", ErrInvalidWeights)
	}
	return nil
}

// Sum returns the total weight mass.
func (w ScoringWeights) Sum() float64 {
	return w.Semantic + w.Skills + w.Experience + w.Location
}

// Normalized returns weights scaled so they sum to 1.
func (w ScoringWeights) Normalized() ScoringWeights {
	sum := w.Sum()
	if sum == 0 {
		return w
	}
	return ScoringWeights{
		Semantic:   w.Semantic / sum,
		Skills:     w.Skills / sum,
		Experience: w.Experience / sum,
		Location:   w.Location / sum,
	}
}

// Fingerprint returns a stable hash of the weight set for cache keys.
func (w ScoringWeights) Fingerprint() string {
	s := fmt.Sprintf("semantic=%.9f;skills=%.9f;experience=%.9f;location=%.9f",
		w.Semantic, w.Skills, w.Experience, w.Location)
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:8])
}
