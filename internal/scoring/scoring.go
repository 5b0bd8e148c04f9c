// Package scoring blends semantic similarity with structured feature
// alignment into an explainable weighted score. Score is a pure function:
// identical inputs always produce an identical MatchResult.
package scoring

import (
	"fmt"
	"sort"

	"github.com/talentcloud/matchdex/internal/domain"
)

// Policy holds the tunable parts of structured scoring. The exact
// partial-location taxonomy and the deficit-to-zero experience curve are
// deployment policy, not engine constants.
type Policy struct {
	// MaxExperienceDeficit is the years-short at which the experience
	// component reaches 0. The component falls linearly from 1 at gap 0.
	MaxExperienceDeficit float64
	// LocationPartial is the score for a same-region or remote-eligible match.
	LocationPartial float64
	// LocationNeutral is the score when either side has no location; absence
	// is not penalized.
	LocationNeutral float64
	// Regions maps a normalized location to its region for partial matching.
	Regions map[string]string
}

// DefaultPolicy returns the documented default scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxExperienceDeficit: 5,
		LocationPartial:      0.5,
		LocationNeutral:      0.5,
	}
}

// Engine computes match scores under a fixed policy.
type Engine struct {
	policy Policy
}

// NewEngine creates a scoring engine, filling zero policy fields with defaults.
func NewEngine(p Policy) *Engine {
	def := DefaultPolicy()
	if p.MaxExperienceDeficit <= 0 {
		p.MaxExperienceDeficit = def.MaxExperienceDeficit
	}
	if p.LocationPartial == 0 {
		p.LocationPartial = def.LocationPartial
	}
	if p.LocationNeutral == 0 {
		p.LocationNeutral = def.LocationNeutral
	}
	return &Engine{policy: p}
}

// Score combines the caller-supplied semantic similarity with structured
// feature alignment. semanticSim comes from the vector index query and is
// not recomputed here.
func (e *Engine) Score(
	candidate, job domain.ProfileRecord,
	semanticSim float64,
	weights domain.ScoringWeights,
) (domain.MatchResult, error) {
	if err := weights.Validate(); err != nil {
		return domain.MatchResult{}, fmt.Errorf("score: %w", err)
	}

	semantic := clamp01(semanticSim)
	skills, matching, missing := e.skillsScore(candidate, job)
	experience, gap := e.experienceScore(candidate, job)
	location := e.locationScore(candidate, job)

	w := weights.Normalized()
	overall := clamp01(
		w.Semantic*semantic +
			w.Skills*skills +
			w.Experience*experience +
			w.Location*location,
	)

	return domain.MatchResult{
		CandidateID:  candidate.ID,
		JobID:        job.ID,
		OverallScore: overall,
		ComponentScores: map[string]float64{
			domain.CriterionSemantic:   semantic,
			domain.CriterionSkills:     skills,
			domain.CriterionExperience: experience,
			domain.CriterionLocation:   location,
		},
		MatchingSkills: matching,
		MissingSkills:  missing,
		ExperienceGap:  gap,
	}, nil
}

// skillsScore is coverage of the job's required set: |required ∩ candidate|
// over |required|. An empty required set is vacuously satisfied (1.0) so
// postings that didn't specify skills are not penalized.
func (e *Engine) skillsScore(candidate, job domain.ProfileRecord) (score float64, matching, missing []string) {
	matching = []string{}
	missing = []string{}
	if len(job.Skills) == 0 {
		return 1.0, matching, missing
	}

	have := candidate.SkillSet()
	seen := make(map[string]struct{}, len(job.Skills))
	for _, s := range job.Skills {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := have[s]; ok {
			matching = append(matching, s)
		} else {
			missing = append(missing, s)
		}
	}
	sort.Strings(matching)
	sort.Strings(missing)

	required := len(seen)
	score = clamp01(float64(len(matching)) / float64(required))
	return score, matching, missing
}

// experienceScore maps the signed gap (candidate minus required) to [0,1]:
// gap >= 0 is 1.0, a deficit falls linearly to 0 at MaxExperienceDeficit.
// A side with no stated years contributes a neutral gap of 0.
func (e *Engine) experienceScore(candidate, job domain.ProfileRecord) (score, gap float64) {
	if candidate.ExperienceYears == nil || job.RequiredYears == nil {
		return 1.0, 0
	}
	gap = *candidate.ExperienceYears - *job.RequiredYears
	if gap >= 0 {
		return 1.0, gap
	}
	return clamp01(1 + gap/e.policy.MaxExperienceDeficit), gap
}

// locationScore: exact match 1.0; same region or remote-eligible gets the
// partial value; a missing location on either side is neutral, not a penalty.
func (e *Engine) locationScore(candidate, job domain.ProfileRecord) float64 {
	if candidate.Location == "" || job.Location == "" {
		return e.policy.LocationNeutral
	}
	if candidate.Location == job.Location {
		return 1.0
	}
	if job.EmploymentType == domain.EmploymentRemote || candidate.RemoteEligible() {
		return e.policy.LocationPartial
	}
	if r := e.policy.Regions[candidate.Location]; r != "" && r == e.policy.Regions[job.Location] {
		return e.policy.LocationPartial
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
