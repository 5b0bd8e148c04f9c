package domain

// MatchResult is one explainable scored pairing of a candidate against a job.
// Created fresh per query and never persisted by the engine.
type MatchResult struct {
	CandidateID     string
	JobID           string
	OverallScore    float64
	ComponentScores map[string]float64
	MatchingSkills  []string
	MissingSkills   []string
	ExperienceGap   float64
	LowConfidence   bool
}

// Component returns a named component score, 0 if absent.
func (m MatchResult) Component(name string) float64 {
	return m.ComponentScores[name]
}
