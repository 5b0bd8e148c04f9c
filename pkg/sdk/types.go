package matchdex

import "github.com/talentcloud/matchdex/internal/domain"

// Kind distinguishes the two sides of a match.
type Kind string

const (
	KindCandidate Kind = "candidate"
	KindJob       Kind = "job"
)

// EmploymentType is the work arrangement. Empty means unspecified.
type EmploymentType string

const (
	EmploymentOnsite EmploymentType = "onsite"
	EmploymentHybrid EmploymentType = "hybrid"
	EmploymentRemote EmploymentType = "remote"
)

// Education is one education entry.
type Education struct {
	Degree      string
	Institution string
	Year        int
}

// Profile is the matchable record for either corpus side.
type Profile struct {
	ID              string
	Kind            Kind
	Text            string
	Skills          []string
	ExperienceYears *float64
	RequiredYears   *float64
	Education       []Education
	Location        string
	EmploymentType  EmploymentType
}

// Weights holds the per-criterion weights; zero value means defaults.
type Weights struct {
	Semantic   float64
	Skills     float64
	Experience float64
	Location   float64
}

// MatchQuery describes one match request. Set JobID (or Job) to rank
// candidates, CandidateID (or Candidate) to rank jobs.
type MatchQuery struct {
	JobID       string
	Job         *Profile
	CandidateID string
	Candidate   *Profile
	TopK        int
	MinScore    float64
	Weights     *Weights
}

// MatchResult is one ranked match with its score breakdown.
type MatchResult struct {
	CandidateID     string
	JobID           string
	OverallScore    float64
	SimilarityScore float64
	SkillMatch      float64
	ExperienceMatch float64
	LocationMatch   float64
	MatchingSkills  []string
	MissingSkills   []string
	ExperienceGap   float64
	LowConfidence   bool
}

// UpsertResult reports the outcome of one profile upsert.
type UpsertResult struct {
	ID            string
	Created       bool
	LowConfidence bool
}

// Stats is a point-in-time corpus and index snapshot.
type Stats struct {
	Candidates         int
	Jobs               int
	CandidateIndexSize int
	JobIndexSize       int
	Dimensions         int
}

func profileToDomain(p Profile) domain.ProfileRecord {
	edu := make([]domain.Education, len(p.Education))
	for i, e := range p.Education {
		edu[i] = domain.Education{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
	}
	return domain.ProfileRecord{
		ID:              p.ID,
		Kind:            domain.Kind(p.Kind),
		Text:            p.Text,
		Skills:          p.Skills,
		ExperienceYears: p.ExperienceYears,
		RequiredYears:   p.RequiredYears,
		Education:       edu,
		Location:        p.Location,
		EmploymentType:  domain.EmploymentType(p.EmploymentType),
	}
}

func profileFromDomain(rec domain.ProfileRecord) Profile {
	edu := make([]Education, len(rec.Education))
	for i, e := range rec.Education {
		edu[i] = Education{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
	}
	return Profile{
		ID:              rec.ID,
		Kind:            Kind(rec.Kind),
		Text:            rec.Text,
		Skills:          rec.Skills,
		ExperienceYears: rec.ExperienceYears,
		RequiredYears:   rec.RequiredYears,
		Education:       edu,
		Location:        rec.Location,
		EmploymentType:  EmploymentType(rec.EmploymentType),
	}
}

func resultFromDomain(r domain.MatchResult) MatchResult {
	return MatchResult{
		CandidateID:     r.CandidateID,
		JobID:           r.JobID,
		OverallScore:    r.OverallScore,
		SimilarityScore: r.ComponentScores[domain.CriterionSemantic],
		SkillMatch:      r.ComponentScores[domain.CriterionSkills],
		ExperienceMatch: r.ComponentScores[domain.CriterionExperience],
		LocationMatch:   r.ComponentScores[domain.CriterionLocation],
		MatchingSkills:  r.MatchingSkills,
		MissingSkills:   r.MissingSkills,
		ExperienceGap:   r.ExperienceGap,
		LowConfidence:   r.LowConfidence,
	}
}
