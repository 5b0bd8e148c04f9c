package chi

import (
	"fmt"

	"github.com/talentcloud/matchdex/internal/domain"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeValidationFailed       = "validation_failed"
	CodeProfileNotFound        = "profile_not_found"
	CodeInvalidWeights         = "invalid_weights"
	CodeVectorDimMismatch      = "vector_dim_mismatch"
	CodeModelUnavailable       = "model_unavailable"
	CodeEmbeddingQuotaExceeded = "embedding_quota_exceeded"
	CodeIndexCorrupt           = "index_corrupt"
	CodeInternalError          = "internal_error"
)

// EducationDTO is one education entry on the wire.
type EducationDTO struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// ProfileDTO is the wire form of a profile record.
type ProfileDTO struct {
	ID              string         `json:"id,omitempty"`
	Kind            string         `json:"kind"`
	Text            string         `json:"text"`
	Skills          []string       `json:"skills,omitempty"`
	ExperienceYears *float64       `json:"experience_years,omitempty"`
	RequiredYears   *float64       `json:"required_years,omitempty"`
	Education       []EducationDTO `json:"education,omitempty"`
	Location        string         `json:"location,omitempty"`
	EmploymentType  string         `json:"employment_type,omitempty"`
}

// toRecord converts the wire profile, with the path id taking precedence.
func (p ProfileDTO) toRecord(id string) (domain.ProfileRecord, error) {
	if id == "" {
		id = p.ID
	}
	et := domain.EmploymentType(p.EmploymentType)
	switch et {
	case "", domain.EmploymentOnsite, domain.EmploymentHybrid, domain.EmploymentRemote:
		// ok
	default:
		return domain.ProfileRecord{}, fmt.Errorf("unknown employment_type %q", p.EmploymentType)
	}

	edu := make([]domain.Education, len(p.Education))
	for i, e := range p.Education {
		edu[i] = domain.Education{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
	}

	return domain.ProfileRecord{
		ID:              id,
		Kind:            domain.Kind(p.Kind),
		Text:            p.Text,
		Skills:          p.Skills,
		ExperienceYears: p.ExperienceYears,
		RequiredYears:   p.RequiredYears,
		Education:       edu,
		Location:        p.Location,
		EmploymentType:  et,
	}, nil
}

func profileToDTO(rec domain.ProfileRecord) ProfileDTO {
	edu := make([]EducationDTO, len(rec.Education))
	for i, e := range rec.Education {
		edu[i] = EducationDTO{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
	}
	return ProfileDTO{
		ID:              rec.ID,
		Kind:            string(rec.Kind),
		Text:            rec.Text,
		Skills:          rec.Skills,
		ExperienceYears: rec.ExperienceYears,
		RequiredYears:   rec.RequiredYears,
		Education:       edu,
		Location:        rec.Location,
		EmploymentType:  string(rec.EmploymentType),
	}
}

// UpsertResponse reports the outcome of a profile upsert.
type UpsertResponse struct {
	ID            string `json:"id"`
	Created       bool   `json:"created"`
	LowConfidence bool   `json:"low_confidence,omitempty"`
}

// BatchUpsertRequest carries multiple profiles for one batched upsert.
type BatchUpsertRequest struct {
	Profiles []ProfileDTO `json:"profiles"`
}

// BatchResultItem is the per-item outcome of a batch upsert.
type BatchResultItem struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"` // "ok" / "error"
	Created       bool           `json:"created,omitempty"`
	LowConfidence bool           `json:"low_confidence,omitempty"`
	Error         *ErrorResponse `json:"error,omitempty"`
}

// BatchUpsertResponse aggregates per-item batch outcomes.
type BatchUpsertResponse struct {
	Items     []BatchResultItem `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// WeightsDTO carries per-criterion weights on the wire.
type WeightsDTO struct {
	Semantic   float64 `json:"semantic"`
	Skills     float64 `json:"skills"`
	Experience float64 `json:"experience"`
	Location   float64 `json:"location"`
}

func (w WeightsDTO) toDomain() domain.ScoringWeights {
	return domain.ScoringWeights{
		Semantic:   w.Semantic,
		Skills:     w.Skills,
		Experience: w.Experience,
		Location:   w.Location,
	}
}

// MatchRequest names one side of the match: a stored or inline job to rank
// candidates, or a stored or inline candidate to rank jobs.
type MatchRequest struct {
	JobID       string      `json:"job_id,omitempty"`
	Job         *ProfileDTO `json:"job,omitempty"`
	CandidateID string      `json:"candidate_id,omitempty"`
	Candidate   *ProfileDTO `json:"candidate,omitempty"`
	TopK        int         `json:"top_k,omitempty"`
	MinScore    float64     `json:"min_score,omitempty"`
	Weights     *WeightsDTO `json:"weights,omitempty"`
}

// MatchResultDTO is one ranked match on the wire.
type MatchResultDTO struct {
	CandidateID     string   `json:"candidate_id"`
	JobID           string   `json:"job_id"`
	OverallScore    float64  `json:"overall_score"`
	SimilarityScore float64  `json:"similarity_score"`
	SkillMatch      float64  `json:"skill_match"`
	ExperienceMatch float64  `json:"experience_match"`
	LocationMatch   float64  `json:"location_match"`
	MatchingSkills  []string `json:"matching_skills"`
	MissingSkills   []string `json:"missing_skills"`
	ExperienceGap   float64  `json:"experience_gap"`
	LowConfidence   bool     `json:"low_confidence,omitempty"`
}

func matchResultToDTO(r domain.MatchResult) MatchResultDTO {
	return MatchResultDTO{
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

// MatchResponse is the ranked result list.
type MatchResponse struct {
	Results []MatchResultDTO `json:"results"`
	Total   int              `json:"total"`
}

// BatchMatchRequest names several stored jobs to rank candidates for.
type BatchMatchRequest struct {
	JobIDs   []string    `json:"job_ids"`
	TopK     int         `json:"top_k,omitempty"`
	MinScore float64     `json:"min_score,omitempty"`
	Weights  *WeightsDTO `json:"weights,omitempty"`
}

// BatchMatchItem is the per-job outcome of a batch match.
type BatchMatchItem struct {
	JobID   string           `json:"job_id"`
	Results []MatchResultDTO `json:"results"`
	Error   *ErrorResponse   `json:"error,omitempty"`
}

// BatchMatchResponse aggregates per-job batch match outcomes.
type BatchMatchResponse struct {
	Items []BatchMatchItem `json:"items"`
	Jobs  int              `json:"jobs"`
}

// ReindexResponse reports a completed reindex.
type ReindexResponse struct {
	Profiles int `json:"profiles"`
}

// StatsResponse is the corpus/index snapshot.
type StatsResponse struct {
	Candidates         int `json:"candidates"`
	Jobs               int `json:"jobs"`
	CandidateIndexSize int `json:"candidate_index_size"`
	JobIndexSize       int `json:"job_index_size"`
	Dimensions         int `json:"dimensions"`
}

// HealthResponse is the aggregated health report.
type HealthResponse struct {
	Status     string            `json:"status"`
	Checks     map[string]string `json:"checks"`
	Candidates int               `json:"candidates"`
	Jobs       int               `json:"jobs"`
}
