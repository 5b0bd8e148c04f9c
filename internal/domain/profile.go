package domain

// Kind distinguishes the two sides of a match.
type Kind string

const (
	// KindCandidate marks a candidate profile (CV side).
	KindCandidate Kind = "candidate"
	// KindJob marks a job posting.
	KindJob Kind = "job"
)

// Valid reports whether k is a known profile kind.
func (k Kind) Valid() bool {
	return k == KindCandidate || k == KindJob
}

// EmploymentType is the posting/candidate work arrangement. Empty means unspecified.
type EmploymentType string

const (
	EmploymentOnsite EmploymentType = "onsite"
	EmploymentHybrid EmploymentType = "hybrid"
	EmploymentRemote EmploymentType = "remote"
)

// Education is a single education entry, ordered most recent first by the caller.
type Education struct {
	Degree      string
	Institution string
	Year        int
}

// ProfileRecord is the structured view of a candidate or posting that the
// engine matches on. The engine treats it as immutable input for a given ID;
// any content change arrives as a fresh upsert that supersedes the old record.
//
// Skills and Location are expected pre-normalized (lowercase, trimmed) by the
// boundary layer, so component scoring compares them verbatim.
type ProfileRecord struct {
	ID              string
	Kind            Kind
	Text            string
	Skills          []string
	ExperienceYears *float64 // candidates: years of experience; nil = unknown
	RequiredYears   *float64 // jobs: minimum years required; nil = not stated
	Education       []Education
	Location        string
	EmploymentType  EmploymentType
}

// SkillSet returns the skills as a set for intersection tests.
func (p ProfileRecord) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		set[s] = struct{}{}
	}
	return set
}

// RemoteEligible reports whether the profile allows remote work.
func (p ProfileRecord) RemoteEligible() bool {
	return p.EmploymentType == EmploymentRemote || p.EmploymentType == EmploymentHybrid
}
