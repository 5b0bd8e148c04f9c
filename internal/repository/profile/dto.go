package profile

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/talentcloud/matchdex/internal/domain"
)

// Hash field names for a stored profile.
const (
	fieldID            = "id"
	fieldKind          = "kind"
	fieldText          = "text"
	fieldSkills        = "skills"
	fieldExperience    = "experience_years"
	fieldRequiredYears = "required_years"
	fieldEducation     = "education"
	fieldLocation      = "location"
	fieldEmployment    = "employment_type"
	fieldVector        = "vector"
	fieldLowConfidence = "low_confidence"
)

type educationDTO struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Year        int    `json:"year"`
}

// toFields flattens a record plus its vector into redis hash fields.
func toFields(rec domain.ProfileRecord, vec []float32, lowConfidence bool) (map[string]string, error) {
	skills, err := json.Marshal(rec.Skills)
	if err != nil {
		return nil, fmt.Errorf("marshal skills: %w", err)
	}

	edus := make([]educationDTO, len(rec.Education))
	for i, e := range rec.Education {
		edus[i] = educationDTO{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
	}
	education, err := json.Marshal(edus)
	if err != nil {
		return nil, fmt.Errorf("marshal education: %w", err)
	}

	fields := map[string]string{
		fieldID:         rec.ID,
		fieldKind:       string(rec.Kind),
		fieldText:       rec.Text,
		fieldSkills:     string(skills),
		fieldEducation:  string(education),
		fieldLocation:   rec.Location,
		fieldEmployment: string(rec.EmploymentType),
		fieldVector:     encodeVector(vec),
	}
	if rec.ExperienceYears != nil {
		fields[fieldExperience] = strconv.FormatFloat(*rec.ExperienceYears, 'g', -1, 64)
	}
	if rec.RequiredYears != nil {
		fields[fieldRequiredYears] = strconv.FormatFloat(*rec.RequiredYears, 'g', -1, 64)
	}
	if lowConfidence {
		fields[fieldLowConfidence] = "1"
	}
	return fields, nil
}

// fromFields reconstructs a record and its vector from redis hash fields.
func fromFields(fields map[string]string) (domain.ProfileRecord, []float32, error) {
	rec := domain.ProfileRecord{
		ID:             fields[fieldID],
		Kind:           domain.Kind(fields[fieldKind]),
		Text:           fields[fieldText],
		Location:       fields[fieldLocation],
		EmploymentType: domain.EmploymentType(fields[fieldEmployment]),
	}

	if raw := fields[fieldSkills]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &rec.Skills); err != nil {
			return domain.ProfileRecord{}, nil, fmt.Errorf("unmarshal skills: %w", err)
		}
	}
	if raw := fields[fieldEducation]; raw != "" {
		var edus []educationDTO
		if err := json.Unmarshal([]byte(raw), &edus); err != nil {
			return domain.ProfileRecord{}, nil, fmt.Errorf("unmarshal education: %w", err)
		}
		rec.Education = make([]domain.Education, len(edus))
		for i, e := range edus {
			rec.Education[i] = domain.Education{Degree: e.Degree, Institution: e.Institution, Year: e.Year}
		}
	}
	if raw, ok := fields[fieldExperience]; ok && raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.ProfileRecord{}, nil, fmt.Errorf("parse experience_years: %w", err)
		}
		rec.ExperienceYears = &v
	}
	if raw, ok := fields[fieldRequiredYears]; ok && raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.ProfileRecord{}, nil, fmt.Errorf("parse required_years: %w", err)
		}
		rec.RequiredYears = &v
	}

	vec, err := decodeVector(fields[fieldVector])
	if err != nil {
		return domain.ProfileRecord{}, nil, err
	}
	return rec, vec, nil
}

func encodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
