package jobs

import (
	"strings"
	"time"
)

const (
	PostingURLField     = "SourceURL"
	PostingCompanyField = "Company"
	PostingSourceField  = "Source"

	// SyntheticSourcePrefix marks postings produced by a fallback generator instead of a real source.
	SyntheticSourcePrefix = "synthetic:"
)

type LocationType string

const (
	LocationRemote LocationType = "remote"
	LocationHybrid LocationType = "hybrid"
	LocationOnsite LocationType = "onsite"
)

type ExperienceLevel string

const (
	ExperienceEntry   ExperienceLevel = "entry"
	ExperienceJunior  ExperienceLevel = "junior"
	ExperienceMid     ExperienceLevel = "mid"
	ExperienceSenior  ExperienceLevel = "senior"
	ExperienceLead    ExperienceLevel = "lead"
	ExperienceManager ExperienceLevel = "manager"
)

// ExperienceLevels lists every known level from the most junior to the most senior.
var ExperienceLevels = []ExperienceLevel{
	ExperienceEntry,
	ExperienceJunior,
	ExperienceMid,
	ExperienceSenior,
	ExperienceLead,
	ExperienceManager,
}

type EmploymentType string

const (
	EmploymentFullTime   EmploymentType = "full_time"
	EmploymentPartTime   EmploymentType = "part_time"
	EmploymentContract   EmploymentType = "contract"
	EmploymentInternship EmploymentType = "internship"
	EmploymentTemporary  EmploymentType = "temporary"
)

// CompanyUnknown is the category used when neither the source nor the name tells what a company is.
const CompanyUnknown = "unknown"

// Discovery records where and how a posting was found during a run.
type Discovery struct {
	Source   string `json:"source"`
	Tier     string `json:"tier,omitempty"`
	Term     string `json:"term,omitempty"`
	Location string `json:"location,omitempty"`
	// Order is the registry position of the source; Sequence is the position inside the source output.
	Order    int `json:"-"`
	Sequence int `json:"-"`
}

// Posting is a normalized job opportunity. SourceURL is its identity.
type Posting struct {
	Title              string          `json:"title"`
	Company            string          `json:"company"`
	CompanyCategory    string          `json:"company_category,omitempty"`
	Description        string          `json:"description,omitempty"`
	Location           string          `json:"location,omitempty"`
	LocationType       LocationType    `json:"location_type"`
	EmploymentType     EmploymentType  `json:"employment_type"`
	ExperienceLevel    ExperienceLevel `json:"experience_level"`
	SalaryMin          *int            `json:"salary_min,omitempty"`
	SalaryMax          *int            `json:"salary_max,omitempty"`
	Skills             []string        `json:"skills,omitempty"`
	Source             string          `json:"source"`
	SourceURL          string          `json:"source_url"`
	ExternalID         string          `json:"external_id,omitempty"`
	PostedAt           *time.Time      `json:"posted_at,omitempty"`
	ScrapedAt          time.Time       `json:"scraped_at"`
	Active             bool            `json:"active"`
	EntryLevelFriendly bool            `json:"entry_level_friendly,omitempty"`
	Discovery          Discovery       `json:"discovery"`
}

// IsSynthetic reports whether the posting came from a fallback generator.
func (p *Posting) IsSynthetic() bool {
	return p != nil && strings.HasPrefix(p.Source, SyntheticSourcePrefix)
}

// Salary returns the figure used for salary matching: the minimum when present, else the maximum.
func (p *Posting) Salary() (int, bool) {
	if p == nil {
		return 0, false
	}
	if p.SalaryMin != nil && *p.SalaryMin > 0 {
		return *p.SalaryMin, true
	}
	if p.SalaryMax != nil && *p.SalaryMax > 0 {
		return *p.SalaryMax, true
	}
	return 0, false
}

func (p *Posting) GetStringField(name string) string {
	switch name {
	case PostingURLField:
		return p.SourceURL
	case PostingCompanyField:
		return p.Company
	case PostingSourceField:
		return p.Source
	default:
		return ""
	}
}

// Score is the derived match quality of a posting against a profile.
type Score struct {
	Skills         float64   `json:"skills_score"`
	Experience     float64   `json:"experience_score"`
	Location       float64   `json:"location_score"`
	Salary         float64   `json:"salary_score"`
	Company        float64   `json:"company_score"`
	Total          float64   `json:"total_score"`
	MatchingSkills []string  `json:"matching_skills"`
	MissingSkills  []string  `json:"missing_skills"`
	MeetsMinimum   bool      `json:"meets_minimum_requirements"`
	Recommended    bool      `json:"recommended_for_application"`
	ScoredAt       time.Time `json:"scored_at"`
}

// Scored pairs a posting with its score. Note holds an optional drafted application message.
type Scored struct {
	Posting *Posting `json:"posting"`
	Score   *Score   `json:"score"`
	Note    string   `json:"note,omitempty"`
}
