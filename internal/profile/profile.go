package profile

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/job-radar/internal/jobs"
)

// ErrInvalid is returned when a profile cannot be used for scoring.
var ErrInvalid = errors.New("invalid profile")

const (
	DefaultID = "default"

	DefaultMinScore        = 50
	DefaultSkillsFloor     = 30
	DefaultRecommendMargin = 20

	// DefaultStretchFactor derives the stretch salary from target_max when stretch is not set.
	DefaultStretchFactor = 1.3

	// MinImplicitSkillWeight is the least a listed skill without an explicit weight is worth.
	MinImplicitSkillWeight = 5

	topSkillTerms = 3
)

// FallbackLocations are always searched in addition to the preferred locations.
var FallbackLocations = []string{"Remote", "United States"}

// Profile is the user's weighted preference profile.
type Profile struct {
	ID string `mapstructure:"id" json:"id"`

	// Skills is the ordered skill list. Without SkillWeights every skill gets an equal share of 100.
	Skills       []string           `mapstructure:"skills" json:"skills" validate:"dive,required"`
	SkillWeights map[string]float64 `mapstructure:"skill-weights" json:"skill_weights,omitempty" validate:"dive,gte=0"`

	ExperienceLevels    []jobs.ExperienceLevel             `mapstructure:"experience-levels" json:"experience_levels" validate:"dive,oneof=entry junior mid senior lead manager"`
	ExperiencePenalties map[jobs.ExperienceLevel]float64 `mapstructure:"experience-penalties" json:"experience_penalties,omitempty" validate:"dive,lte=0"`

	Salary SalaryBand `mapstructure:"salary" json:"salary"`

	PreferredLocations []string          `mapstructure:"preferred-locations" json:"preferred_locations"`
	LocationAffinity   *LocationAffinity `mapstructure:"location-affinity" json:"location_affinity,omitempty" validate:"omitempty"`

	PreferredCompanyCategories []string `mapstructure:"preferred-company-categories" json:"preferred_company_categories"`

	Weights    *Weights    `mapstructure:"weights" json:"weights,omitempty" validate:"omitempty"`
	JobTitles  []string    `mapstructure:"job-titles" json:"job_titles"`
	Thresholds *Thresholds `mapstructure:"thresholds" json:"thresholds,omitempty" validate:"omitempty"`
}

// SalaryBand is the salary expectation. A zero TargetMax means the band is not configured.
type SalaryBand struct {
	MinAcceptable int `mapstructure:"min-acceptable" json:"min_acceptable" validate:"gte=0"`
	TargetMin     int `mapstructure:"target-min" json:"target_min" validate:"gte=0"`
	TargetMax     int `mapstructure:"target-max" json:"target_max" validate:"gte=0"`
	Stretch       int `mapstructure:"stretch" json:"stretch" validate:"gte=0"`
}

// LocationAffinity holds independent weights (0-100) per location type plus preferred cities.
type LocationAffinity struct {
	Remote float64 `mapstructure:"remote" json:"remote" validate:"gte=0,lte=100"`
	Hybrid float64 `mapstructure:"hybrid" json:"hybrid" validate:"gte=0,lte=100"`
	Onsite float64 `mapstructure:"onsite" json:"onsite" validate:"gte=0,lte=100"`
	City   float64 `mapstructure:"city" json:"city" validate:"gte=0,lte=100"`
}

// Weights are relative category weights; they are normalized by their sum.
type Weights struct {
	Skills     float64 `mapstructure:"skills" json:"skills" validate:"gte=0"`
	Experience float64 `mapstructure:"experience" json:"experience" validate:"gte=0"`
	Location   float64 `mapstructure:"location" json:"location" validate:"gte=0"`
	Salary     float64 `mapstructure:"salary" json:"salary" validate:"gte=0"`
	Company    float64 `mapstructure:"company" json:"company" validate:"gte=0"`
}

type Thresholds struct {
	MinScore        float64 `mapstructure:"min-score" json:"min_score" validate:"gte=0,lte=100"`
	SkillsFloor     float64 `mapstructure:"skills-floor" json:"skills_floor" validate:"gte=0,lte=100"`
	RecommendMargin float64 `mapstructure:"recommend-margin" json:"recommend_margin" validate:"gte=0,lte=100"`
}

func DefaultWeights() Weights {
	return Weights{Skills: 45, Experience: 25, Location: 15, Salary: 10, Company: 5}
}

func DefaultLocationAffinity() LocationAffinity {
	return LocationAffinity{Remote: 100, Hybrid: 80, Onsite: 60, City: 80}
}

func DefaultThresholds() Thresholds {
	return Thresholds{MinScore: DefaultMinScore, SkillsFloor: DefaultSkillsFloor, RecommendMargin: DefaultRecommendMargin}
}

func DefaultExperiencePenalties() map[jobs.ExperienceLevel]float64 {
	return map[jobs.ExperienceLevel]float64{
		jobs.ExperienceSenior:  -100,
		jobs.ExperienceLead:    -150,
		jobs.ExperienceManager: -200,
	}
}

// Default returns an entry-level oriented profile without skills.
func Default() *Profile {
	p := &Profile{
		ID:               DefaultID,
		ExperienceLevels: []jobs.ExperienceLevel{jobs.ExperienceEntry, jobs.ExperienceJunior},
	}
	p.ApplyDefaults()
	return p
}

// ApplyDefaults fills every unset section with its default.
func (p *Profile) ApplyDefaults() {
	if strings.TrimSpace(p.ID) == "" {
		p.ID = DefaultID
	}
	if p.Weights == nil {
		w := DefaultWeights()
		p.Weights = &w
	}
	if p.LocationAffinity == nil {
		a := DefaultLocationAffinity()
		p.LocationAffinity = &a
	}
	if p.Thresholds == nil {
		t := DefaultThresholds()
		p.Thresholds = &t
	}
	if p.ExperiencePenalties == nil {
		p.ExperiencePenalties = map[jobs.ExperienceLevel]float64{}
	}
	for level, penalty := range DefaultExperiencePenalties() {
		if _, ok := p.ExperiencePenalties[level]; !ok {
			p.ExperiencePenalties[level] = penalty
		}
	}
	if p.Salary.Stretch == 0 && p.Salary.TargetMax > 0 {
		p.Salary.Stretch = int(float64(p.Salary.TargetMax) * DefaultStretchFactor)
	}
}

// Validate checks field constraints and semantic consistency. Every failure wraps ErrInvalid.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalid)
	}

	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err.Error())
	}

	w := p.CategoryWeights()
	for name, value := range map[string]float64{
		"skills":     w.Skills,
		"experience": w.Experience,
		"location":   w.Location,
		"salary":     w.Salary,
		"company":    w.Company,
	} {
		if value < 0 {
			return fmt.Errorf("%w: weight %s is negative", ErrInvalid, name)
		}
	}
	if w.Sum() == 0 {
		return fmt.Errorf("%w: all category weights are zero", ErrInvalid)
	}

	for skill, weight := range p.SkillWeights {
		if weight < 0 {
			return fmt.Errorf("%w: skill %q has negative weight", ErrInvalid, skill)
		}
	}

	t := p.Limits()
	for name, value := range map[string]float64{
		"min-score":        t.MinScore,
		"skills-floor":     t.SkillsFloor,
		"recommend-margin": t.RecommendMargin,
	} {
		if value < 0 || value > 100 {
			return fmt.Errorf("%w: threshold %s must be within [0, 100]", ErrInvalid, name)
		}
	}

	s := p.Salary
	if s.MinAcceptable < 0 || s.TargetMin < 0 || s.TargetMax < 0 || s.Stretch < 0 {
		return fmt.Errorf("%w: salary band has negative values", ErrInvalid)
	}
	if s.TargetMax > 0 {
		if s.MinAcceptable > s.TargetMin || s.TargetMin > s.TargetMax {
			return fmt.Errorf("%w: salary band is inverted (min-acceptable %d, target %d-%d)",
				ErrInvalid, s.MinAcceptable, s.TargetMin, s.TargetMax)
		}
		if s.Stretch > 0 && s.Stretch < s.TargetMax {
			return fmt.Errorf("%w: salary stretch %d is below target-max %d", ErrInvalid, s.Stretch, s.TargetMax)
		}
	}

	return nil
}

// Prepare applies defaults and validates the result.
func (p *Profile) Prepare() error {
	if p == nil {
		return fmt.Errorf("%w: profile is nil", ErrInvalid)
	}
	p.ApplyDefaults()
	return p.Validate()
}

func (w Weights) Sum() float64 {
	return w.Skills + w.Experience + w.Location + w.Salary + w.Company
}

func (p *Profile) CategoryWeights() Weights {
	if p.Weights == nil {
		return DefaultWeights()
	}
	return *p.Weights
}

func (p *Profile) Affinity() LocationAffinity {
	if p.LocationAffinity == nil {
		return DefaultLocationAffinity()
	}
	return *p.LocationAffinity
}

func (p *Profile) Limits() Thresholds {
	if p.Thresholds == nil {
		return DefaultThresholds()
	}
	return *p.Thresholds
}

// WithMinScore returns a copy of the profile with the min score replaced.
func (p *Profile) WithMinScore(minScore float64) *Profile {
	cp := *p
	t := p.Limits()
	t.MinScore = minScore
	cp.Thresholds = &t
	return &cp
}

// Vocabulary returns every skill the profile knows, in order: the skill list first, then
// skills that only appear in SkillWeights sorted by name.
func (p *Profile) Vocabulary() []string {
	seen := make(map[string]struct{}, len(p.Skills))
	out := make([]string, 0, len(p.Skills)+len(p.SkillWeights))
	for _, skill := range p.Skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}

	extra := make([]string, 0, len(p.SkillWeights))
	for skill := range p.SkillWeights {
		skill = strings.TrimSpace(skill)
		if _, ok := seen[strings.ToLower(skill)]; ok || skill == "" {
			continue
		}
		extra = append(extra, skill)
	}
	sort.Strings(extra)
	for _, skill := range extra {
		seen[strings.ToLower(skill)] = struct{}{}
		out = append(out, skill)
	}
	return out
}

// SkillWeightMap returns lowercase skill names mapped to their weight. Skills listed without an
// explicit weight share what the explicit weights leave of 100, but never get less than
// MinImplicitSkillWeight.
func (p *Profile) SkillWeightMap() map[string]float64 {
	vocab := p.Vocabulary()
	weights := make(map[string]float64, len(vocab))
	if len(p.SkillWeights) > 0 {
		explicit := 0.0
		for skill, weight := range p.SkillWeights {
			weights[strings.ToLower(strings.TrimSpace(skill))] = weight
			explicit += weight
		}

		var implicit []string
		for _, skill := range vocab {
			if _, ok := weights[strings.ToLower(skill)]; !ok {
				implicit = append(implicit, strings.ToLower(skill))
			}
		}
		if len(implicit) == 0 {
			return weights
		}

		share := math.Max((100-explicit)/float64(len(implicit)), MinImplicitSkillWeight)
		for _, skill := range implicit {
			weights[skill] = share
		}
		return weights
	}

	if len(vocab) == 0 {
		return weights
	}
	share := 100 / float64(len(vocab))
	for _, skill := range vocab {
		weights[strings.ToLower(skill)] = share
	}
	return weights
}

// SearchTerms returns the job titles followed by the three heaviest skills.
func (p *Profile) SearchTerms() []string {
	terms := make([]string, 0, len(p.JobTitles)+topSkillTerms)
	seen := make(map[string]struct{})
	add := func(term string) {
		term = strings.TrimSpace(term)
		key := strings.ToLower(term)
		if term == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		terms = append(terms, term)
	}

	for _, title := range p.JobTitles {
		add(title)
	}

	vocab := p.Vocabulary()
	weights := p.SkillWeightMap()
	sort.SliceStable(vocab, func(i, j int) bool {
		return weights[strings.ToLower(vocab[i])] > weights[strings.ToLower(vocab[j])]
	})
	for i := 0; i < len(vocab) && i < topSkillTerms; i++ {
		add(vocab[i])
	}
	return terms
}

// SearchLocations returns the preferred locations followed by FallbackLocations.
func (p *Profile) SearchLocations() []string {
	locations := make([]string, 0, len(p.PreferredLocations)+len(FallbackLocations))
	seen := make(map[string]struct{})
	for _, location := range append(append([]string{}, p.PreferredLocations...), FallbackLocations...) {
		location = strings.TrimSpace(location)
		key := strings.ToLower(location)
		if location == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		locations = append(locations, location)
	}
	return locations
}

// Accepts reports whether the experience level is one the profile targets.
func (p *Profile) Accepts(level jobs.ExperienceLevel) bool {
	for _, accepted := range p.ExperienceLevels {
		if strings.EqualFold(string(accepted), string(level)) {
			return true
		}
	}
	return false
}
