package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
)

const (
	unknownSkillWeight  = 5
	primarySkillWeight  = 15
	primarySkillBonus   = 5
	entryFriendlyBonus  = 50
	entryTitleBonus     = 25
	fivePlusYearsMalus  = 100
	threePlusYearsMalus = 50
	seniorYears         = 5
	midYears            = 3

	salaryBelowMinimum = 0
	salaryBelowTarget  = 35
	salaryInTarget     = 70
	salaryAboveTarget  = 100
	salaryNeutral      = 50

	companyPreferred = 80
	companyUnknown   = 30

	maxScore = 100
)

// acceptedExperience is the base score of a level the profile accepts.
var acceptedExperience = map[jobs.ExperienceLevel]float64{
	jobs.ExperienceEntry:   75,
	jobs.ExperienceJunior:  60,
	jobs.ExperienceMid:     40,
	jobs.ExperienceSenior:  25,
	jobs.ExperienceLead:    15,
	jobs.ExperienceManager: 10,
}

var (
	entryTitleCues = regexp.MustCompile(`(?i)\b(?:entry|junior|new grad|graduate|associate)\b`)
	// The leading group keeps "2.5 years" from reading as "5 years". A range counts by its lower bound.
	requiredYears = regexp.MustCompile(`(?i)(?:^|[^\d.])(\d{1,2})(?:\s*(?:-|–|to)\s*\d{1,2})?\s*\+?\s*(?:years?|yrs?)\b`)
)

type cityPreference struct {
	name   string
	points float64
}

// Engine scores postings against one profile. Build a new engine when the profile changes.
type Engine struct {
	skills     map[string]float64
	cities     []cityPreference
	remote     float64
	hybrid     float64
	onsite     float64
	salary     profile.SalaryBand
	companies  map[string]struct{}
	experience map[jobs.ExperienceLevel]float64
	weights    profile.Weights
	thresholds profile.Thresholds

	logger *zap.Logger
	now    func() time.Time
}

func New(p *profile.Profile, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		p = profile.Default()
	}

	affinity := p.Affinity()
	e := &Engine{
		skills:     p.SkillWeightMap(),
		remote:     affinity.Remote,
		hybrid:     affinity.Hybrid,
		onsite:     affinity.Onsite,
		salary:     p.Salary,
		companies:  make(map[string]struct{}),
		experience: make(map[jobs.ExperienceLevel]float64),
		weights:    p.CategoryWeights(),
		thresholds: p.Limits(),
		logger:     log,
		now:        time.Now,
	}

	defaults := profile.DefaultLocationAffinity()
	for _, location := range p.PreferredLocations {
		name := strings.ToLower(strings.TrimSpace(location))
		switch name {
		case "":
		case string(jobs.LocationRemote):
			if e.remote == 0 {
				e.remote = defaults.Remote
			}
		case string(jobs.LocationHybrid):
			if e.hybrid == 0 {
				e.hybrid = defaults.Hybrid
			}
		default:
			e.cities = append(e.cities, cityPreference{name: name, points: affinity.City})
		}
	}

	for _, category := range p.PreferredCompanyCategories {
		e.companies[strings.ToLower(strings.TrimSpace(category))] = struct{}{}
	}

	for _, level := range jobs.ExperienceLevels {
		if p.Accepts(level) {
			e.experience[level] = acceptedExperience[level]
			continue
		}
		e.experience[level] = p.ExperiencePenalties[level]
	}

	return e
}

// ScoreAll scores every posting. A failing posting degrades to neutral components and never stops the batch.
func (e *Engine) ScoreAll(postings []*jobs.Posting) []*jobs.Scored {
	out := make([]*jobs.Scored, 0, len(postings))
	for _, p := range postings {
		out = append(out, &jobs.Scored{Posting: p, Score: e.Score(p)})
	}
	return out
}

// Score computes the weighted match of a posting. It never fails.
func (e *Engine) Score(p *jobs.Posting) *jobs.Score {
	log := logger.WithFields(e.logger, logger.PostingFields(p)...)

	var matching, missing []string
	skills := e.guard(log, "skills", 0, func() float64 {
		var score float64
		score, matching, missing = e.skillsScore(p)
		return score
	})

	rawExperience := 0.0
	experience := e.guard(log, "experience", 0, func() float64 {
		rawExperience = e.experienceScore(p)
		return clamp(rawExperience)
	})

	location := e.guard(log, "location", 0, func() float64 { return e.locationScore(p) })
	salary := e.guard(log, "salary", salaryNeutral, func() float64 { return e.salaryScore(p) })
	company := e.guard(log, "company", 0, func() float64 { return e.companyScore(p) })

	w := e.weights
	total := 0.0
	if sum := w.Sum(); sum > 0 {
		total = (skills*w.Skills + experience*w.Experience + location*w.Location + salary*w.Salary + company*w.Company) / sum
	}
	total = clamp(total)

	meets := skills >= e.thresholds.SkillsFloor && rawExperience >= 0 && total >= e.thresholds.MinScore
	recommended := meets && total >= e.thresholds.MinScore+e.thresholds.RecommendMargin

	if matching == nil {
		matching = []string{}
	}
	if missing == nil {
		missing = []string{}
	}

	return &jobs.Score{
		Skills:         skills,
		Experience:     experience,
		Location:       location,
		Salary:         salary,
		Company:        company,
		Total:          total,
		MatchingSkills: matching,
		MissingSkills:  missing,
		MeetsMinimum:   meets,
		Recommended:    recommended,
		ScoredAt:       e.now().UTC(),
	}
}

// guard runs a component and substitutes fallback on panic or a non-finite result.
func (e *Engine) guard(log *zap.Logger, component string, fallback float64, fn func() float64) (score float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn("scoring component degraded",
				zap.String("component", component),
				zap.String("panic", fmt.Sprint(r)),
			)
			score = fallback
		}
	}()

	score = fn()
	if math.IsNaN(score) || math.IsInf(score, 0) {
		log.Warn("scoring component degraded",
			zap.String("component", component),
			zap.String("reason", "non-finite value"),
		)
		return fallback
	}
	return score
}

func (e *Engine) skillsScore(p *jobs.Posting) (float64, []string, []string) {
	if len(p.Skills) == 0 {
		return 0, nil, nil
	}

	var matching, missing []string
	matched, total := 0.0, 0.0
	primary := 0
	for _, skill := range p.Skills {
		weight, ok := e.skills[strings.ToLower(strings.TrimSpace(skill))]
		if !ok {
			total += unknownSkillWeight
			missing = append(missing, skill)
			continue
		}
		matching = append(matching, skill)
		matched += weight
		total += weight
		if weight >= primarySkillWeight {
			primary++
		}
	}

	if total == 0 {
		return 0, matching, missing
	}

	score := matched/total*100 + float64(primary*primarySkillBonus)
	return math.Min(score, maxScore), matching, missing
}

// experienceScore returns the unclamped experience score. Negative means the posting was penalized.
func (e *Engine) experienceScore(p *jobs.Posting) float64 {
	score := e.experience[p.ExperienceLevel]

	if p.EntryLevelFriendly {
		score += entryFriendlyBonus
	}
	if entryTitleCues.MatchString(p.Title) {
		score += entryTitleBonus
	}
	switch years := yearsRequired(p.Description); {
	case years >= seniorYears:
		score -= fivePlusYearsMalus
	case years >= midYears:
		score -= threePlusYearsMalus
	}
	return score
}

// yearsRequired returns the largest number of years of experience the text asks for, or 0.
func yearsRequired(text string) int {
	most := 0
	for _, m := range requiredYears.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > most {
			most = n
		}
	}
	return most
}

func (e *Engine) locationScore(p *jobs.Posting) float64 {
	text := strings.ToLower(p.Location + " " + string(p.LocationType))

	score := 0.0
	for _, city := range e.cities {
		if !strings.Contains(text, city.name) {
			continue
		}
		points := city.points
		if p.LocationType == jobs.LocationOnsite {
			points = math.Min(points, e.onsite)
		}
		score = math.Max(score, points)
	}

	if strings.Contains(text, string(jobs.LocationRemote)) {
		score = math.Max(score, e.remote)
	}
	if strings.Contains(text, string(jobs.LocationHybrid)) {
		score = math.Max(score, e.hybrid)
	}

	switch p.LocationType {
	case jobs.LocationRemote:
		score = math.Max(score, e.remote)
	case jobs.LocationHybrid:
		score = math.Max(score, e.hybrid)
	}
	return math.Min(score, maxScore)
}

func (e *Engine) salaryScore(p *jobs.Posting) float64 {
	if e.salary.TargetMax == 0 && e.salary.TargetMin == 0 && e.salary.MinAcceptable == 0 {
		return salaryNeutral
	}
	salary, ok := p.Salary()
	if !ok {
		return salaryNeutral
	}

	switch {
	case salary < e.salary.MinAcceptable:
		return salaryBelowMinimum
	case salary < e.salary.TargetMin:
		return salaryBelowTarget
	case salary <= e.salary.TargetMax:
		return salaryInTarget
	default:
		return salaryAboveTarget
	}
}

func (e *Engine) companyScore(p *jobs.Posting) float64 {
	category := strings.ToLower(strings.TrimSpace(p.CompanyCategory))
	if _, ok := e.companies[category]; ok && category != "" {
		return companyPreferred
	}
	if category == "" || category == jobs.CompanyUnknown {
		return companyUnknown
	}
	return 0
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(v, maxScore))
}
