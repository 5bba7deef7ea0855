package synthetic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-radar/internal/sources"
)

const (
	DefaultName    = "generator"
	DefaultBaseURL = "https://samples.job-radar.invalid/jobs"
	defaultCity    = "New York, NY"
)

// namespace keeps generated ids stable across runs.
var namespace = uuid.MustParse("6f1d3a52-9b0e-4c55-8a7e-1f2f0c5d9e41")

type company struct {
	name     string
	category string
	// location is empty for companies hiring in the requested location.
	location string
	remote   bool
}

type template struct {
	title     string
	skills    []string
	salaryMin int
	salaryMax int
	level     string
	entry     bool
}

var companies = []company{
	{name: "TechFlow Solutions", category: "startup"},
	{name: "DataCorp Analytics", category: "tech"},
	{name: "HealthTech Innovations", category: "healthcare"},
	{name: "FinanceCloud Inc", category: "fintech"},
	{name: "RemoteCode Co", category: "startup", location: "Remote", remote: true},
}

var templates = []template{
	{title: "Junior %s Developer", skills: []string{"Python", "Django", "SQL", "Git"}, salaryMin: 70000, salaryMax: 95000, level: "entry", entry: true},
	{title: "Full Stack %s Engineer", skills: []string{"Python", "React", "JavaScript", "PostgreSQL"}, salaryMin: 75000, salaryMax: 105000, level: "junior", entry: true},
	{title: "Associate %s Engineer", skills: []string{"Python", "PostgreSQL", "Redis", "AWS"}, salaryMin: 80000, salaryMax: 110000, level: "junior", entry: true},
}

type Config struct {
	Name    string
	BaseURL string
	// PerCall caps the number of postings one Fetch returns. Zero means every combination.
	PerCall int
}

// Adapter produces deterministic sample postings. It is meant to be registered as the fallback
// source, used only when real sources return too little.
type Adapter struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Adapter {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Adapter{cfg: cfg, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, term, location string) ([]sources.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	subject := subjectOf(term)
	city := strings.TrimSpace(location)
	if city == "" || strings.EqualFold(city, "remote") {
		city = defaultCity
	}

	var records []sources.RawRecord
	n := 0
	for _, c := range companies {
		for _, t := range templates {
			if a.cfg.PerCall > 0 && len(records) >= a.cfg.PerCall {
				return records, nil
			}
			records = append(records, a.record(c, t, subject, term, city, n))
			n++
		}
	}
	return records, nil
}

func (a *Adapter) record(c company, t template, subject, term, city string, n int) sources.RawRecord {
	title := fmt.Sprintf(t.title, subject)
	id := uuid.NewSHA1(namespace, []byte(strings.Join([]string{term, city, c.name, title}, "|")))

	location, locationType := city, "hybrid"
	if c.remote {
		location, locationType = c.location, "remote"
	}

	experience := "Looking for junior developers with some experience or strong portfolio projects."
	if t.entry && t.level == "entry" {
		experience = "Perfect for new graduates and entry-level candidates. We provide training and mentorship."
	}
	description := fmt.Sprintf(
		"We are seeking a %s to join our %s team.\n%s\nYou will work with %s.",
		strings.ToLower(title), c.category, experience, strings.Join(t.skills, ", "),
	)

	return sources.RawRecord{
		"title":                title,
		"company":              c.name,
		"company_category":     c.category,
		"description":          description,
		"location":             location,
		"location_type":        locationType,
		"source_url":           fmt.Sprintf("%s/%s", strings.TrimRight(a.cfg.BaseURL, "/"), id),
		"external_id":          id.String(),
		"skills":               t.skills,
		"salary_min":           t.salaryMin,
		"salary_max":           t.salaryMax,
		"experience_level":     t.level,
		"employment_type":      "full_time",
		"entry_level_friendly": t.entry,
		"posted_date":          a.now().UTC().Add(-time.Duration(n%5) * 24 * time.Hour),
	}
}

// subjectOf turns a search term into the technology word used in generated titles.
func subjectOf(term string) string {
	for _, word := range strings.Fields(term) {
		switch strings.ToLower(word) {
		case "junior", "senior", "entry", "level", "developer", "engineer", "remote", "software":
			continue
		}
		return strings.ToUpper(word[:1]) + word[1:]
	}
	return "Software"
}
