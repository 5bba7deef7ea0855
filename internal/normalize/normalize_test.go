package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/sources"
)

func testProfile() *profile.Profile {
	return &profile.Profile{Skills: []string{"Python", "Django", "PostgreSQL", "C++", "Node.js", "Go"}}
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	n := New(testProfile(), nil)
	d := jobs.Discovery{Source: "adzuna", Term: "python", Location: "Remote"}

	p, err := n.Normalize(sources.RawRecord{
		"title":       "Backend Developer",
		"company":     "Acme Labs",
		"description": "<p>We use <b>Python</b> and Django.</p>",
		"location":    "Austin, TX",
		"source_url":  "https://jobs.acme.dev/42",
	}, d)
	require.NoError(t, err)

	assert.Nil(t, p.SalaryMin)
	assert.Nil(t, p.SalaryMax)
	assert.Nil(t, p.PostedAt)
	assert.Equal(t, jobs.ExperienceJunior, p.ExperienceLevel)
	assert.Equal(t, jobs.LocationOnsite, p.LocationType)
	assert.Equal(t, jobs.EmploymentFullTime, p.EmploymentType)
	assert.Equal(t, "startup", p.CompanyCategory)
	assert.Equal(t, "We use Python and Django.", p.Description)
	assert.Equal(t, []string{"Python", "Django"}, p.Skills)
	assert.Equal(t, "adzuna", p.Source)
	assert.Equal(t, d, p.Discovery)
	assert.True(t, p.Active)
	assert.False(t, p.ScrapedAt.IsZero())
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name   string
		record sources.RawRecord
		reason string
	}{
		{
			name:   "missing title and company",
			record: sources.RawRecord{"source_url": "https://jobs.acme.dev/1"},
			reason: ReasonNoIdentity,
		},
		{
			name:   "empty url",
			record: sources.RawRecord{"title": "Dev", "source_url": "  "},
			reason: ReasonEmptyURL,
		},
		{
			name:   "relative url",
			record: sources.RawRecord{"title": "Dev", "source_url": "/jobs/1"},
			reason: ReasonInvalidURL,
		},
		{
			name:   "ftp url",
			record: sources.RawRecord{"title": "Dev", "source_url": "ftp://jobs.acme.dev/1"},
			reason: ReasonInvalidURL,
		},
		{
			name:   "placeholder domain",
			record: sources.RawRecord{"title": "Dev", "source_url": "https://www.example.com/job/1"},
			reason: ReasonPlaceholderURL,
		},
		{
			name:   "localhost",
			record: sources.RawRecord{"title": "Dev", "source_url": "http://localhost:8080/job"},
			reason: ReasonPlaceholderURL,
		},
		{
			name:   "malformed field",
			record: sources.RawRecord{"title": map[string]any{"x": 1}, "source_url": "https://jobs.acme.dev/1"},
			reason: ReasonMalformed,
		},
	}

	n := New(testProfile(), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.record, jobs.Discovery{Source: "test"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRejected))

			var rejectErr *RejectError
			require.True(t, errors.As(err, &rejectErr))
			assert.Equal(t, tt.reason, rejectErr.Reason)
		})
	}
}

func TestNormalizeAliasesAndWeakTypes(t *testing.T) {
	n := New(testProfile(), nil)

	p, err := n.Normalize(sources.RawRecord{
		"title":                "Junior Go Engineer",
		"company_name":         "First Bank",
		"url":                  "https://careers.firstbank.io/99",
		"id":                   12345,
		"salary_min":           "60000",
		"salary_max":           90000.0,
		"entry_level_friendly": "true",
		"posted_date":          "2024-05-01T10:00:00Z",
		"location_type":        "Remote",
		"employment_type":      "Contract",
		"skills":               []any{"go", "Kubernetes"},
	}, jobs.Discovery{Source: "remoteok"})
	require.NoError(t, err)

	assert.Equal(t, "First Bank", p.Company)
	assert.Equal(t, "https://careers.firstbank.io/99", p.SourceURL)
	assert.Equal(t, "12345", p.ExternalID)
	require.NotNil(t, p.SalaryMin)
	require.NotNil(t, p.SalaryMax)
	assert.Equal(t, 60000, *p.SalaryMin)
	assert.Equal(t, 90000, *p.SalaryMax)
	assert.True(t, p.EntryLevelFriendly)
	require.NotNil(t, p.PostedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), *p.PostedAt)
	assert.Equal(t, jobs.LocationRemote, p.LocationType)
	assert.Equal(t, jobs.EmploymentContract, p.EmploymentType)
	assert.Equal(t, "fintech", p.CompanyCategory)
	assert.Equal(t, []string{"Go", "Kubernetes"}, p.Skills)
}

func TestInference(t *testing.T) {
	tests := []struct {
		title, description, location string
		level                        jobs.ExperienceLevel
		locType                      jobs.LocationType
	}{
		{"Engineering Manager", "", "", jobs.ExperienceManager, jobs.LocationOnsite},
		{"Senior Python Developer", "work from home", "", jobs.ExperienceSenior, jobs.LocationRemote},
		{"Graduate Developer", "hybrid schedule", "", jobs.ExperienceEntry, jobs.LocationHybrid},
		{"Developer", "", "Remote, US", jobs.ExperienceJunior, jobs.LocationRemote},
		{"Software Engineer", "requires 5+ years of experience", "", jobs.ExperienceSenior, jobs.LocationOnsite},
		{"Software Engineer", "requires 15+ years in leadership", "", jobs.ExperienceJunior, jobs.LocationOnsite},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, experienceLevel("", tt.title, tt.description), tt.title)
		assert.Equal(t, tt.locType, locationType("", tt.title, tt.description, tt.location), tt.title)
	}
}

func TestCompanyCategory(t *testing.T) {
	assert.Equal(t, "healthcare", companyCategory("", "HealthTech Innovations"))
	assert.Equal(t, "healthcare", companyCategory("", "NYC MedSystems"))
	assert.Equal(t, "fintech", companyCategory("", "FinanceCloud Inc"))
	assert.Equal(t, "startup", companyCategory("", "Orbit Labs"))
	assert.Equal(t, jobs.CompanyUnknown, companyCategory("", "Comedy Central"))
	assert.Equal(t, "enterprise", companyCategory("Enterprise", "Whatever"))
}

func TestSkillMatchingRespectsWordBoundaries(t *testing.T) {
	n := New(testProfile(), nil)

	skills := n.skillsFor("Experience with C++ and Node.js; Gopher culture; postgresql", nil)

	assert.Equal(t, []string{"PostgreSQL", "C++", "Node.js"}, skills)
}

func TestParseSalary(t *testing.T) {
	tests := []struct {
		text     string
		min, max int
		hasMax   bool
	}{
		{"$70,000 - $120,000", 70000, 120000, true},
		{"$70,000 to $120,000", 70000, 120000, true},
		{"70-120k", 70000, 120000, true},
		{"$80k - $100K", 80000, 100000, true},
		{"$80k", 80000, 0, false},
		{"$95,000", 95000, 0, false},
		{"110k DOE", 110000, 0, false},
	}

	for _, tt := range tests {
		low, high := ParseSalary(tt.text)
		require.NotNil(t, low, tt.text)
		assert.Equal(t, tt.min, *low, tt.text)
		if tt.hasMax {
			require.NotNil(t, high, tt.text)
			assert.Equal(t, tt.max, *high, tt.text)
		} else {
			assert.Nil(t, high, tt.text)
		}
	}

	low, high := ParseSalary("competitive pay")
	assert.Nil(t, low)
	assert.Nil(t, high)
}

func TestSalaryAmountsRejectImplausibleValues(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int
		ok    bool
	}{
		{"plain float", 85000.4, 85000, true},
		{"json number", json.Number("120000"), 120000, true},
		{"huge float", 1e300, 0, false},
		{"infinity", math.Inf(1), 0, false},
		{"nan", math.NaN(), 0, false},
		{"huge int64", int64(math.MaxInt64), 0, false},
		{"huge string", "999999999999999999999k", 0, false},
		{"negative", -5.0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := toAmount(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSalaryStringUsedWhenNumbersMissing(t *testing.T) {
	n := New(testProfile(), nil)

	p, err := n.Normalize(sources.RawRecord{
		"title":      "Dev",
		"source_url": "https://jobs.acme.dev/2",
		"salary":     "$70,000 - $120,000",
	}, jobs.Discovery{Source: "rss"})
	require.NoError(t, err)

	require.NotNil(t, p.SalaryMin)
	assert.Equal(t, 70000, *p.SalaryMin)
	assert.Equal(t, 120000, *p.SalaryMax)
}

func TestAllCountsRejectionsAndLogs(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	n := New(testProfile(), zap.New(core))

	res := n.All([]Input{
		{Record: sources.RawRecord{"title": "Dev", "source_url": "https://jobs.acme.dev/1"}, Discovery: jobs.Discovery{Source: "a"}},
		{Record: sources.RawRecord{"title": "Dev", "source_url": "https://example.org/1"}, Discovery: jobs.Discovery{Source: "a"}},
		{Record: sources.RawRecord{"source_url": "https://jobs.acme.dev/3"}, Discovery: jobs.Discovery{Source: "b"}},
	})

	assert.Len(t, res.Postings, 1)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 1, res.Reasons[ReasonPlaceholderURL])
	assert.Equal(t, 1, res.Reasons[ReasonNoIdentity])
	assert.Equal(t, 2, observed.FilterMessage("record rejected").Len())
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hello world & more", StripHTML("<div>Hello<br/>world</div><script>alert(1)</script> &amp; more"))
	assert.Equal(t, "plain text", StripHTML("  plain \n text "))
}
