package normalize

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/sources"
)

// ErrRejected wraps every reason a raw record is dropped.
var ErrRejected = errors.New("record rejected")

const (
	ReasonMalformed      = "malformed"
	ReasonNoIdentity     = "missing title and company"
	ReasonEmptyURL       = "empty source url"
	ReasonInvalidURL     = "invalid source url"
	ReasonPlaceholderURL = "placeholder source url"
)

var placeholderHosts = []string{"example.com", "example.org", "example.net", "localhost", "test.invalid"}

// keyAliases maps alternative keys some sources use to the canonical record keys.
var keyAliases = map[string]string{
	"company_name": "company",
	"url":          "source_url",
	"link":         "source_url",
	"id":           "external_id",
	"date_posted":  "posted_date",
	"published_at": "posted_date",
}

// record is the loosely typed view of a RawRecord. Fields that sources send in many shapes stay `any`.
type record struct {
	Title              string `mapstructure:"title"`
	Company            string `mapstructure:"company"`
	Description        string `mapstructure:"description"`
	Location           string `mapstructure:"location"`
	SalaryMin          any    `mapstructure:"salary_min"`
	SalaryMax          any    `mapstructure:"salary_max"`
	Salary             any    `mapstructure:"salary"`
	Skills             any    `mapstructure:"skills"`
	PostedDate         any    `mapstructure:"posted_date"`
	SourceURL          string `mapstructure:"source_url"`
	ExternalID         string `mapstructure:"external_id"`
	LocationType       string `mapstructure:"location_type"`
	ExperienceLevel    string `mapstructure:"experience_level"`
	EmploymentType     string `mapstructure:"employment_type"`
	CompanyCategory    string `mapstructure:"company_category"`
	EntryLevelFriendly bool   `mapstructure:"entry_level_friendly"`
}

// RejectError describes why a record was dropped.
type RejectError struct {
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrRejected, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrRejected, e.Reason)
}

func (e *RejectError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrRejected, e.Err}
	}
	return []error{ErrRejected}
}

func reject(reason string, err error) error {
	return &RejectError{Reason: reason, Err: err}
}

type skillPattern struct {
	name    string
	pattern *regexp.Regexp
}

// Normalizer converts raw records into postings using the skill vocabulary of a profile.
type Normalizer struct {
	skills []skillPattern
	vocab  map[string]string
	logger *zap.Logger
	now    func() time.Time
}

func New(p *profile.Profile, log *zap.Logger) *Normalizer {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Normalizer{
		vocab:  make(map[string]string),
		logger: log,
		now:    time.Now,
	}
	if p != nil {
		for _, skill := range p.Vocabulary() {
			n.skills = append(n.skills, skillPattern{name: skill, pattern: wordPattern(skill)})
			n.vocab[strings.ToLower(skill)] = skill
		}
	}
	return n
}

// Result summarizes a batch normalization.
type Result struct {
	Postings []*jobs.Posting
	Rejected int
	Reasons  map[string]int
}

// Input is a raw record together with where it was discovered.
type Input struct {
	Record    sources.RawRecord
	Discovery jobs.Discovery
}

// All normalizes a batch, dropping and counting rejected records. Order is preserved.
func (n *Normalizer) All(inputs []Input) Result {
	res := Result{Reasons: make(map[string]int)}
	for _, in := range inputs {
		posting, err := n.Normalize(in.Record, in.Discovery)
		if err != nil {
			res.Rejected++
			var rejectErr *RejectError
			if errors.As(err, &rejectErr) {
				res.Reasons[rejectErr.Reason]++
			}
			n.logger.Debug("record rejected",
				append(logger.SourceFields(in.Discovery.Source, in.Discovery.Tier), zap.Error(err))...,
			)
			continue
		}
		res.Postings = append(res.Postings, posting)
	}
	return res
}

// Normalize converts a single record. A *RejectError is returned for records that cannot become postings.
func (n *Normalizer) Normalize(raw sources.RawRecord, d jobs.Discovery) (*jobs.Posting, error) {
	var rec record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &rec,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(canonicalKeys(raw)); err != nil {
		return nil, reject(ReasonMalformed, err)
	}

	title := cleanLine(rec.Title)
	company := cleanLine(rec.Company)
	if title == "" && company == "" {
		return nil, reject(ReasonNoIdentity, nil)
	}

	sourceURL, err := checkURL(rec.SourceURL)
	if err != nil {
		return nil, err
	}

	description := StripHTML(rec.Description)
	location := cleanLine(rec.Location)

	p := &jobs.Posting{
		Title:              title,
		Company:            company,
		Description:        description,
		Location:           location,
		Source:             d.Source,
		SourceURL:          sourceURL,
		ExternalID:         strings.TrimSpace(rec.ExternalID),
		ScrapedAt:          n.now().UTC(),
		Active:             true,
		EntryLevelFriendly: rec.EntryLevelFriendly,
		Discovery:          d,
	}

	p.SalaryMin, p.SalaryMax = salaryRange(rec.SalaryMin, rec.SalaryMax, rec.Salary)
	p.PostedAt = parseTime(rec.PostedDate)
	p.ExperienceLevel = experienceLevel(rec.ExperienceLevel, title, description)
	p.LocationType = locationType(rec.LocationType, title, description, location)
	p.EmploymentType = employmentType(rec.EmploymentType)
	p.CompanyCategory = companyCategory(rec.CompanyCategory, company)
	p.Skills = n.skillsFor(title+"\n"+description, toStrings(rec.Skills))

	return p, nil
}

func canonicalKeys(raw sources.RawRecord) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for alias, canonical := range keyAliases {
		v, ok := out[alias]
		if !ok {
			continue
		}
		delete(out, alias)
		if existing, exists := out[canonical]; !exists || existing == nil || existing == "" {
			out[canonical] = v
		}
	}
	return out
}

func checkURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", reject(ReasonEmptyURL, nil)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", reject(ReasonInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", reject(ReasonInvalidURL, fmt.Errorf("not an absolute http(s) url: %q", raw))
	}
	if IsPlaceholderHost(u.Hostname()) {
		return "", reject(ReasonPlaceholderURL, fmt.Errorf("host %q", u.Hostname()))
	}
	return raw, nil
}

// IsPlaceholderHost reports whether host is a documentation or loopback domain.
func IsPlaceholderHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	for _, placeholder := range placeholderHosts {
		if host == placeholder || strings.HasSuffix(host, "."+placeholder) {
			return true
		}
	}
	return false
}

// skillsFor scans text for vocabulary skills and unions in the supplied ones.
// Supplied skills outside the vocabulary are kept as given.
func (n *Normalizer) skillsFor(text string, supplied []string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(skill string) {
		key := strings.ToLower(skill)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, skill)
	}

	for _, skill := range n.skills {
		if skill.pattern.MatchString(text) {
			add(skill.name)
		}
	}
	for _, skill := range supplied {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		if canonical, ok := n.vocab[strings.ToLower(skill)]; ok {
			add(canonical)
			continue
		}
		add(skill)
	}
	return out
}

func toStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil
		}
		return strings.Split(val, ",")
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
