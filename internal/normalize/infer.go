package normalize

import (
	"regexp"
	"strings"

	"github.com/spigell/job-radar/internal/jobs"
)

const (
	boundaryBefore = `(?:^|[^\p{L}\p{N}_])`
	boundaryAfter  = `(?:$|[^\p{L}\p{N}_])`
)

// wordPattern matches term as a whole word, case-insensitively. Terms like "C++" or "Node.js"
// keep their punctuation, so \b cannot be used.
func wordPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + boundaryBefore + regexp.QuoteMeta(strings.TrimSpace(term)) + boundaryAfter)
}

// prefixPattern matches term at the start of a word, so "health" matches "HealthTech".
func prefixPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + boundaryBefore + regexp.QuoteMeta(term))
}

type keywordSet []*regexp.Regexp

func words(terms ...string) keywordSet {
	set := make(keywordSet, 0, len(terms))
	for _, term := range terms {
		set = append(set, wordPattern(term))
	}
	return set
}

func prefixes(terms ...string) keywordSet {
	set := make(keywordSet, 0, len(terms))
	for _, term := range terms {
		set = append(set, prefixPattern(term))
	}
	return set
}

func (k keywordSet) in(text string) bool {
	for _, re := range k {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var (
	managerKeywords = words("manager", "director", "head", "vp", "vice president")
	seniorKeywords  = words("senior", "lead", "principal", "staff", "5+ years", "experienced")
	entryKeywords   = words("entry", "junior", "new grad", "graduate", "associate", "trainee", "0-2 years")

	remoteKeywords = words("remote", "work from home", "wfh", "distributed")
	hybridKeywords = words("hybrid", "flexible", "remote/onsite")

	startupKeywords    = prefixes("startup", "labs", "ventures")
	fintechKeywords    = prefixes("fintech", "bank", "financ", "capital", "pay")
	healthcareKeywords = prefixes("health", "med", "pharma", "clinic")
)

var experienceAliases = map[string]jobs.ExperienceLevel{
	"entry":       jobs.ExperienceEntry,
	"entry_level": jobs.ExperienceEntry,
	"entry-level": jobs.ExperienceEntry,
	"intern":      jobs.ExperienceEntry,
	"junior":      jobs.ExperienceJunior,
	"jr":          jobs.ExperienceJunior,
	"mid":         jobs.ExperienceMid,
	"mid-level":   jobs.ExperienceMid,
	"middle":      jobs.ExperienceMid,
	"senior":      jobs.ExperienceSenior,
	"sr":          jobs.ExperienceSenior,
	"lead":        jobs.ExperienceLead,
	"principal":   jobs.ExperienceLead,
	"manager":     jobs.ExperienceManager,
	"director":    jobs.ExperienceManager,
	"executive":   jobs.ExperienceManager,
}

var locationAliases = map[string]jobs.LocationType{
	"remote":  jobs.LocationRemote,
	"hybrid":  jobs.LocationHybrid,
	"onsite":  jobs.LocationOnsite,
	"on-site": jobs.LocationOnsite,
	"on site": jobs.LocationOnsite,
	"office":  jobs.LocationOnsite,
}

var employmentAliases = map[string]jobs.EmploymentType{
	"full_time":  jobs.EmploymentFullTime,
	"full-time":  jobs.EmploymentFullTime,
	"full time":  jobs.EmploymentFullTime,
	"fulltime":   jobs.EmploymentFullTime,
	"permanent":  jobs.EmploymentFullTime,
	"part_time":  jobs.EmploymentPartTime,
	"part-time":  jobs.EmploymentPartTime,
	"part time":  jobs.EmploymentPartTime,
	"contract":   jobs.EmploymentContract,
	"contractor": jobs.EmploymentContract,
	"freelance":  jobs.EmploymentContract,
	"internship": jobs.EmploymentInternship,
	"intern":     jobs.EmploymentInternship,
	"temporary":  jobs.EmploymentTemporary,
	"temp":       jobs.EmploymentTemporary,
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func experienceLevel(raw, title, description string) jobs.ExperienceLevel {
	if level, ok := experienceAliases[key(raw)]; ok {
		return level
	}
	text := title + "\n" + description
	switch {
	case managerKeywords.in(text):
		return jobs.ExperienceManager
	case seniorKeywords.in(text):
		return jobs.ExperienceSenior
	case entryKeywords.in(text):
		return jobs.ExperienceEntry
	default:
		return jobs.ExperienceJunior
	}
}

func locationType(raw, title, description, location string) jobs.LocationType {
	if lt, ok := locationAliases[key(raw)]; ok {
		return lt
	}
	text := title + "\n" + description + "\n" + location
	switch {
	case remoteKeywords.in(text):
		return jobs.LocationRemote
	case hybridKeywords.in(text):
		return jobs.LocationHybrid
	default:
		return jobs.LocationOnsite
	}
}

func employmentType(raw string) jobs.EmploymentType {
	if et, ok := employmentAliases[key(raw)]; ok {
		return et
	}
	return jobs.EmploymentFullTime
}

func companyCategory(raw, company string) string {
	if category := key(raw); category != "" {
		return category
	}
	switch {
	case startupKeywords.in(company):
		return "startup"
	case fintechKeywords.in(company):
		return "fintech"
	case healthcareKeywords.in(company):
		return "healthcare"
	default:
		return jobs.CompanyUnknown
	}
}
