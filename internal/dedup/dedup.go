package dedup

import (
	"net/url"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/normalize"
)

const titleWords = 3

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "and": {}, "or": {}, "for": {},
	"to": {}, "in": {}, "at": {}, "on": {}, "with": {}, "m": {}, "f": {}, "d": {},
}

// Result is the outcome of a deduplication pass.
type Result struct {
	Unique     []*jobs.Posting
	Duplicates int
	// Skipped counts postings without a usable URL. They never take part in key matching.
	Skipped int
}

type Deduplicator struct {
	logger *zap.Logger
}

func New(log *zap.Logger) *Deduplicator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Deduplicator{logger: log}
}

// Run keeps the first posting for every primary (URL) and secondary key. Order is preserved.
func (d *Deduplicator) Run(postings []*jobs.Posting) Result {
	res := Result{Unique: make([]*jobs.Posting, 0, len(postings))}
	byURL := make(map[string]*jobs.Posting, len(postings))
	byKey := make(map[string]*jobs.Posting, len(postings))

	for _, p := range postings {
		if p == nil || !usableURL(p.SourceURL) {
			res.Skipped++
			continue
		}

		if first, ok := byURL[p.SourceURL]; ok {
			d.collision("url", p.SourceURL, first, p)
			res.Duplicates++
			continue
		}

		key := SecondaryKey(p)
		if key != "" {
			if first, ok := byKey[key]; ok {
				d.collision("secondary", key, first, p)
				res.Duplicates++
				continue
			}
			byKey[key] = p
		}

		byURL[p.SourceURL] = p
		res.Unique = append(res.Unique, p)
	}

	return res
}

func (d *Deduplicator) collision(kind, key string, first, dup *jobs.Posting) {
	d.logger.Debug("duplicate posting dropped",
		append(logger.PostingFields(dup),
			zap.String("key_kind", kind),
			zap.String("key", key),
			zap.String("kept_url", first.SourceURL),
			zap.String("kept_source", first.Source),
		)...,
	)
}

func usableURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return !normalize.IsPlaceholderHost(u.Hostname())
}

// SecondaryKey returns the source-scoped external id key when present, otherwise a key built from
// the first significant title words, company and location. An empty title yields no key.
func SecondaryKey(p *jobs.Posting) string {
	if id := strings.TrimSpace(p.ExternalID); id != "" {
		return "id:" + Fold(p.Source) + "|" + id
	}

	title := TitleKey(p.Title)
	if title == "" {
		return ""
	}
	return "job:" + title + "|" + Fold(p.Company) + "|" + Fold(p.Location)
}

// TitleKey folds the title and keeps its first significant words.
func TitleKey(title string) string {
	fields := strings.FieldsFunc(Fold(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '+' && r != '#'
	})
	kept := make([]string, 0, titleWords)
	for _, field := range fields {
		if _, ok := stopwords[field]; ok {
			continue
		}
		kept = append(kept, field)
		if len(kept) == titleWords {
			break
		}
	}
	return strings.Join(kept, " ")
}

// Fold case-folds s, strips accents and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
