package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"
)

// Postings is an ordered list of scored postings flowing through a run.
type Postings struct {
	Items []*Scored
}

func (p *Postings) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

func (p *Postings) URLs() []string {
	urls := make([]string, 0, p.Len())
	for _, item := range p.Items {
		urls = append(urls, item.Posting.SourceURL)
	}
	return urls
}

func (p *Postings) FindByURL(url string) *Scored {
	for _, item := range p.Items {
		if item.Posting.SourceURL == url {
			return item
		}
	}
	return nil
}

// Exclude removes every posting whose field equals one of targets. Order is preserved.
// It returns the URLs of removed postings.
func (p *Postings) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[target] = struct{}{}
	}
	return p.RemoveFunc(func(s *Scored) bool {
		_, ok := set[s.Posting.GetStringField(name)]
		return ok
	})
}

// RemoveFunc removes postings matching fn and returns their URLs. Order is preserved.
func (p *Postings) RemoveFunc(fn func(*Scored) bool) []string {
	var removed []string
	kept := p.Items[:0]
	for _, item := range p.Items {
		if fn(item) {
			removed = append(removed, item.Posting.SourceURL)
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(p.Items); i++ {
		p.Items[i] = nil
	}
	p.Items = kept
	return removed
}

// Sort orders postings by total score descending, then by posted date descending with
// missing dates last, then by discovery order.
func (p *Postings) Sort() {
	sort.SliceStable(p.Items, func(i, j int) bool {
		a, b := p.Items[i], p.Items[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		ap, bp := a.Posting.PostedAt, b.Posting.PostedAt
		switch {
		case ap != nil && bp == nil:
			return true
		case ap == nil && bp != nil:
			return false
		case ap != nil && bp != nil && !ap.Equal(*bp):
			return ap.After(*bp)
		}
		return discoveryLess(a.Posting.Discovery, b.Posting.Discovery)
	})
}

func discoveryLess(a, b Discovery) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.Sequence < b.Sequence
}

func (p *Postings) Truncate(n int) {
	if n >= 0 && len(p.Items) > n {
		p.Items = p.Items[:n]
	}
}

func (p *Postings) Recommended() *Postings {
	out := &Postings{}
	for _, item := range p.Items {
		if item.Score != nil && item.Score.Recommended {
			out.Items = append(out.Items, item)
		}
	}
	return out
}

func (p *Postings) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "postings_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return file.Name(), nil
}

func (p *Postings) ToExcluded(actor, reason string) *ExcludedPostings {
	excluded := &ExcludedPostings{}
	for _, item := range p.Items {
		excluded.Items = append(excluded.Items, &ExcludedPosting{
			URL:        item.Posting.SourceURL,
			Company:    item.Posting.Company,
			Title:      item.Posting.Title,
			Actor:      actor,
			Reason:     reason,
			ExcludedAt: time.Now().UTC(),
		})
	}
	return excluded
}

// ReportBySource groups postings by their source for the interactive review.
func (p *Postings) ReportBySource() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, item := range p.Items {
		posting := item.Posting
		entry := map[string]string{
			"title":    posting.Title,
			"company":  posting.Company,
			"url":      posting.SourceURL,
			"location": fmt.Sprintf("%s (%s)", posting.Location, posting.LocationType),
			"salary":   salaryLabel(posting),
		}
		if item.Score != nil {
			entry["score"] = strconv.FormatFloat(item.Score.Total, 'f', 1, 64)
			entry["recommended"] = strconv.FormatBool(item.Score.Recommended)
		}
		if item.Note != "" {
			entry["note"] = item.Note
		}
		report[posting.Source] = append(report[posting.Source], entry)
	}
	return report
}

func salaryLabel(p *Posting) string {
	switch {
	case p.SalaryMin != nil && p.SalaryMax != nil:
		return fmt.Sprintf("%d-%d", *p.SalaryMin, *p.SalaryMax)
	case p.SalaryMin != nil:
		return fmt.Sprintf("%d+", *p.SalaryMin)
	case p.SalaryMax != nil:
		return fmt.Sprintf("up to %d", *p.SalaryMax)
	default:
		return "n/a"
	}
}
