package jobs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(url, company string, total float64, posted *time.Time, order, seq int) *Scored {
	return &Scored{
		Posting: &Posting{
			Title:     "Engineer",
			Company:   company,
			Source:    "test",
			SourceURL: url,
			PostedAt:  posted,
			Discovery: Discovery{Order: order, Sequence: seq},
		},
		Score: &Score{Total: total},
	}
}

func TestSortOrdersByScoreThenDateThenDiscovery(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	p := &Postings{Items: []*Scored{
		scored("https://a.dev/1", "A", 60, nil, 0, 0),
		scored("https://a.dev/2", "A", 60, &older, 0, 1),
		scored("https://a.dev/3", "A", 90, nil, 1, 0),
		scored("https://a.dev/4", "A", 60, &newer, 1, 1),
		scored("https://a.dev/5", "A", 60, nil, 0, 2),
	}}

	p.Sort()

	assert.Equal(t, []string{
		"https://a.dev/3",
		"https://a.dev/4",
		"https://a.dev/2",
		"https://a.dev/1",
		"https://a.dev/5",
	}, p.URLs())
}

func TestExcludePreservesOrder(t *testing.T) {
	p := &Postings{Items: []*Scored{
		scored("https://a.dev/1", "Acme", 1, nil, 0, 0),
		scored("https://a.dev/2", "Globex", 1, nil, 0, 1),
		scored("https://a.dev/3", "Acme", 1, nil, 0, 2),
		scored("https://a.dev/4", "Initech", 1, nil, 0, 3),
	}}

	removed := p.Exclude(PostingCompanyField, []string{"Acme"})

	assert.Equal(t, []string{"https://a.dev/1", "https://a.dev/3"}, removed)
	assert.Equal(t, []string{"https://a.dev/2", "https://a.dev/4"}, p.URLs())
	assert.Nil(t, p.Exclude(PostingCompanyField, nil))
}

func TestTruncateAndRecommended(t *testing.T) {
	p := &Postings{Items: []*Scored{
		scored("https://a.dev/1", "A", 1, nil, 0, 0),
		scored("https://a.dev/2", "A", 1, nil, 0, 1),
		scored("https://a.dev/3", "A", 1, nil, 0, 2),
	}}
	p.Items[1].Score.Recommended = true

	assert.Equal(t, 1, p.Recommended().Len())

	p.Truncate(2)
	assert.Equal(t, 2, p.Len())
	p.Truncate(10)
	assert.Equal(t, 2, p.Len())
}

func TestReportBySource(t *testing.T) {
	salary := 70000
	p := &Postings{Items: []*Scored{scored("https://a.dev/1", "Acme", 72.5, nil, 0, 0)}}
	p.Items[0].Posting.SalaryMin = &salary
	p.Items[0].Note = "hello"

	report := p.ReportBySource()

	entries := report["test"]
	require.Len(t, entries, 1)
	assert.Equal(t, "72.5", entries[0]["score"])
	assert.Equal(t, "70000+", entries[0]["salary"])
	assert.Equal(t, "hello", entries[0]["note"])
}

func TestExcludedPostingsRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	empty, err := GetExcludedPostingsFromFile(path)
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	p := &Postings{Items: []*Scored{scored("https://a.dev/1", "Acme", 1, nil, 0, 0)}}
	empty.Append(p.ToExcluded("cli", "manual"))
	require.NoError(t, empty.ToFile(path))

	loaded, err := GetExcludedPostingsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.dev/1"}, loaded.URLs())
	assert.Equal(t, "manual", loaded.Items[0].Reason)
}

func TestIsSyntheticAndSalary(t *testing.T) {
	salary := 90000
	p := &Posting{Source: SyntheticSourcePrefix + "generator", SalaryMax: &salary}

	assert.True(t, p.IsSynthetic())
	got, ok := p.Salary()
	assert.True(t, ok)
	assert.Equal(t, 90000, got)

	_, ok = (&Posting{}).Salary()
	assert.False(t, ok)
}
