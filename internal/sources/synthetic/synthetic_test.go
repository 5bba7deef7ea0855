package synthetic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/normalize"
)

func TestFetchIsDeterministic(t *testing.T) {
	a := New(Config{})

	first, err := a.Fetch(context.Background(), "python developer", "Boston, MA")
	require.NoError(t, err)
	second, err := a.Fetch(context.Background(), "python developer", "Boston, MA")
	require.NoError(t, err)

	require.Len(t, first, len(companies)*len(templates))
	for i := range first {
		assert.Equal(t, first[i]["source_url"], second[i]["source_url"])
	}
	assert.Equal(t, "Junior Python Developer", first[0]["title"])
	assert.Equal(t, "Boston, MA", first[0]["location"])

	other, err := a.Fetch(context.Background(), "golang", "Boston, MA")
	require.NoError(t, err)
	assert.NotEqual(t, first[0]["source_url"], other[0]["source_url"])
	assert.Equal(t, "Junior Golang Developer", other[0]["title"])
}

func TestFetchHonoursPerCallCap(t *testing.T) {
	a := New(Config{Name: "samples", PerCall: 4})
	assert.Equal(t, "samples", a.Name())

	records, err := a.Fetch(context.Background(), "go", "")
	require.NoError(t, err)
	assert.Len(t, records, 4)
}

func TestFetchStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(Config{}).Fetch(ctx, "go", "")
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecordsSurviveNormalization(t *testing.T) {
	records, err := New(Config{}).Fetch(context.Background(), "python", "Remote")
	require.NoError(t, err)

	n := normalize.New(nil, nil)
	for _, rec := range records {
		p, err := n.Normalize(rec, jobs.Discovery{Source: jobs.SyntheticSourcePrefix + DefaultName})
		require.NoError(t, err)
		assert.True(t, p.IsSynthetic())
		assert.NotNil(t, p.SalaryMin)
		assert.NotNil(t, p.PostedAt)
	}
}

func TestSubjectOf(t *testing.T) {
	assert.Equal(t, "Python", subjectOf("junior python developer"))
	assert.Equal(t, "Software", subjectOf("Senior Engineer"))
	assert.Equal(t, "Software", subjectOf(""))
}
