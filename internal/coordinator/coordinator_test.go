package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/sources/synthetic"
	"github.com/spigell/job-radar/internal/storage"
)

type fakeAdapter struct {
	name  string
	calls atomic.Int32
	fetch func(ctx context.Context, term, location string) ([]sources.RawRecord, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Fetch(ctx context.Context, term, location string) ([]sources.RawRecord, error) {
	f.calls.Add(1)
	return f.fetch(ctx, term, location)
}

func returning(name string, records []sources.RawRecord) *fakeAdapter {
	return &fakeAdapter{name: name, fetch: func(context.Context, string, string) ([]sources.RawRecord, error) {
		return records, nil
	}}
}

func failing(name string) *fakeAdapter {
	return &fakeAdapter{name: name, fetch: func(context.Context, string, string) ([]sources.RawRecord, error) {
		return nil, errors.New("503 from upstream")
	}}
}

func hanging(name string) *fakeAdapter {
	return &fakeAdapter{name: name, fetch: func(ctx context.Context, _, _ string) ([]sources.RawRecord, error) {
		<-ctx.Done()
		return []sources.RawRecord{{"title": "late", "company": "Late", "source_url": "https://late.dev/1"}}, ctx.Err()
	}}
}

func records(host string, n int) []sources.RawRecord {
	out := make([]sources.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sources.RawRecord{
			"title":       fmt.Sprintf("Go Developer %d", i),
			"company":     fmt.Sprintf("Company %d", i),
			"description": "Junior role working with Go and PostgreSQL. Remote friendly.",
			"source_url":  fmt.Sprintf("https://%s/jobs/%d", host, i),
			"external_id": fmt.Sprintf("%s-%d", host, i),
		})
	}
	return out
}

func testProfile() *profile.Profile {
	p := profile.Default()
	p.Skills = []string{"Go", "PostgreSQL"}
	p.JobTitles = []string{"Go Developer"}
	return p
}

func floatPtr(v float64) *float64 { return &v }

func newCoordinator(t *testing.T, store Store, entries ...sources.Entry) *Coordinator {
	t.Helper()
	registry := sources.NewRegistry()
	for _, e := range entries {
		require.NoError(t, registry.Add(e))
	}
	c, err := New(Config{Registry: registry, Store: store})
	require.NoError(t, err)
	return c
}

func baseOptions() Options {
	return Options{
		Terms:       []string{"go"},
		Locations:   []string{"Remote"},
		MinScore:    floatPtr(0),
		DryRun:      true,
		CallTimeout: time.Second,
	}
}

func TestRunTimedOutSourceFailsOthersSucceed(t *testing.T) {
	slow := hanging("slow")
	fast := returning("fast", records("fast.dev", 10))
	c := newCoordinator(t, nil,
		sources.Entry{Adapter: slow, Tier: sources.TierPriority},
		sources.Entry{Adapter: fast, Tier: sources.TierPriority},
	)

	opts := baseOptions()
	opts.CallTimeout = 50 * time.Millisecond

	res, err := c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Postings.Len())
	require.NotNil(t, res.Report.Source("slow"))
	assert.Equal(t, StateFailed, res.Report.Source("slow").State)
	assert.Contains(t, res.Report.Source("slow").Error, "timed out")
	assert.Zero(t, res.Report.Source("slow").Records)
	assert.Equal(t, StateSuccess, res.Report.Source("fast").State)
	assert.Equal(t, 10, res.Report.Raw)
	for _, item := range res.Postings.Items {
		assert.Equal(t, "fast", item.Posting.Source)
	}
}

func TestRunStopsAfterTierOnceEnoughRecords(t *testing.T) {
	priority := returning("priority", records("priority.dev", 3))
	general := returning("general", records("general.dev", 3))
	entries := []sources.Entry{
		{Adapter: general, Tier: sources.TierGeneral},
		{Adapter: priority, Tier: sources.TierPriority},
	}

	opts := baseOptions()
	opts.MaxJobs = 3

	res, err := newCoordinator(t, nil, entries...).Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(0), general.calls.Load())
	assert.Equal(t, StateSkipped, res.Report.Source("general").State)
	assert.Equal(t, 3, res.Report.Raw)
	assert.Equal(t, "priority", res.Report.Sources[0].Name)

	priority = returning("priority", records("priority.dev", 3))
	general = returning("general", records("general.dev", 3))
	entries = []sources.Entry{
		{Adapter: general, Tier: sources.TierGeneral},
		{Adapter: priority, Tier: sources.TierPriority},
	}
	opts.Selection = sources.SelectCustom
	opts.Sources = []string{"general", "priority"}

	res, err = newCoordinator(t, nil, entries...).Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), general.calls.Load())
	assert.Equal(t, 6, res.Report.Raw)
	assert.Equal(t, 3, res.Postings.Len())
}

func TestRunFallbackIsTaggedSynthetic(t *testing.T) {
	live := returning("real", records("real.dev", 2))
	c := newCoordinator(t, nil,
		sources.Entry{Adapter: live, Tier: sources.TierPriority},
		sources.Entry{Adapter: synthetic.New(synthetic.Config{PerCall: 4}), Tier: sources.TierGeneral, Fallback: true, LocationAgnostic: true},
	)

	res, err := c.Run(context.Background(), testProfile(), baseOptions())
	require.NoError(t, err)

	assert.True(t, res.Report.FallbackUsed)
	assert.Equal(t, 6, res.Report.Raw)
	fallback := res.Report.Source(synthetic.DefaultName)
	require.NotNil(t, fallback)
	assert.True(t, fallback.Fallback)

	synthetics := 0
	for _, item := range res.Postings.Items {
		if item.Posting.IsSynthetic() {
			synthetics++
			assert.Equal(t, jobs.SyntheticSourcePrefix+synthetic.DefaultName, item.Posting.Source)
			assert.Equal(t, "go", item.Posting.Discovery.Term)
		}
	}
	assert.Equal(t, 4, synthetics)
}

func TestRunFallbackSkippedWhenEnoughOrNobodyAnswered(t *testing.T) {
	generator := &fakeAdapter{name: "generator", fetch: func(context.Context, string, string) ([]sources.RawRecord, error) {
		return records("generated.dev", 1), nil
	}}

	c := newCoordinator(t, nil,
		sources.Entry{Adapter: returning("real", records("real.dev", 5)), Tier: sources.TierPriority},
		sources.Entry{Adapter: generator, Fallback: true},
	)
	res, err := c.Run(context.Background(), testProfile(), baseOptions())
	require.NoError(t, err)
	assert.False(t, res.Report.FallbackUsed)
	assert.Equal(t, int32(0), generator.calls.Load())

	c = newCoordinator(t, nil,
		sources.Entry{Adapter: failing("a"), Tier: sources.TierPriority},
		sources.Entry{Adapter: failing("b"), Tier: sources.TierNiche},
		sources.Entry{Adapter: generator, Fallback: true},
	)
	res, err = c.Run(context.Background(), testProfile(), baseOptions())
	require.ErrorIs(t, err, ErrAllSourcesFailed)
	require.NotNil(t, res)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Sources, 2)
	assert.Equal(t, StateFailed, res.Report.Source("a").State)
	assert.Contains(t, res.Report.Source("b").Error, "503")
	assert.Equal(t, int32(0), generator.calls.Load())
}

func TestRunKeepsFirstSeenAcrossSources(t *testing.T) {
	shared := records("shared.dev", 4)
	c := newCoordinator(t, nil,
		sources.Entry{Adapter: returning("niche", shared), Tier: sources.TierNiche},
		sources.Entry{Adapter: returning("priority", append(records("shared.dev", 2), records("own.dev", 2)...)), Tier: sources.TierPriority},
	)

	res, err := c.Run(context.Background(), testProfile(), baseOptions())
	require.NoError(t, err)

	assert.Equal(t, 8, res.Report.Raw)
	assert.Equal(t, 2, res.Report.Duplicates)
	seen := map[string]bool{}
	for _, item := range res.Postings.Items {
		url := item.Posting.SourceURL
		assert.False(t, seen[url], "duplicate url %s", url)
		seen[url] = true
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, "priority", res.Postings.FindByURL("https://shared.dev/jobs/0").Posting.Source)
	assert.Equal(t, "niche", res.Postings.FindByURL("https://shared.dev/jobs/3").Posting.Source)
}

func TestRunCountsPipelineStagesAndPersists(t *testing.T) {
	recs := records("jobs.dev", 3)
	recs = append(recs,
		sources.RawRecord{"title": "Broken", "company": "Nowhere", "source_url": "https://example.com/1"},
		sources.RawRecord{"description": "no identity", "source_url": "https://jobs.dev/jobs/x"},
		recs[0],
	)

	store := storage.NewMemory()
	core, observed := observer.New(zapcore.InfoLevel)
	registry := sources.NewRegistry()
	require.NoError(t, registry.Add(sources.Entry{Adapter: returning("jobs", recs), Tier: sources.TierPriority}))
	c, err := New(Config{
		Registry: registry,
		Store:    store,
		Filters:  []filtering.Filter{filtering.NewExcludedCompanies([]string{"company 2"}, nil)},
		Logger:   zap.New(core),
	})
	require.NoError(t, err)

	opts := baseOptions()
	opts.DryRun = false

	res, err := c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)

	r := res.Report
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 6, r.Raw)
	assert.Equal(t, 4, r.Normalized)
	assert.Equal(t, 2, r.RejectedNormalization)
	assert.Equal(t, 3, r.Deduplicated)
	assert.Equal(t, 1, r.Duplicates)
	assert.Equal(t, 3, r.Scored)
	assert.Zero(t, r.RejectedBelowThreshold)
	assert.Equal(t, 1, r.Filtered)
	assert.Equal(t, 2, r.Saved)
	assert.Zero(t, r.Existing)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 1, observed.FilterMessage("run summary").Len())

	res, err = c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Zero(t, res.Report.Saved)
	assert.Equal(t, 2, res.Report.Existing)
}

func TestRunThresholdAndDryRun(t *testing.T) {
	store := storage.NewMemory()
	c := newCoordinator(t, store, sources.Entry{Adapter: returning("jobs", records("jobs.dev", 5)), Tier: sources.TierPriority})

	opts := baseOptions()
	opts.MinScore = floatPtr(100)
	opts.DryRun = false

	res, err := c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Report.RejectedBelowThreshold)
	assert.Zero(t, res.Postings.Len())
	assert.Zero(t, store.Len())

	opts.MinScore = floatPtr(0)
	opts.DryRun = true
	res, err = c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Postings.Len())
	assert.True(t, res.Report.DryRun)
	assert.Zero(t, store.Len())
}

func TestRunRecoversFromPanickingSource(t *testing.T) {
	boom := &fakeAdapter{name: "boom", fetch: func(context.Context, string, string) ([]sources.RawRecord, error) {
		panic("bad payload")
	}}
	c := newCoordinator(t, nil,
		sources.Entry{Adapter: boom, Tier: sources.TierPriority},
		sources.Entry{Adapter: returning("ok", records("ok.dev", 6)), Tier: sources.TierPriority},
	)

	res, err := c.Run(context.Background(), testProfile(), baseOptions())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.Report.Source("boom").State)
	assert.Contains(t, res.Report.Source("boom").Error, "panicked")
	assert.Equal(t, 6, res.Postings.Len())
}

func TestRunPartialSource(t *testing.T) {
	flaky := &fakeAdapter{name: "flaky", fetch: func(_ context.Context, term, _ string) ([]sources.RawRecord, error) {
		if term == "rust" {
			return nil, errors.New("rate limited")
		}
		return records("flaky.dev", 6), nil
	}}
	c := newCoordinator(t, nil, sources.Entry{Adapter: flaky, Tier: sources.TierPriority})

	opts := baseOptions()
	opts.Terms = []string{"go", "rust"}

	res, err := c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	src := res.Report.Source("flaky")
	assert.Equal(t, StatePartial, src.State)
	assert.Equal(t, 2, src.Calls)
	assert.Equal(t, 6, src.Records)
	assert.Equal(t, "rate limited", src.Error)
}

func TestRunValidatesInput(t *testing.T) {
	c := newCoordinator(t, nil, sources.Entry{Adapter: returning("jobs", nil)})

	_, err := c.Run(context.Background(), nil, baseOptions())
	assert.ErrorIs(t, err, profile.ErrInvalid)

	opts := baseOptions()
	opts.Selection = sources.SelectCustom
	opts.Sources = []string{"missing"}
	_, err = c.Run(context.Background(), testProfile(), opts)
	assert.ErrorIs(t, err, sources.ErrUnknownSource)

	opts = baseOptions()
	opts.Selection = sources.SelectPriority
	_, err = c.Run(context.Background(), testProfile(), opts)
	assert.ErrorIs(t, err, ErrNoSources)

	opts = baseOptions()
	opts.Terms = nil
	_, err = c.Run(context.Background(), profile.Default(), opts)
	assert.ErrorIs(t, err, ErrNoSearchTerms)

	opts = baseOptions()
	opts.MaxJobs = -1
	_, err = c.Run(context.Background(), testProfile(), opts)
	assert.Error(t, err)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestCombinationsRespectBudget(t *testing.T) {
	terms := []string{"go", "python", "rust"}
	locations := []string{"Berlin", "Remote"}

	all := combinations(sources.Entry{Tier: sources.TierPriority}, terms, locations)
	assert.Len(t, all, 6)
	assert.Equal(t, combination{term: "go", location: "Berlin"}, all[0])

	capped := combinations(sources.Entry{Tier: sources.TierPriority, MaxCombinations: 2}, terms, locations)
	assert.Equal(t, []combination{{"go", "Berlin"}, {"go", "Remote"}}, capped)

	agnostic := combinations(sources.Entry{Tier: sources.TierNiche, LocationAgnostic: true}, terms, locations)
	assert.Equal(t, []combination{{term: "go"}, {term: "python"}, {term: "rust"}}, agnostic)
}

func TestWorkerHonoursDelayAndRunBudget(t *testing.T) {
	slow := returning("slow", records("slow.dev", 1))
	c := newCoordinator(t, nil, sources.Entry{Adapter: slow, Tier: sources.TierPriority, Delay: time.Hour})

	opts := baseOptions()
	opts.Terms = []string{"go", "python"}
	opts.RunBudget = 50 * time.Millisecond

	res, err := c.Run(context.Background(), testProfile(), opts)
	require.NoError(t, err)
	assert.Equal(t, int32(1), slow.calls.Load())
	src := res.Report.Source("slow")
	assert.Equal(t, StatePartial, src.State)
	assert.Equal(t, 1, src.Records)
}
