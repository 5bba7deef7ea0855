// Package coordinator runs one aggregation pass: it fans out to the registered sources tier by tier,
// then normalizes, deduplicates, scores, ranks, filters and persists what they returned.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-radar/internal/dedup"
	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/normalize"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/scoring"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
)

var (
	// ErrAllSourcesFailed is returned, together with the report, when every attempted source failed.
	ErrAllSourcesFailed = errors.New("all sources failed")
	ErrNoSources        = errors.New("no sources selected")
	ErrNoSearchTerms    = errors.New("no search terms")
)

// Store is the persistence boundary of a run.
type Store interface {
	SavePostings(ctx context.Context, items []*jobs.Scored) (storage.SaveResult, error)
}

// Config wires a Coordinator. Filters run after the min score threshold, in the given order.
type Config struct {
	Registry *sources.Registry
	Store    Store
	Filters  []filtering.Filter
	Logger   *zap.Logger
}

type Coordinator struct {
	registry *sources.Registry
	store    Store
	filters  []filtering.Filter
	logger   *zap.Logger
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Registry == nil {
		return nil, errors.New("source registry is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		registry: cfg.Registry,
		store:    cfg.Store,
		filters:  cfg.Filters,
		logger:   cfg.Logger,
	}, nil
}

// Result is what a run produced. Postings are the ranked postings that passed every filter step.
type Result struct {
	Postings *jobs.Postings
	Report   *Report
}

// Run executes one pass for the profile. On ErrAllSourcesFailed the result still carries the report.
func (c *Coordinator) Run(ctx context.Context, p *profile.Profile, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: profile is nil", profile.ErrInvalid)
	}

	prepared := *p
	if opts.MinScore != nil {
		prepared = *prepared.WithMinScore(*opts.MinScore)
	}
	if err := prepared.Prepare(); err != nil {
		return nil, err
	}

	terms := opts.Terms
	if len(terms) == 0 {
		terms = prepared.SearchTerms()
	}
	if len(terms) == 0 {
		return nil, ErrNoSearchTerms
	}
	locations := opts.Locations
	if len(locations) == 0 {
		locations = prepared.SearchLocations()
	}

	entries, err := c.registry.Select(opts.Selection, opts.Sources)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoSources
	}

	report := &Report{ID: uuid.NewString(), StartedAt: time.Now().UTC(), DryRun: opts.DryRun}
	log := c.logger.With(zap.String(logger.FieldRunID, report.ID))
	log.Info("run started",
		zap.Strings("terms", terms),
		zap.Strings("locations", locations),
		zap.String("selection", string(opts.Selection)),
		zap.Int("sources", len(entries)),
		zap.Int("max_jobs", opts.MaxJobs),
	)

	result := &Result{Postings: &jobs.Postings{}, Report: report}
	defer func() { report.Elapsed = time.Since(report.StartedAt) }()

	fetchCtx, cancel := context.WithTimeout(ctx, opts.RunBudget)
	defer cancel()

	collected := c.fetchTiers(fetchCtx, log, entries, terms, locations, opts, report)

	if fallback := c.registry.Fallback(); fallback != nil && report.Raw < opts.FallbackFloor && report.Answered() {
		log.Info("too few records collected, running fallback source",
			zap.String(logger.FieldSource, fallback.Name()), zap.Int("raw", report.Raw), zap.Int("floor", opts.FallbackFloor))
		res := c.runWorker(fetchCtx, *fallback, jobs.SyntheticSourcePrefix+fallback.Name(), terms, locations, opts.CallTimeout)
		report.Sources = append(report.Sources, res.report)
		report.Raw += len(res.records)
		report.FallbackUsed = true
		collected = append(collected, res)
	}

	if report.AllFailed() {
		report.Log(log)
		return result, ErrAllSourcesFailed
	}

	inputs := merge(collected)

	normalized := normalize.New(&prepared, log).All(inputs)
	report.Normalized = len(normalized.Postings)
	report.RejectedNormalization = normalized.Rejected
	report.RejectReasons = normalized.Reasons

	unique := dedup.New(log).Run(normalized.Postings)
	report.Deduplicated = len(unique.Unique)
	report.Duplicates = unique.Duplicates

	postings := &jobs.Postings{Items: scoring.New(&prepared, log).ScoreAll(unique.Unique)}
	report.Scored = postings.Len()
	postings.Sort()
	postings.Truncate(opts.MaxJobs)

	steps := append([]filtering.Filter{filtering.NewThreshold(prepared.Limits().MinScore, log)}, c.filters...)
	out, stepReports, err := filtering.New(steps, log).RunFilters(ctx, postings)
	if err != nil {
		return result, fmt.Errorf("filtering postings: %w", err)
	}
	report.Steps = stepReports
	for _, step := range stepReports {
		if step.Name == filtering.ThresholdName {
			report.RejectedBelowThreshold += step.Dropped
			continue
		}
		report.Filtered += step.Dropped
	}
	result.Postings = out

	if opts.DryRun || c.store == nil {
		log.Info("skipping persistence", zap.Bool("dry_run", opts.DryRun), zap.Int("postings", out.Len()))
	} else {
		saved, err := c.store.SavePostings(ctx, out.Items)
		report.Saved = saved.Saved
		report.Existing = saved.Existing
		if err != nil {
			report.Log(log)
			return result, fmt.Errorf("saving postings: %w", err)
		}
	}

	report.Elapsed = time.Since(report.StartedAt)
	report.Log(log)
	return result, nil
}

// fetchTiers runs tiers in order, every adapter of a tier concurrently, and returns the worker results.
func (c *Coordinator) fetchTiers(ctx context.Context, log *zap.Logger, entries []sources.Entry, terms, locations []string, opts Options, report *Report) []workerResult {
	var (
		collected []workerResult
		mu        sync.Mutex
	)

	byTier := make(map[int][]sources.Entry)
	var ranks []int
	for _, entry := range entries {
		rank := entry.Tier.Rank()
		if _, ok := byTier[rank]; !ok {
			ranks = append(ranks, rank)
		}
		byTier[rank] = append(byTier[rank], entry)
	}
	sort.Ints(ranks)

	for i, rank := range ranks {
		tierEntries := byTier[rank]
		tierLog := log.With(zap.String(logger.FieldTier, string(tierEntries[0].Tier)))
		tierLog.Debug("tier started", zap.Int("sources", len(tierEntries)))

		var (
			g       errgroup.Group
			results []workerResult
		)
		for _, entry := range tierEntries {
			g.Go(func() error {
				res := c.runWorker(ctx, entry, entry.Name(), terms, locations, opts.CallTimeout)
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		sort.SliceStable(results, func(a, b int) bool { return results[a].order < results[b].order })
		for _, res := range results {
			report.Sources = append(report.Sources, res.report)
			report.Raw += len(res.records)
		}
		collected = append(collected, results...)

		if opts.shortCircuits() && report.Raw >= opts.MaxJobs {
			tierLog.Info("enough records collected, skipping remaining tiers", zap.Int("raw", report.Raw))
			for _, rest := range ranks[i+1:] {
				for _, entry := range byTier[rest] {
					report.Sources = append(report.Sources, SourceReport{
						Name:  entry.Name(),
						Tier:  string(entry.Tier),
						State: StateSkipped,
					})
				}
			}
			break
		}
	}

	return collected
}

// merge flattens worker results into normalizer input ordered by tier rank, registry order and
// position inside the source output.
func merge(results []workerResult) []normalize.Input {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := a.entry.Tier.Rank(), b.entry.Tier.Rank(); ra != rb {
			return ra < rb
		}
		return a.order < b.order
	})

	var inputs []normalize.Input
	for _, res := range results {
		for _, f := range res.records {
			inputs = append(inputs, normalize.Input{
				Record: f.record,
				Discovery: jobs.Discovery{
					Source:   res.source,
					Tier:     string(res.entry.Tier),
					Term:     f.term,
					Location: f.location,
					Order:    res.order,
					Sequence: f.sequence,
				},
			})
		}
	}
	return inputs
}
