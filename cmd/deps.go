package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/ai/gemini"
	"github.com/spigell/job-radar/internal/coordinator"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/rescore"
	"github.com/spigell/job-radar/internal/scheduler"
	"github.com/spigell/job-radar/internal/secrets"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/storage"
)

type store interface {
	coordinator.Store
	rescore.Store
	scheduler.Sweeper
}

// openStore connects to Postgres when a database url is configured and falls back to memory otherwise.
func openStore(ctx context.Context, config *Config, logger *zap.Logger) (store, func(), error) {
	url := strings.TrimSpace(config.Database.URL)
	if url == "" {
		logger.Warn("database is not configured, postings are kept in memory",
			zap.String("hint", "set JOB_RADAR_DATABASE_URL or database.url"))
		return storage.NewMemory(), func() {}, nil
	}

	pool, err := storage.NewPostgresPool(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	pg := storage.NewPostgres(pool, logger.Named("storage"))
	if config.Database.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
	}
	return pg, pg.Close, nil
}

// openBus connects to Redis when configured; otherwise profile updates stay in process.
func openBus(ctx context.Context, config *Config, logger *zap.Logger) (events.Bus, error) {
	url := strings.TrimSpace(config.Redis.URL)
	if url == "" {
		return events.NewLocal(logger.Named("events")), nil
	}
	client, err := events.NewRedisClient(ctx, url)
	if err != nil {
		return nil, err
	}
	return events.NewRedis(client, logger.Named("events")), nil
}

func newDrafter(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Drafter, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	genLogger := logger.WithCommonFields(log, "gemini", cfg.Gemini.Model).
		With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewDrafter(generator, cfg.Gemini.MaxLogLength, genLogger), nil
}

// prepareFilters builds the steps that run after the min score threshold.
func prepareFilters(ctx context.Context, config *Config, excludeFile string, logger *zap.Logger) []filtering.Filter {
	steps := []filtering.Filter{
		filtering.NewExcludedCompanies(config.Run.ExcludeCompanies, logger),
		filtering.NewExcludeFile(excludeFile, logger),
		filtering.NewSynthetic(config.Run.ExcludeSynthetic, logger),
	}

	if config.AI.Enabled {
		drafter, err := newDrafter(ctx, config.AI, logger)
		if err != nil {
			logger.Warn("skipping application notes", zap.Error(err))
		} else {
			steps = append(steps, filtering.NewNote(drafter, config.Profile, config.AI.NoteLimit, logger))
		}
	}

	return steps
}

// runOptions converts the run section into coordinator options.
func runOptions(config *Config) (coordinator.Options, error) {
	r := config.Run
	selection := sources.SelectAll
	if r.SourcesTier != "" {
		selection = sources.Selection(strings.ToLower(strings.TrimSpace(r.SourcesTier)))
	}
	switch selection {
	case sources.SelectAll, sources.SelectPriority, sources.SelectCustom:
	default:
		return coordinator.Options{}, fmt.Errorf("%w: %s", sources.ErrUnknownSelection, r.SourcesTier)
	}

	return coordinator.Options{
		MaxJobs:       r.MaxJobs,
		Selection:     selection,
		Sources:       r.Sources,
		MinScore:      r.MinScore,
		DryRun:        r.DryRun,
		FallbackFloor: r.FallbackFloor,
		CallTimeout:   r.CallTimeout,
		RunBudget:     r.RunBudget,
	}, nil
}

func newCoordinator(ctx context.Context, config *Config, st coordinator.Store, excludeFile string, logger *zap.Logger) (*coordinator.Coordinator, error) {
	registry, err := buildRegistry(config, logger)
	if err != nil {
		return nil, fmt.Errorf("building source registry: %w", err)
	}
	return coordinator.New(coordinator.Config{
		Registry: registry,
		Store:    st,
		Filters:  prepareFilters(ctx, config, excludeFile, logger),
		Logger:   logger,
	})
}

func runIDField(id string) zap.Field {
	return zap.String(logger.FieldRunID, id)
}
