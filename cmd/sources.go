package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/secrets"
	"github.com/spigell/job-radar/internal/sources"
	"github.com/spigell/job-radar/internal/sources/adzuna"
	"github.com/spigell/job-radar/internal/sources/remoteok"
	"github.com/spigell/job-radar/internal/sources/rss"
	"github.com/spigell/job-radar/internal/sources/synthetic"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources with their tier, delay and budget",
	Run: func(_ *cobra.Command, _ []string) {
		listSources()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

func listSources() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	registry, err := buildRegistry(config, logger)
	if err != nil {
		logger.Fatal("building source registry", zap.Error(err))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTIER\tDELAY\tBUDGET\tLOCATION\tFALLBACK")
	for _, e := range registry.Entries() {
		location := "per location"
		if e.LocationAgnostic {
			location = "agnostic"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n", e.Name(), e.Tier, e.Delay, strconv.Itoa(e.Budget()), location, e.Fallback)
	}
	w.Flush()
}

// buildRegistry registers every enabled source in config order: adzuna, remoteok, rss feeds, then
// the synthetic fallback. A source whose credentials are missing is skipped with a warning.
func buildRegistry(config *Config, log *zap.Logger) (*sources.Registry, error) {
	registry := sources.NewRegistry()
	cfg := config.Sources
	if cfg == nil {
		return registry, nil
	}

	client := sources.NewHTTPClient(log.Named("http"))
	if cfg.HTTPTimeout > 0 {
		client.HTTPClient.Timeout = cfg.HTTPTimeout
	}
	if config.UserAgent != "" {
		client.UserAgent = config.UserAgent
	}

	if a := cfg.Adzuna; a != nil && a.Enabled {
		key, err := secrets.Optional(secrets.Source{
			Name:  "adzuna app key",
			Value: a.AppKey,
			File:  a.AppKeyFile,
			Env:   "ADZUNA_APP_KEY",
		})
		if err != nil {
			log.Warn("skipping adzuna source", zap.Error(err))
		} else {
			adapter, err := adzuna.New(adzuna.Config{
				AppID:    a.AppID,
				AppKey:   key,
				Country:  a.Country,
				PageSize: a.PageSize,
				MaxPages: a.MaxPages,
			}, client, log)
			switch {
			case errors.Is(err, adzuna.ErrMissingCredentials):
				log.Warn("skipping adzuna source", zap.Error(err),
					zap.String("hint", "set ADZUNA_APP_KEY_FILE or sources.adzuna.app-key-file"))
			case err != nil:
				return nil, err
			default:
				if err := addEntry(registry, adapter, a.EntryConfig, sources.TierPriority, false); err != nil {
					return nil, err
				}
			}
		}
	}

	if r := cfg.RemoteOK; r != nil && r.Enabled {
		adapter := remoteok.New(remoteok.Config{Endpoint: r.Endpoint, CacheTTL: r.CacheTTL}, client, log)
		if err := addEntry(registry, adapter, r.EntryConfig, sources.TierRemoteSpecialist, true); err != nil {
			return nil, err
		}
	}

	for _, feed := range cfg.RSS {
		if !feed.Enabled {
			continue
		}
		adapter, err := rss.New(rss.Config{
			Name:     feed.Name,
			URL:      feed.URL,
			Params:   feed.Params,
			Layout:   feed.Layout,
			Location: feed.Location,
		}, client, log)
		if err != nil {
			return nil, fmt.Errorf("rss feed %q: %w", feed.Name, err)
		}
		if err := addEntry(registry, adapter, feed.EntryConfig, sources.TierNiche, adapter.Static()); err != nil {
			return nil, err
		}
	}

	if s := cfg.Synthetic; s != nil && s.Enabled {
		adapter := synthetic.New(synthetic.Config{Name: s.Name, PerCall: s.PerCall})
		if err := registry.Add(sources.Entry{
			Adapter:          adapter,
			Tier:             sources.TierGeneral,
			LocationAgnostic: true,
			Fallback:         true,
		}); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func addEntry(registry *sources.Registry, adapter sources.Adapter, cfg EntryConfig, defaultTier sources.Tier, locationAgnostic bool) error {
	tier := defaultTier
	if cfg.Tier != "" {
		parsed, err := sources.ParseTier(cfg.Tier)
		if err != nil {
			return fmt.Errorf("source %s: %w", adapter.Name(), err)
		}
		tier = parsed
	}
	return registry.Add(sources.Entry{
		Adapter:          adapter,
		Tier:             tier,
		Delay:            cfg.Delay,
		MaxCombinations:  cfg.MaxCombinations,
		LocationAgnostic: locationAgnostic,
	})
}
