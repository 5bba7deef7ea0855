package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/rescore"
)

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute scores of stored postings against the current profile",
	Run: func(cmd *cobra.Command, _ []string) {
		runRescore(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rescoreCmd)

	rescoreCmd.Flags().Bool("async", false, "publish a profile update for a running serve instance instead of rescoring here")
}

func runRescore(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if err := config.Profile.Prepare(); err != nil {
		logger.Fatal("validating the profile", zap.Error(err))
	}

	if async, _ := cmd.Flags().GetBool("async"); async {
		if config.Redis.URL == "" {
			logger.Fatal("redis is required to reach a running serve instance",
				zap.String("hint", "set JOB_RADAR_REDIS_URL or redis.url"))
		}
		bus, err := openBus(ctx, config, logger)
		if err != nil {
			logger.Fatal("connecting to the event bus", zap.Error(err))
		}
		defer bus.Close()

		if err := bus.PublishProfileUpdated(ctx, events.NewProfileUpdated(config.Profile)); err != nil {
			logger.Fatal("publishing profile update", zap.Error(err))
		}
		logger.Info("profile update published", zap.String("profile", config.Profile.ID))
		return
	}

	st, closeStore, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer closeStore()

	summary, err := rescore.NewService(st, logger).Rescore(ctx, config.Profile)
	if err != nil {
		logger.Fatal("rescoring postings", zap.Error(err))
	}
	logger.Info("rescoring done",
		zap.Int("total", summary.Total),
		zap.Int("rescored", summary.Rescored),
		zap.Int("failed", summary.Failed),
		zap.Int("recommended", summary.Recommended),
	)
}
