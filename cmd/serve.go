package cmd

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/coordinator"
	"github.com/spigell/job-radar/internal/events"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/rescore"
	"github.com/spigell/job-radar/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run aggregation on a schedule and rescore postings when the profile changes",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// profileHolder keeps the profile used by the next scheduled run.
type profileHolder struct {
	mu      sync.Mutex
	profile *profile.Profile
}

func (h *profileHolder) get() *profile.Profile {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.profile
}

// swap stores p and reports whether it differs from the previous profile.
func (h *profileHolder) swap(p *profile.Profile) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := !reflect.DeepEqual(h.profile, p)
	h.profile = p
	return changed
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	logger.Info("starting the job-radar server", zap.String("version", version))

	opts, err := runOptions(config)
	if err != nil {
		logger.Fatal("reading run options", zap.Error(err))
	}

	st, closeStore, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer closeStore()

	bus, err := openBus(ctx, config, logger)
	if err != nil {
		logger.Fatal("connecting to the event bus", zap.Error(err))
	}
	defer bus.Close()

	c, err := newCoordinator(ctx, config, st, viper.GetString("exclude-file"), logger)
	if err != nil {
		logger.Fatal("preparing the coordinator", zap.Error(err))
	}

	holder := &profileHolder{profile: config.Profile}
	watchProfile(ctx, holder, bus, logger)

	worker := rescore.NewWorker(bus, rescore.NewService(st, logger.Named("rescore")), logger.Named("rescore"))
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("rescoring worker stopped", zap.Error(err))
		}
	}()

	sched, err := scheduler.New(scheduler.Config{
		RunSpec:   config.Schedule.Run,
		SweepSpec: config.Schedule.Sweep,
		Retention: config.retention(),
	}, func(ctx context.Context) error {
		result, err := c.Run(ctx, holder.get(), opts)
		if errors.Is(err, coordinator.ErrAllSourcesFailed) && result != nil {
			logger.Warn("every source failed", runIDField(result.Report.ID))
		}
		return err
	}, st, logger.Named("scheduler"))
	if err != nil {
		logger.Fatal("preparing the scheduler", zap.Error(err))
	}
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("starting the scheduler", zap.Error(err))
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop in time", zap.Error(err))
	}
	<-workerDone
}

// watchProfile publishes a profile update every time the config file changes the profile.
func watchProfile(ctx context.Context, holder *profileHolder, bus events.Bus, logger *zap.Logger) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		config, err := getConfig()
		if err != nil {
			logger.Warn("reloading config failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if err := config.Profile.Prepare(); err != nil {
			logger.Warn("ignoring invalid profile", zap.String("file", e.Name), zap.Error(err))
			return
		}
		if !holder.swap(config.Profile) {
			return
		}

		logger.Info("profile changed", zap.String("file", e.Name), zap.String("profile", config.Profile.ID))
		if err := bus.PublishProfileUpdated(ctx, events.NewProfileUpdated(config.Profile)); err != nil {
			logger.Warn("publishing profile update failed", zap.Error(err))
		}
	})
	viper.WatchConfig()
}
