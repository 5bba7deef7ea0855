package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/coordinator"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptReportBySource      = "Report by source"
	PromptRunReport           = "Show run report"
	PromptPostingsToFile      = "Dump postings to file"
	PromptAppendToExcludeFile = "Append all postings to exclude file"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect, score and rank postings once",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "save found postings without asking for confirmation")
	runCmd.Flags().Bool("dry-run", false, "do not persist anything")
	runCmd.Flags().Int("max-jobs", 0, "maximum number of postings kept after ranking (default 100)")
	runCmd.Flags().String("sources-tier", "", "source selection: all, priority or custom")
	runCmd.Flags().StringSlice("sources", nil, "source names for the custom selection")
	runCmd.Flags().Float64("min-score", 0, "override the profile min score for this run")
	runCmd.Flags().StringSlice("terms", nil, "search terms instead of the ones derived from the profile")
	runCmd.Flags().StringSlice("locations", nil, "search locations instead of the ones derived from the profile")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with postings to exclude. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("run.dry-run", runCmd.Flags().Lookup("dry-run"))
	viper.BindPFlag("run.max-jobs", runCmd.Flags().Lookup("max-jobs"))
	viper.BindPFlag("run.sources-tier", runCmd.Flags().Lookup("sources-tier"))
	viper.BindPFlag("run.sources", runCmd.Flags().Lookup("sources"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-radar", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config.Run, "", "  ")
	logger.Debug(fmt.Sprintf("starting with run config: \n %s", pretty))

	opts, err := runOptions(config)
	if err != nil {
		logger.Fatal("reading run options", zap.Error(err))
	}
	if cmd.Flags().Changed("min-score") {
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		opts.MinScore = &minScore
	}
	opts.Terms, _ = cmd.Flags().GetStringSlice("terms")
	opts.Locations, _ = cmd.Flags().GetStringSlice("locations")

	// Postings are saved only after confirmation, so the coordinator itself never persists here.
	dryRun := opts.DryRun
	opts.DryRun = true

	var st store
	if !dryRun {
		var closeStore func()
		st, closeStore, err = openStore(ctx, config, logger)
		if err != nil {
			logger.Fatal("opening storage", zap.Error(err))
		}
		defer closeStore()
	}

	excludeFile := viper.GetString("exclude-file")
	c, err := newCoordinator(ctx, config, nil, excludeFile, logger)
	if err != nil {
		logger.Fatal("preparing the coordinator", zap.Error(err))
	}

	result, err := c.Run(ctx, config.Profile, opts)
	if err != nil {
		if errors.Is(err, coordinator.ErrAllSourcesFailed) && result != nil {
			printReport(logger, result.Report)
		}
		logger.Fatal("running the search", zap.Error(err))
	}

	postings := result.Postings
	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")
	items := []string{PromptYes, PromptNo, PromptReportBySource, PromptRunReport, PromptPostingsToFile}
	if excludeFile != "" {
		items = append(items, PromptAppendToExcludeFile)
	}
	prompt := promptui.Select{
		Label: "Save postings?",
		Items: items,
	}

	action := PromptYes
	for {
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of postings",
			zap.Int("count", postings.Len()),
			zap.Int("recommended", postings.Recommended().Len()),
		)

		if err := handleAction(ctx, action, logger, st, result, excludeFile); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, logger *zap.Logger, st store, result *coordinator.Result, excludeFile string) error {
	postings := result.Postings
	switch action {
	case PromptYes:
		return save(ctx, logger, st, result)
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptReportBySource:
		pretty, _ := json.MarshalIndent(postings.ReportBySource(), "", "  ")
		logger.Info(string(pretty), zap.Int("postings count", postings.Len()))
		return nil
	case PromptRunReport:
		printReport(logger, result.Report)
		return nil
	case PromptPostingsToFile:
		filename, err := postings.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptAppendToExcludeFile:
		return appendToExcludeFile(logger, postings, excludeFile)
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func save(ctx context.Context, log *zap.Logger, st store, result *coordinator.Result) error {
	if st == nil {
		log.Info("exiting", zap.String("reason", "dry run, nothing saved"))
		return errExit
	}

	saved, err := st.SavePostings(ctx, result.Postings.Items)
	if err != nil {
		return fmt.Errorf("saving postings: %w", err)
	}
	result.Report.Saved = saved.Saved
	result.Report.Existing = saved.Existing

	log.Info("successfully saved postings",
		runIDField(result.Report.ID),
		zap.Int("saved", saved.Saved),
		zap.Int("already_existing", saved.Existing),
	)
	return errExit
}

func appendToExcludeFile(logger *zap.Logger, postings *jobs.Postings, excludeFile string) error {
	excluded, err := jobs.GetExcludedPostingsFromFile(excludeFile)
	if err != nil {
		return err
	}

	excluded.Append(postings.ToExcluded("user", "reviewed"))

	if err = excluded.ToFile(excludeFile); err != nil {
		return err
	}

	logger.Info("appended to exclude file", zap.String("filename", excludeFile))

	postings.Exclude(jobs.PostingURLField, excluded.URLs())
	if postings.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "every posting is excluded now"))
		return errExit
	}
	return nil
}

func printReport(logger *zap.Logger, report *coordinator.Report) {
	pretty, _ := json.MarshalIndent(report, "", "  ")
	logger.Info(string(pretty), zap.Int("sources", len(report.Sources)))
}
