package filtering

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
)

// ThresholdName is the step whose drops are reported as rejected below threshold.
const ThresholdName = "threshold"

type thresholdFilter struct {
	minScore float64
	logger   *zap.Logger
}

// NewThreshold creates a filter that removes postings scoring below minScore.
func NewThreshold(minScore float64, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &thresholdFilter{minScore: minScore, logger: logger}
}

func (f *thresholdFilter) Name() string { return ThresholdName }

func (f *thresholdFilter) Disable(string) {}

func (f *thresholdFilter) IsEnabled() bool { return true }

func (f *thresholdFilter) Validate() error {
	if f.minScore < 0 || f.minScore > 100 {
		return fmt.Errorf("min score %.2f is out of [0, 100]", f.minScore)
	}
	return nil
}

func (f *thresholdFilter) Apply(_ context.Context, v *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := v.Len()
	excluded := v.RemoveFunc(func(s *jobs.Scored) bool {
		return s.Score == nil || s.Score.Total < f.minScore
	})
	if len(excluded) > 0 {
		f.logger.Debug("excluding postings below threshold",
			zap.Float64("min_score", f.minScore),
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *thresholdFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: true,
		Details: map[string]string{"min_score": strconv.FormatFloat(f.minScore, 'f', 2, 64)},
	}
}
