package filtering

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
)

type syntheticFilter struct {
	enabled bool
	reason  string
	logger  *zap.Logger
}

// NewSynthetic creates a filter that removes postings produced by the fallback generator.
func NewSynthetic(enabled bool, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &syntheticFilter{enabled: enabled, logger: logger}
	if !enabled {
		f.reason = "synthetic postings are kept"
	}
	return f
}

func (f *syntheticFilter) Name() string { return "synthetic" }

func (f *syntheticFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *syntheticFilter) IsEnabled() bool { return f.enabled }

func (f *syntheticFilter) Validate() error { return nil }

func (f *syntheticFilter) Apply(_ context.Context, v *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := v.Len()
	excluded := v.RemoveFunc(func(s *jobs.Scored) bool { return s.Posting.IsSynthetic() })
	if len(excluded) > 0 {
		f.logger.Info("excluding synthetic postings",
			zap.Int("excluded", len(excluded)),
			zap.Int("postings_left", v.Len()),
		)
	}
	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *syntheticFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason}
}
