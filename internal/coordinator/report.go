package coordinator

import (
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/filtering"
	"github.com/spigell/job-radar/internal/logger"
)

// SourceState is the outcome of one adapter in a run.
type SourceState string

const (
	StateSuccess SourceState = "success"
	// StatePartial means some calls failed but records were collected.
	StatePartial SourceState = "partial"
	StateFailed  SourceState = "failed"
	// StateSkipped means the adapter never ran because an earlier tier collected enough records.
	StateSkipped SourceState = "skipped"
)

type SourceReport struct {
	Name     string        `json:"name"`
	Tier     string        `json:"tier"`
	State    SourceState   `json:"state"`
	Error    string        `json:"error,omitempty"`
	Records  int           `json:"records"`
	Calls    int           `json:"calls"`
	Fallback bool          `json:"fallback,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Report describes one run. Counts follow the pipeline order.
type Report struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	DryRun    bool      `json:"dry_run"`

	Raw                    int `json:"raw"`
	Normalized             int `json:"normalized"`
	RejectedNormalization  int `json:"rejected_normalization"`
	Deduplicated           int `json:"deduplicated"`
	Duplicates             int `json:"duplicates"`
	Scored                 int `json:"scored"`
	RejectedBelowThreshold int `json:"rejected_below_threshold"`
	Filtered               int `json:"filtered"`
	Saved                  int `json:"saved"`
	Existing               int `json:"already_existing"`

	RejectReasons map[string]int         `json:"reject_reasons,omitempty"`
	Sources       []SourceReport         `json:"sources"`
	Steps         []filtering.StepReport `json:"steps,omitempty"`
	FallbackUsed  bool                   `json:"fallback_used"`
	Elapsed       time.Duration          `json:"elapsed"`
}

// Source returns the report of the named adapter or nil.
func (r *Report) Source(name string) *SourceReport {
	for i := range r.Sources {
		if r.Sources[i].Name == name {
			return &r.Sources[i]
		}
	}
	return nil
}

// Answered reports whether at least one real adapter returned records or finished without error.
func (r *Report) Answered() bool {
	for _, s := range r.Sources {
		if s.Fallback {
			continue
		}
		if s.State == StateSuccess || s.State == StatePartial {
			return true
		}
	}
	return false
}

// AllFailed reports whether every attempted real adapter failed.
func (r *Report) AllFailed() bool {
	attempted := 0
	for _, s := range r.Sources {
		if s.Fallback || s.State == StateSkipped {
			continue
		}
		attempted++
		if s.State != StateFailed {
			return false
		}
	}
	return attempted > 0
}

// Log writes the summary and one line per source.
func (r *Report) Log(log *zap.Logger) {
	if log == nil {
		return
	}
	log = log.With(zap.String(logger.FieldRunID, r.ID))

	for _, s := range r.Sources {
		fields := append(logger.SourceFields(s.Name, s.Tier),
			zap.String("state", string(s.State)),
			zap.Int("records", s.Records),
			zap.Int("calls", s.Calls),
			zap.Duration("elapsed", s.Elapsed),
		)
		if s.Error != "" {
			fields = append(fields, zap.String("error", s.Error))
		}
		log.Info("source summary", fields...)
	}

	log.Info("run summary",
		zap.Int("raw", r.Raw),
		zap.Int("normalized", r.Normalized),
		zap.Int("rejected_normalization", r.RejectedNormalization),
		zap.Int("deduplicated", r.Deduplicated),
		zap.Int("duplicates", r.Duplicates),
		zap.Int("scored", r.Scored),
		zap.Int("rejected_below_threshold", r.RejectedBelowThreshold),
		zap.Int("filtered", r.Filtered),
		zap.Int("saved", r.Saved),
		zap.Int("already_existing", r.Existing),
		zap.Bool("fallback_used", r.FallbackUsed),
		zap.Bool("dry_run", r.DryRun),
		zap.Duration("elapsed", r.Elapsed),
	)
}
