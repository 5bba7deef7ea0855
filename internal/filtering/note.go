package filtering

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/ai"
	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
)

// NoteName is the name of the application note step.
const NoteName = "ai_note"

type noteFilter struct {
	enabled bool
	reason  string
	drafter ai.Drafter
	profile *profile.Profile
	limit   int
	logger  *zap.Logger
}

// NewNote creates a step that drafts application notes for recommended postings. It never drops
// postings; a failed draft leaves the posting without a note. A positive limit caps the number of drafts.
func NewNote(drafter ai.Drafter, p *profile.Profile, limit int, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &noteFilter{enabled: drafter != nil, drafter: drafter, profile: p, limit: limit, logger: logger}
	if drafter == nil {
		f.reason = "ai is not configured"
	}
	return f
}

func (f *noteFilter) Name() string { return NoteName }

func (f *noteFilter) Disable(reason string) {
	f.enabled = false
	f.reason = reason
}

func (f *noteFilter) IsEnabled() bool { return f.enabled }

func (f *noteFilter) Validate() error {
	if f.drafter == nil {
		return errors.New("drafter is required when the note step is enabled")
	}
	if f.profile == nil {
		return errors.New("profile is required when the note step is enabled")
	}
	return nil
}

func (f *noteFilter) Apply(ctx context.Context, v *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := v.Len()
	drafted := 0

	for _, item := range v.Items {
		if item.Score == nil || !item.Score.Recommended {
			continue
		}
		if f.limit > 0 && drafted >= f.limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return v, Step{}, err
		}

		note, err := f.drafter.Draft(ctx, f.profile, item)
		if err != nil {
			f.logger.Warn("drafting application note failed", append(logger.PostingFields(item.Posting), zap.Error(err))...)
			continue
		}
		item.Note = note.Message
		drafted++
	}

	f.logger.Info("application notes drafted", zap.Int("drafted", drafted), zap.Int("postings", initial))

	return v, Step{Initial: initial, Dropped: 0, Left: v.Len()}, nil
}

func (f *noteFilter) Status() Status {
	details := map[string]string{}
	if f.limit > 0 {
		details["limit"] = strconv.Itoa(f.limit)
	}
	return Status{Name: f.Name(), Enabled: f.enabled, Reason: f.reason, Details: details}
}
