package coordinator

import (
	"errors"
	"time"

	"github.com/spigell/job-radar/internal/sources"
)

const (
	DefaultMaxJobs       = 100
	DefaultFallbackFloor = 5
	DefaultCallTimeout   = 30 * time.Second
	DefaultRunBudget     = 10 * time.Minute
)

// Options tune a single run. Zero values take the defaults above.
type Options struct {
	MaxJobs   int
	Selection sources.Selection
	// Sources names the adapters of a custom selection.
	Sources []string
	// Terms and Locations override the ones derived from the profile.
	Terms     []string
	Locations []string
	// MinScore replaces the profile min score for this run when set.
	MinScore *float64
	DryRun   bool

	FallbackFloor int
	CallTimeout   time.Duration
	RunBudget     time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxJobs == 0 {
		o.MaxJobs = DefaultMaxJobs
	}
	if o.Selection == "" {
		o.Selection = sources.SelectAll
	}
	if o.FallbackFloor == 0 {
		o.FallbackFloor = DefaultFallbackFloor
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.RunBudget <= 0 {
		o.RunBudget = DefaultRunBudget
	}
	return o
}

func (o Options) validate() error {
	if o.MaxJobs < 0 {
		return errors.New("max jobs must be positive")
	}
	if o.FallbackFloor < 0 {
		return errors.New("fallback floor must not be negative")
	}
	if o.MinScore != nil && (*o.MinScore < 0 || *o.MinScore > 100) {
		return errors.New("min score must be within [0, 100]")
	}
	return nil
}

// shortCircuits reports whether later tiers are skipped once enough raw records were collected.
// An explicitly requested selection always runs every selected tier.
func (o Options) shortCircuits() bool {
	return o.Selection == sources.SelectAll
}
