package sources

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RawRecord is an untyped posting as produced by an adapter. Only the normalizer reads it.
type RawRecord map[string]any

// Adapter fetches raw postings for one (term, location) combination.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, term, location string) ([]RawRecord, error)
}

// Tier groups adapters by how much they are trusted and in which order they run.
type Tier string

const (
	TierPriority         Tier = "priority"
	TierRemoteSpecialist Tier = "remote-specialist"
	TierNiche            Tier = "niche"
	TierGeneral          Tier = "general"
)

// Tiers lists tiers in run order.
var Tiers = []Tier{TierPriority, TierRemoteSpecialist, TierNiche, TierGeneral}

// Rank returns the run position of the tier. Unknown tiers run last.
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return len(Tiers)
}

// DefaultMaxCombinations is the per-tier cap on (term x location) calls.
func (t Tier) DefaultMaxCombinations() int {
	switch t {
	case TierPriority:
		return 32
	case TierRemoteSpecialist:
		return 8
	default:
		return 4
	}
}

func ParseTier(s string) (Tier, error) {
	tier := Tier(strings.ToLower(strings.TrimSpace(s)))
	if tier == "" {
		return TierGeneral, nil
	}
	if tier.Rank() == len(Tiers) {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return tier, nil
}

// Selection decides which registry entries take part in a run.
type Selection string

const (
	SelectAll      Selection = "all"
	SelectPriority Selection = "priority"
	SelectCustom   Selection = "custom"
)

var (
	ErrUnknownSelection = errors.New("unknown source selection")
	ErrUnknownSource    = errors.New("unknown source")
	ErrDuplicateSource  = errors.New("duplicate source")
)

// Entry is an adapter plus its back-off budget.
type Entry struct {
	Adapter         Adapter
	Tier            Tier
	Delay           time.Duration
	MaxCombinations int
	// LocationAgnostic adapters are called once per term with an empty location.
	LocationAgnostic bool
	// Fallback marks the adapter that runs only when real sources returned too little.
	Fallback bool
}

func (e Entry) Name() string {
	if e.Adapter == nil {
		return ""
	}
	return e.Adapter.Name()
}

// Budget returns MaxCombinations or the tier default.
func (e Entry) Budget() int {
	if e.MaxCombinations > 0 {
		return e.MaxCombinations
	}
	return e.Tier.DefaultMaxCombinations()
}

// Registry keeps adapters in registration order.
type Registry struct {
	entries []Entry
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(e Entry) error {
	if e.Adapter == nil {
		return errors.New("adapter is required")
	}
	if e.Tier == "" {
		e.Tier = TierGeneral
	}
	for _, existing := range r.entries {
		if existing.Name() == e.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateSource, e.Name())
		}
	}
	if e.Fallback && r.Fallback() != nil {
		return fmt.Errorf("fallback already registered: %s", r.Fallback().Name())
	}
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns every entry, the fallback included.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Fallback returns the fallback entry or nil.
func (r *Registry) Fallback() *Entry {
	for i := range r.entries {
		if r.entries[i].Fallback {
			e := r.entries[i]
			return &e
		}
	}
	return nil
}

// Select returns the real (non-fallback) entries taking part in a run, in registry order.
// Names are required for SelectCustom and ignored otherwise.
func (r *Registry) Select(selection Selection, names []string) ([]Entry, error) {
	var out []Entry
	switch selection {
	case SelectAll, "":
		for _, e := range r.entries {
			if !e.Fallback {
				out = append(out, e)
			}
		}
	case SelectPriority:
		for _, e := range r.entries {
			if !e.Fallback && e.Tier == TierPriority {
				out = append(out, e)
			}
		}
	case SelectCustom:
		wanted := make(map[string]bool, len(names))
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			found := false
			for _, e := range r.entries {
				if e.Name() == name && !e.Fallback {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
			}
			wanted[name] = true
		}
		for _, e := range r.entries {
			if wanted[e.Name()] {
				out = append(out, e)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSelection, selection)
	}
	return out, nil
}

// Order returns the registry position of the named adapter, or -1.
func (r *Registry) Order(name string) int {
	for i, e := range r.entries {
		if e.Name() == name {
			return i
		}
	}
	return -1
}
