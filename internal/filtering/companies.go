package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
)

type companiesFilter struct {
	companies []string
	logger    *zap.Logger
}

// NewExcludedCompanies creates a filter that removes postings by companies configured in the config.
// Names are compared case-insensitively.
func NewExcludedCompanies(companies []string, logger *zap.Logger) Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &companiesFilter{companies: companies, logger: logger}
}

func (f *companiesFilter) Name() string { return "companies" }

func (f *companiesFilter) Disable(string) {}

func (f *companiesFilter) IsEnabled() bool { return true }

func (f *companiesFilter) Validate() error { return nil }

func (f *companiesFilter) Apply(_ context.Context, v *jobs.Postings) (*jobs.Postings, Step, error) {
	initial := v.Len()
	if len(f.companies) == 0 {
		return v, Step{Initial: initial, Dropped: 0, Left: v.Len()}, nil
	}

	set := make(map[string]struct{}, len(f.companies))
	for _, company := range f.companies {
		set[strings.ToLower(strings.TrimSpace(company))] = struct{}{}
	}

	excluded := v.RemoveFunc(func(s *jobs.Scored) bool {
		_, ok := set[strings.ToLower(strings.TrimSpace(s.Posting.GetStringField(jobs.PostingCompanyField)))]
		return ok
	})
	if len(excluded) > 0 {
		f.logger.Info("excluding postings by companies",
			zap.Strings("excluded_companies", f.companies),
			zap.Strings("excluded_postings", excluded),
			zap.Int("postings_left", v.Len()),
		)
	}

	return v, Step{Initial: initial, Dropped: len(excluded), Left: v.Len()}, nil
}

func (f *companiesFilter) Status() Status {
	details := map[string]string{}
	if len(f.companies) > 0 {
		details["companies"] = strings.Join(f.companies, ",")
	}
	return Status{Name: f.Name(), Enabled: true, Details: details}
}
