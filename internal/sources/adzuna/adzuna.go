package adzuna

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/sources"
)

const (
	DefaultName     = "adzuna"
	DefaultBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	DefaultCountry  = "us"
	defaultPageSize = 50
	defaultMaxPages = 3
)

// ErrMissingCredentials is returned by New when the app id or key is empty.
var ErrMissingCredentials = errors.New("adzuna app id and app key are required")

type Config struct {
	Name     string
	AppID    string
	AppKey   string
	Country  string
	BaseURL  string
	PageSize int
	MaxPages int
}

// Adapter reads the Adzuna search API, one paginated query per (term, location).
type Adapter struct {
	cfg    Config
	client *sources.HTTPClient
	logger *zap.Logger
}

type response struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

type result struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Created     string  `json:"created"`
	RedirectURL string  `json:"redirect_url"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Contract    string  `json:"contract_time"`
	Type        string  `json:"contract_type"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

func New(cfg Config, client *sources.HTTPClient, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.AppID) == "" || strings.TrimSpace(cfg.AppKey) == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if client == nil {
		client = sources.NewHTTPClient(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, client: client, logger: logger}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Fetch walks result pages until a short page or the page cap. Records collected before a failing
// page are returned together with the error.
func (a *Adapter) Fetch(ctx context.Context, term, location string) ([]sources.RawRecord, error) {
	var records []sources.RawRecord

	for page := 1; page <= a.cfg.MaxPages; page++ {
		batch, err := a.fetchPage(ctx, term, location, page)
		if err != nil {
			return records, fmt.Errorf("page %d: %w", page, err)
		}
		records = append(records, batch...)

		if len(batch) < a.cfg.PageSize {
			break
		}
		a.logger.Debug("additional request needed", zap.Int("next_page", page+1))
	}

	return records, nil
}

func (a *Adapter) fetchPage(ctx context.Context, term, location string, page int) ([]sources.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", strings.TrimRight(a.cfg.BaseURL, "/"), a.cfg.Country, page)

	q := url.Values{}
	q.Set("app_id", a.cfg.AppID)
	q.Set("app_key", a.cfg.AppKey)
	q.Set("results_per_page", strconv.Itoa(a.cfg.PageSize))
	q.Set("what", term)
	if location != "" && !strings.EqualFold(location, "remote") {
		q.Set("where", location)
	}
	q.Set("sort_by", "date")

	var resp response
	if err := a.client.GetJSON(ctx, endpoint, q, &resp); err != nil {
		return nil, err
	}

	records := make([]sources.RawRecord, 0, len(resp.Results))
	for _, r := range resp.Results {
		rec := sources.RawRecord{
			"title":       r.Title,
			"company":     r.Company.DisplayName,
			"description": r.Description,
			"location":    r.Location.DisplayName,
			"source_url":  r.RedirectURL,
			"external_id": r.ID,
			"posted_date": r.Created,
		}
		if r.SalaryMin > 0 {
			rec["salary_min"] = r.SalaryMin
		}
		if r.SalaryMax > 0 {
			rec["salary_max"] = r.SalaryMax
		}
		if employment := employmentType(r.Contract, r.Type); employment != "" {
			rec["employment_type"] = employment
		}
		if strings.EqualFold(location, "remote") {
			rec["location_type"] = "remote"
		}
		records = append(records, rec)
	}
	return records, nil
}

func employmentType(contractTime, contractType string) string {
	if contractType == "contract" {
		return "contract"
	}
	return contractTime
}
