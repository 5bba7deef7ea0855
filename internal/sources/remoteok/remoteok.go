package remoteok

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/sources"
)

const (
	DefaultName     = "remoteok"
	DefaultEndpoint = "https://remoteok.com/api"
	jobURLPrefix    = "https://remoteok.com/remote-jobs/"
	defaultCacheTTL = 5 * time.Minute
)

type Config struct {
	Name     string
	Endpoint string
	// CacheTTL bounds how long one feed download serves subsequent terms.
	CacheTTL time.Duration
}

// Adapter reads the RemoteOK feed. The feed is not searchable, so terms are matched locally
// and the location argument is ignored.
type Adapter struct {
	cfg    Config
	client *sources.HTTPClient
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	feed    []job
	fetched time.Time
}

type job struct {
	ID          flexibleID `json:"id"`
	Slug        string     `json:"slug"`
	Date        string     `json:"date"`
	Company     string     `json:"company"`
	Position    string     `json:"position"`
	Tags        []string   `json:"tags"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	SalaryMin   int        `json:"salary_min"`
	SalaryMax   int        `json:"salary_max"`
	URL         string     `json:"url"`
}

// flexibleID accepts ids encoded as either JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	*f = flexibleID(strings.Trim(string(data), `"`))
	if *f == "null" {
		*f = ""
	}
	return nil
}

func New(cfg Config, client *sources.HTTPClient, logger *zap.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = sources.NewHTTPClient(logger)
	}
	return &Adapter{cfg: cfg, client: client, logger: logger, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, term, _ string) ([]sources.RawRecord, error) {
	feed, err := a.load(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	var records []sources.RawRecord
	for _, j := range feed {
		if needle != "" && !j.matches(needle) {
			continue
		}
		records = append(records, j.record())
	}

	a.logger.Debug("feed filtered",
		zap.String("term", term),
		zap.Int("feed", len(feed)),
		zap.Int("matched", len(records)),
	)
	return records, nil
}

func (a *Adapter) load(ctx context.Context) ([]job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.feed != nil && a.cfg.CacheTTL > 0 && a.now().Sub(a.fetched) < a.cfg.CacheTTL {
		return a.feed, nil
	}

	var raw []json.RawMessage
	if err := a.client.GetJSON(ctx, a.cfg.Endpoint, nil, &raw); err != nil {
		return nil, err
	}

	feed := make([]job, 0, len(raw))
	for i, item := range raw {
		var j job
		if err := json.Unmarshal(item, &j); err != nil {
			a.logger.Debug("skipping undecodable feed item", zap.Int("index", i), zap.Error(err))
			continue
		}
		// The first element carries the legal notice and has no position.
		if j.Position == "" {
			continue
		}
		feed = append(feed, j)
	}

	a.feed = feed
	a.fetched = a.now()
	return feed, nil
}

func (j job) matches(needle string) bool {
	haystack := strings.ToLower(strings.Join([]string{
		j.Position, j.Description, j.Company, strings.Join(j.Tags, " "),
	}, " "))
	return strings.Contains(haystack, needle)
}

func (j job) record() sources.RawRecord {
	location := j.Location
	if location == "" {
		location = "Remote"
	}

	rec := sources.RawRecord{
		"title":         j.Position,
		"company":       j.Company,
		"description":   j.Description,
		"location":      location,
		"location_type": "remote",
		"source_url":    j.sourceURL(),
		"external_id":   string(j.ID),
		"skills":        j.Tags,
	}
	if j.Date != "" {
		rec["posted_date"] = j.Date
	}
	if j.SalaryMin > 0 {
		rec["salary_min"] = j.SalaryMin
	}
	if j.SalaryMax > 0 {
		rec["salary_max"] = j.SalaryMax
	}
	return rec
}

func (j job) sourceURL() string {
	if j.URL != "" {
		return j.URL
	}
	if j.ID == "" {
		return ""
	}
	return fmt.Sprintf("%s%s", jobURLPrefix, j.ID)
}
