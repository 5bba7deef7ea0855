package rss

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/spigell/job-radar/internal/sources"
)

const (
	DefaultName = "rss"

	termPlaceholder     = "{term}"
	locationPlaceholder = "{location}"
)

// Title layouts describe how a feed packs company and location into the item title.
const (
	LayoutAuto  = "auto"
	LayoutDash  = "dash"  // "Title - Company - Location"
	LayoutColon = "colon" // "Company: Title"
	LayoutAt    = "at"    // "Title at Company"
	LayoutPlain = "plain"
)

var ErrNoURL = errors.New("rss feed url is required")

type Config struct {
	Name string
	// URL may carry {term} and {location} placeholders. A URL without placeholders is treated as
	// a static feed and terms are matched locally.
	URL string
	// Params are appended to the query string of every request.
	Params map[string]string
	Layout string
	// Location is used for items whose title carries none.
	Location string
}

type Adapter struct {
	cfg    Config
	client *sources.HTTPClient
	logger *zap.Logger
}

type document struct {
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	GUID        string   `xml:"guid"`
	Categories  []string `xml:"category"`
	Company     string   `xml:"company"`
	Region      string   `xml:"region"`
}

func New(cfg Config, client *sources.HTTPClient, logger *zap.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrNoURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("parsing feed url: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Layout == "" {
		cfg.Layout = LayoutAuto
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = sources.NewHTTPClient(logger)
	}
	return &Adapter{cfg: cfg, client: client, logger: logger}, nil
}

func (a *Adapter) Name() string { return a.cfg.Name }

// Static reports whether the feed ignores the search term and location.
func (a *Adapter) Static() bool {
	return !strings.Contains(a.cfg.URL, termPlaceholder) && !strings.Contains(a.cfg.URL, locationPlaceholder)
}

func (a *Adapter) Fetch(ctx context.Context, term, location string) ([]sources.RawRecord, error) {
	endpoint, q, err := a.endpoint(term, location)
	if err != nil {
		return nil, err
	}

	data, err := a.client.Get(ctx, endpoint, q, "application/rss+xml, application/xml, text/xml")
	if err != nil {
		return nil, err
	}

	var doc document
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding feed %s: %w", a.cfg.Name, err)
	}

	needle := ""
	if a.Static() {
		needle = strings.ToLower(strings.TrimSpace(term))
	}

	records := make([]sources.RawRecord, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		if needle != "" && !strings.Contains(strings.ToLower(it.Title+" "+it.Description+" "+strings.Join(it.Categories, " ")), needle) {
			continue
		}
		records = append(records, a.record(it))
	}
	return records, nil
}

func (a *Adapter) endpoint(term, location string) (string, url.Values, error) {
	raw := strings.ReplaceAll(a.cfg.URL, termPlaceholder, url.QueryEscape(term))
	raw = strings.ReplaceAll(raw, locationPlaceholder, url.QueryEscape(location))

	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parsing feed url: %w", err)
	}
	q := u.Query()
	for k, v := range a.cfg.Params {
		q.Set(k, v)
	}
	u.RawQuery = ""
	return u.String(), q, nil
}

func (a *Adapter) record(it item) sources.RawRecord {
	title, company, location := splitTitle(strings.TrimSpace(it.Title), a.cfg.Layout)
	if it.Company != "" {
		company = it.Company
	}
	if location == "" {
		location = it.Region
	}
	if location == "" {
		location = a.cfg.Location
	}

	rec := sources.RawRecord{
		"title":       title,
		"company":     company,
		"description": it.Description,
		"location":    location,
		"source_url":  strings.TrimSpace(it.Link),
	}
	if guid := strings.TrimSpace(it.GUID); guid != "" && guid != rec["source_url"] {
		rec["external_id"] = guid
	}
	if it.PubDate != "" {
		rec["posted_date"] = strings.TrimSpace(it.PubDate)
	}
	if len(it.Categories) > 0 {
		rec["skills"] = it.Categories
	}
	return rec
}

func splitTitle(raw, layout string) (title, company, location string) {
	switch layout {
	case LayoutPlain:
		return raw, "", ""
	case LayoutDash:
		return splitDash(raw)
	case LayoutColon:
		return splitColon(raw)
	case LayoutAt:
		return splitAt(raw)
	}

	switch {
	case strings.Contains(raw, " - "):
		return splitDash(raw)
	case strings.Contains(raw, ": "):
		return splitColon(raw)
	case strings.Contains(raw, " at "):
		return splitAt(raw)
	}
	return raw, "", ""
}

func splitDash(raw string) (string, string, string) {
	parts := strings.SplitN(raw, " - ", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 3:
		return parts[0], parts[1], parts[2]
	case 2:
		return parts[0], parts[1], ""
	}
	return raw, "", ""
}

func splitColon(raw string) (string, string, string) {
	company, title, ok := strings.Cut(raw, ": ")
	if !ok {
		return raw, "", ""
	}
	return strings.TrimSpace(title), strings.TrimSpace(company), ""
}

func splitAt(raw string) (string, string, string) {
	i := strings.LastIndex(raw, " at ")
	if i < 0 {
		return raw, "", ""
	}
	return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+len(" at "):]), ""
}
