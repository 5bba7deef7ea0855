package adzuna

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-radar/internal/sources"
)

func page(n, offset int) map[string]any {
	results := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		id := offset + i
		results = append(results, map[string]any{
			"id":            fmt.Sprint(id),
			"title":         fmt.Sprintf("Python Developer %d", id),
			"description":   "Django and PostgreSQL",
			"created":       "2026-10-01T10:00:00Z",
			"redirect_url":  fmt.Sprintf("https://www.adzuna.com/details/%d", id),
			"salary_min":    80000,
			"salary_max":    0,
			"contract_time": "full_time",
			"company":       map[string]any{"display_name": "Acme"},
			"location":      map[string]any{"display_name": "New York"},
		})
	}
	return map[string]any{"results": results, "count": 1000}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{AppID: "id"}, nil, nil)
	require.ErrorIs(t, err, ErrMissingCredentials)

	a, err := New(Config{AppID: "id", AppKey: "key"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultName, a.Name())
}

func TestFetchPaginatesUntilShortPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "id", r.URL.Query().Get("app_id"))
		assert.Equal(t, "key", r.URL.Query().Get("app_key"))
		assert.Equal(t, "python developer", r.URL.Query().Get("what"))
		assert.Equal(t, "New York", r.URL.Query().Get("where"))
		assert.Equal(t, "date", r.URL.Query().Get("sort_by"))

		var body map[string]any
		switch {
		case strings.HasSuffix(r.URL.Path, "/gb/search/1"):
			body = page(2, 0)
		case strings.HasSuffix(r.URL.Path, "/gb/search/2"):
			body = page(1, 2)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	a, err := New(Config{AppID: "id", AppKey: "key", Country: "gb", BaseURL: srv.URL, PageSize: 2}, nil, nil)
	require.NoError(t, err)

	records, err := a.Fetch(context.Background(), "python developer", "New York")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int32(2), calls.Load())

	first := records[0]
	assert.Equal(t, "Python Developer 0", first["title"])
	assert.Equal(t, "Acme", first["company"])
	assert.Equal(t, "https://www.adzuna.com/details/0", first["source_url"])
	assert.Equal(t, float64(80000), first["salary_min"])
	assert.NotContains(t, first, "salary_max")
	assert.Equal(t, "full_time", first["employment_type"])
}

func TestFetchStopsAtPageCap(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(page(1, int(calls.Load())))
	}))
	defer srv.Close()

	a, err := New(Config{AppID: "id", AppKey: "key", BaseURL: srv.URL, PageSize: 1, MaxPages: 3}, nil, nil)
	require.NoError(t, err)

	records, err := a.Fetch(context.Background(), "go", "Remote")
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "remote", records[0]["location_type"])
}

func TestFetchReturnsPartialRecordsOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/search/2") {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(page(1, 0))
	}))
	defer srv.Close()

	a, err := New(Config{AppID: "id", AppKey: "key", BaseURL: srv.URL, PageSize: 1}, nil, nil)
	require.NoError(t, err)

	records, err := a.Fetch(context.Background(), "go", "")
	require.ErrorIs(t, err, sources.ErrBadStatus)
	assert.Len(t, records, 1)
}

func TestEmploymentType(t *testing.T) {
	assert.Equal(t, "contract", employmentType("full_time", "contract"))
	assert.Equal(t, "part_time", employmentType("part_time", "permanent"))
	assert.Equal(t, "", employmentType("", ""))
}
