package remoteok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feed = `[
  {"last_updated": 1760000000, "legal": "API terms of service"},
  {"id": "101", "date": "2026-10-01T09:00:00+00:00", "company": "Acme", "position": "Junior Python Developer",
   "tags": ["python", "django"], "description": "Build APIs", "salary_min": 70000, "salary_max": 0, "url": ""},
  {"id": 102, "date": "2026-10-02T09:00:00+00:00", "company": "Globex", "position": "Frontend Engineer",
   "tags": ["react"], "description": "UI work", "location": "Europe", "url": "https://remoteok.com/remote-jobs/globex-102"}
]`

func server(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(feed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSkipsMetadataAndFiltersByTerm(t *testing.T) {
	var calls atomic.Int32
	srv := server(t, &calls)
	a := New(Config{Endpoint: srv.URL}, nil, nil)

	records, err := a.Fetch(context.Background(), "Python", "New York")
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Junior Python Developer", rec["title"])
	assert.Equal(t, "Remote", rec["location"])
	assert.Equal(t, "remote", rec["location_type"])
	assert.Equal(t, "https://remoteok.com/remote-jobs/101", rec["source_url"])
	assert.Equal(t, "101", rec["external_id"])
	assert.Equal(t, []string{"python", "django"}, rec["skills"])
	assert.Equal(t, 70000, rec["salary_min"])
	assert.NotContains(t, rec, "salary_max")
}

func TestFetchMatchesTagsAndNumericIDs(t *testing.T) {
	var calls atomic.Int32
	srv := server(t, &calls)
	a := New(Config{Endpoint: srv.URL}, nil, nil)

	records, err := a.Fetch(context.Background(), "react", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "102", records[0]["external_id"])
	assert.Equal(t, "Europe", records[0]["location"])
	assert.Equal(t, "https://remoteok.com/remote-jobs/globex-102", records[0]["source_url"])

	all, err := a.Fetch(context.Background(), "", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFeedIsCachedWithinTTL(t *testing.T) {
	var calls atomic.Int32
	srv := server(t, &calls)
	a := New(Config{Endpoint: srv.URL, CacheTTL: time.Minute}, nil, nil)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }

	_, err := a.Fetch(context.Background(), "python", "")
	require.NoError(t, err)
	_, err = a.Fetch(context.Background(), "react", "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = a.Fetch(context.Background(), "react", "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchFailsOnBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := New(Config{Endpoint: srv.URL}, nil, nil)
	_, err := a.Fetch(context.Background(), "go", "")
	require.Error(t, err)
}
