package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indeedFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Jobs</title>
    <item>
      <title>Python Developer - Acme Corp - New York, NY</title>
      <link>https://www.indeed.com/viewjob?jk=abc</link>
      <description>&lt;p&gt;Django &amp;amp; REST&lt;/p&gt;</description>
      <pubDate>Wed, 15 Oct 2026 10:00:00 GMT</pubDate>
      <guid isPermaLink="false">abc</guid>
    </item>
    <item>
      <title>Data Analyst - Globex</title>
      <link>https://www.indeed.com/viewjob?jk=def</link>
      <guid>https://www.indeed.com/viewjob?jk=def</guid>
    </item>
  </channel>
</rss>`

const staticFeed = `<?xml version="1.0" encoding="ISO-8859-1"?>
<rss version="2.0">
  <channel>
    <item>
      <title>Initech: Junior Go Engineer</title>
      <link>https://weworkremotely.com/jobs/1</link>
      <region>Anywhere in the World</region>
      <category>Go</category>
      <category>Postgres</category>
    </item>
    <item>
      <title>Initech: Account Manager</title>
      <link>https://weworkremotely.com/jobs/2</link>
    </item>
  </channel>
</rss>`

func TestFetchTemplatedFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "python developer", r.URL.Query().Get("q"))
		assert.Equal(t, "New York", r.URL.Query().Get("l"))
		assert.Equal(t, "date", r.URL.Query().Get("sort"))
		assert.Equal(t, "7", r.URL.Query().Get("fromage"))
		_, _ = w.Write([]byte(indeedFeed))
	}))
	defer srv.Close()

	a, err := New(Config{
		Name:   "indeed",
		URL:    srv.URL + "/rss?q={term}&l={location}",
		Params: map[string]string{"sort": "date", "fromage": "7"},
	}, nil, nil)
	require.NoError(t, err)
	assert.False(t, a.Static())
	assert.Equal(t, "indeed", a.Name())

	records, err := a.Fetch(context.Background(), "python developer", "New York")
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Python Developer", first["title"])
	assert.Equal(t, "Acme Corp", first["company"])
	assert.Equal(t, "New York, NY", first["location"])
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=abc", first["source_url"])
	assert.Equal(t, "abc", first["external_id"])
	assert.Equal(t, "Wed, 15 Oct 2026 10:00:00 GMT", first["posted_date"])
	assert.Equal(t, "<p>Django &amp; REST</p>", first["description"])

	second := records[1]
	assert.Equal(t, "Globex", second["company"])
	assert.NotContains(t, second, "external_id")
}

func TestFetchStaticFeedFiltersLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(staticFeed))
	}))
	defer srv.Close()

	a, err := New(Config{Name: "wwr", URL: srv.URL, Location: "Remote"}, nil, nil)
	require.NoError(t, err)
	assert.True(t, a.Static())

	records, err := a.Fetch(context.Background(), "go", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Junior Go Engineer", records[0]["title"])
	assert.Equal(t, "Initech", records[0]["company"])
	assert.Equal(t, "Anywhere in the World", records[0]["location"])
	assert.Equal(t, []string{"Go", "Postgres"}, records[0]["skills"])
}

func TestFetchRejectsBrokenXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<rss><channel><item>"))
	}))
	defer srv.Close()

	a, err := New(Config{URL: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = a.Fetch(context.Background(), "", "")
	require.Error(t, err)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	require.ErrorIs(t, err, ErrNoURL)
}

func TestSplitTitle(t *testing.T) {
	tests := []struct {
		raw, layout             string
		title, company, location string
	}{
		{"Dev - Acme - Remote", LayoutAuto, "Dev", "Acme", "Remote"},
		{"Acme: Dev", LayoutAuto, "Dev", "Acme", ""},
		{"Backend Dev at Acme", LayoutAuto, "Backend Dev", "Acme", ""},
		{"Dev at Acme - Remote", LayoutAt, "Dev", "Acme - Remote", ""},
		{"Dev - Acme", LayoutPlain, "Dev - Acme", "", ""},
		{"Just a title", LayoutAuto, "Just a title", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			title, company, location := splitTitle(tt.raw, tt.layout)
			assert.Equal(t, tt.title, title)
			assert.Equal(t, tt.company, company)
			assert.Equal(t, tt.location, location)
		})
	}
}
