package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spigell/job-radar/internal/jobs"
)

// Memory keeps postings in process. It backs dry runs without a database and tests.
type Memory struct {
	mu       sync.RWMutex
	order    []string
	postings map[string]*jobs.Posting
	scores   map[string]*jobs.Score
}

func NewMemory() *Memory {
	return &Memory{
		postings: make(map[string]*jobs.Posting),
		scores:   make(map[string]*jobs.Score),
	}
}

func (m *Memory) SavePostings(ctx context.Context, items []*jobs.Scored) (SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res SaveResult
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if item == nil || item.Posting == nil {
			continue
		}
		url := item.Posting.SourceURL
		if _, ok := m.postings[url]; ok {
			res.Existing++
			continue
		}

		p := *item.Posting
		m.postings[url] = &p
		m.order = append(m.order, url)
		if item.Score != nil {
			s := *item.Score
			m.scores[url] = &s
		}
		res.Saved++
	}
	return res, nil
}

func (m *Memory) ActivePostings(ctx context.Context) ([]*jobs.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*jobs.Posting
	for _, url := range m.order {
		if p := m.postings[url]; p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

// SaveScore replaces the score of a stored posting. The last write wins.
func (m *Memory) SaveScore(ctx context.Context, sourceURL string, score *jobs.Score) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.postings[sourceURL]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}
	s := *score
	m.scores[sourceURL] = &s
	return nil
}

// DeactivateStale marks postings scraped before the cutoff inactive and keeps their scores.
func (m *Memory) DeactivateStale(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.postings {
		if p.Active && p.ScrapedAt.Before(before) {
			p.Active = false
			n++
		}
	}
	return n, nil
}

// Lookup returns copies of the stored posting and score.
func (m *Memory) Lookup(sourceURL string) (*jobs.Posting, *jobs.Score, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.postings[sourceURL]
	if !ok {
		return nil, nil, false
	}
	cp := *p
	var score *jobs.Score
	if s, ok := m.scores[sourceURL]; ok {
		sc := *s
		score = &sc
	}
	return &cp, score, true
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.postings)
}
