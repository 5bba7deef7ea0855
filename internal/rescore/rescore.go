// Package rescore recomputes the scores of stored postings after the profile changed.
package rescore

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/profile"
	"github.com/spigell/job-radar/internal/scoring"
)

// Store is the part of storage rescoring needs.
type Store interface {
	ActivePostings(ctx context.Context) ([]*jobs.Posting, error)
	SaveScore(ctx context.Context, sourceURL string, score *jobs.Score) error
}

// Summary counts the outcome of one rescoring pass.
type Summary struct {
	Total       int           `json:"total"`
	Rescored    int           `json:"rescored"`
	Failed      int           `json:"failed"`
	Recommended int           `json:"recommended"`
	Elapsed     time.Duration `json:"elapsed"`
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, logger: log}
}

// Rescore scores every active posting against p and writes the new scores. A failed write is
// counted and logged; the pass goes on.
func (s *Service) Rescore(ctx context.Context, p *profile.Profile) (Summary, error) {
	started := time.Now()
	var summary Summary

	if p == nil {
		return summary, fmt.Errorf("%w: profile is nil", profile.ErrInvalid)
	}
	prepared := *p
	if err := prepared.Prepare(); err != nil {
		return summary, err
	}

	postings, err := s.store.ActivePostings(ctx)
	if err != nil {
		return summary, fmt.Errorf("loading active postings: %w", err)
	}
	summary.Total = len(postings)

	engine := scoring.New(&prepared, s.logger)
	for _, posting := range postings {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(started)
			return summary, err
		}

		score := engine.Score(posting)
		if err := s.store.SaveScore(ctx, posting.SourceURL, score); err != nil {
			summary.Failed++
			s.logger.Warn("saving score failed", append(logger.PostingFields(posting), zap.Error(err))...)
			continue
		}
		summary.Rescored++
		if score.Recommended {
			summary.Recommended++
		}
	}

	summary.Elapsed = time.Since(started)
	s.logger.Info("rescoring finished",
		zap.String("profile", prepared.ID),
		zap.Int("total", summary.Total),
		zap.Int("rescored", summary.Rescored),
		zap.Int("failed", summary.Failed),
		zap.Int("recommended", summary.Recommended),
		zap.Duration("elapsed", summary.Elapsed),
	)
	return summary, nil
}
