package storage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/jobs"
	"github.com/spigell/job-radar/internal/logger"
)

//go:embed schema.sql
var schema string

const insertPosting = `
INSERT INTO postings (
    source_url, title, company, company_category, description, location, location_type,
    employment_type, experience_level, salary_min, salary_max, skills, source, external_id,
    posted_at, scraped_at, active, entry_level_friendly, discovery
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (source_url) DO NOTHING
RETURNING id`

const upsertScore = `
INSERT INTO scores (
    posting_id, skills_score, experience_score, location_score, salary_score, company_score,
    total_score, matching_skills, missing_skills, meets_minimum, recommended, scored_at
)
SELECT id, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12 FROM postings WHERE source_url = $1
ON CONFLICT (posting_id) DO UPDATE SET
    skills_score = EXCLUDED.skills_score,
    experience_score = EXCLUDED.experience_score,
    location_score = EXCLUDED.location_score,
    salary_score = EXCLUDED.salary_score,
    company_score = EXCLUDED.company_score,
    total_score = EXCLUDED.total_score,
    matching_skills = EXCLUDED.matching_skills,
    missing_skills = EXCLUDED.missing_skills,
    meets_minimum = EXCLUDED.meets_minimum,
    recommended = EXCLUDED.recommended,
    scored_at = EXCLUDED.scored_at`

const selectActive = `
SELECT source_url, title, company, company_category, description, location, location_type,
       employment_type, experience_level, salary_min, salary_max, skills, source, external_id,
       posted_at, scraped_at, active, entry_level_friendly, discovery
FROM postings
WHERE active
ORDER BY id`

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

// Postgres stores postings and scores in PostgreSQL.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgres(pool *pgxpool.Pool, log *zap.Logger) *Postgres {
	if log == nil {
		log = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: log}
}

// Migrate creates the tables when they do not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// SavePostings inserts new postings with their scores. A failing row is logged and skipped; the
// errors of all failing rows are returned joined.
func (s *Postgres) SavePostings(ctx context.Context, items []*jobs.Scored) (SaveResult, error) {
	var (
		res  SaveResult
		errs []error
	)

	for _, item := range items {
		if item == nil || item.Posting == nil {
			continue
		}
		saved, err := s.savePosting(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.logger.Warn("saving posting failed", append(logger.PostingFields(item.Posting), zap.Error(err))...)
			errs = append(errs, err)
			continue
		}
		if saved {
			res.Saved++
		} else {
			res.Existing++
		}
	}

	return res, errors.Join(errs...)
}

func (s *Postgres) savePosting(ctx context.Context, item *jobs.Scored) (bool, error) {
	p := item.Posting
	discovery, err := json.Marshal(p.Discovery)
	if err != nil {
		return false, fmt.Errorf("encoding discovery: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, insertPosting,
		p.SourceURL, p.Title, p.Company, p.CompanyCategory, p.Description, p.Location,
		string(p.LocationType), string(p.EmploymentType), string(p.ExperienceLevel),
		p.SalaryMin, p.SalaryMax, nonNil(p.Skills), p.Source, p.ExternalID,
		p.PostedAt, p.ScrapedAt, p.Active, p.EntryLevelFriendly, discovery,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert posting %s: %w", p.SourceURL, err)
	}

	if item.Score != nil {
		if err := execScore(ctx, tx, p.SourceURL, item.Score); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// SaveScore upserts the score of a stored posting. The last write wins.
func (s *Postgres) SaveScore(ctx context.Context, sourceURL string, score *jobs.Score) error {
	tag, err := s.pool.Exec(ctx, upsertScore, scoreArgs(sourceURL, score)...)
	if err != nil {
		return fmt.Errorf("upsert score %s: %w", sourceURL, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sourceURL)
	}
	return nil
}

func execScore(ctx context.Context, tx pgx.Tx, sourceURL string, score *jobs.Score) error {
	if _, err := tx.Exec(ctx, upsertScore, scoreArgs(sourceURL, score)...); err != nil {
		return fmt.Errorf("upsert score %s: %w", sourceURL, err)
	}
	return nil
}

func scoreArgs(sourceURL string, score *jobs.Score) []any {
	return []any{
		sourceURL, score.Skills, score.Experience, score.Location, score.Salary, score.Company,
		score.Total, nonNil(score.MatchingSkills), nonNil(score.MissingSkills),
		score.MeetsMinimum, score.Recommended, score.ScoredAt,
	}
}

func (s *Postgres) ActivePostings(ctx context.Context) ([]*jobs.Posting, error) {
	rows, err := s.pool.Query(ctx, selectActive)
	if err != nil {
		return nil, fmt.Errorf("query postings: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Posting
	for rows.Next() {
		var (
			p                                        jobs.Posting
			locationType, employmentType, experience string
			discovery                                []byte
		)
		if err := rows.Scan(
			&p.SourceURL, &p.Title, &p.Company, &p.CompanyCategory, &p.Description, &p.Location,
			&locationType, &employmentType, &experience, &p.SalaryMin, &p.SalaryMax, &p.Skills,
			&p.Source, &p.ExternalID, &p.PostedAt, &p.ScrapedAt, &p.Active, &p.EntryLevelFriendly,
			&discovery,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		p.LocationType = jobs.LocationType(locationType)
		p.EmploymentType = jobs.EmploymentType(employmentType)
		p.ExperienceLevel = jobs.ExperienceLevel(experience)
		if len(discovery) > 0 {
			if err := json.Unmarshal(discovery, &p.Discovery); err != nil {
				s.logger.Debug("undecodable discovery metadata", zap.String(logger.FieldURL, p.SourceURL), zap.Error(err))
			}
		}
		out = append(out, &p)
	}

	return out, rows.Err()
}

// DeactivateStale marks postings scraped before the cutoff inactive. Scores are kept.
func (s *Postgres) DeactivateStale(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE postings SET active = FALSE WHERE active AND scraped_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("deactivate stale postings: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
