package store

import (
	"context"
	"time"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
)

const sourceColumns = `id, profile_id, url, source_type, discovered_by_agent, credibility_score, status,
	last_scraped_at, next_scrape_due_at, last_error, created_at, updated_at`

type sourceStore struct {
	q db.Querier
}

func newSourceStore(q db.Querier) SourceStore {
	return &sourceStore{q: q}
}

func (s *sourceStore) GetByID(ctx context.Context, id int64) (*model.DataSource, error) {
	row := s.q.QueryRow(ctx, `SELECT `+sourceColumns+` FROM data_sources WHERE id = $1`, id)
	return scanSource(row)
}

func (s *sourceStore) ListByProfile(ctx context.Context, profileID int64) ([]model.DataSource, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+sourceColumns+` FROM data_sources
		WHERE profile_id = $1 ORDER BY created_at`, profileID)
	if err != nil {
		return nil, err
	}
	return collectSources(rows)
}

func (s *sourceStore) ListDue(ctx context.Context, profileID int64, now time.Time) ([]model.DataSource, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+sourceColumns+` FROM data_sources
		WHERE profile_id = $1
		  AND status = 'active'
		  AND (next_scrape_due_at IS NULL OR next_scrape_due_at <= $2)
		ORDER BY next_scrape_due_at ASC NULLS FIRST, id`, profileID, now)
	if err != nil {
		return nil, err
	}
	return collectSources(rows)
}

func (s *sourceStore) Create(ctx context.Context, source *model.DataSource) error {
	row := s.q.QueryRow(ctx, `
		INSERT INTO data_sources
			(id, profile_id, url, source_type, discovered_by_agent, credibility_score, status, next_scrape_due_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+sourceColumns,
		source.ID, source.ProfileID, source.URL, string(source.SourceType), source.DiscoveredByAgent,
		source.CredibilityScore, string(source.Status), source.NextScrapeDueAt,
	)
	saved, err := scanSource(row)
	if err != nil {
		return err
	}
	*source = *saved
	return nil
}

func (s *sourceStore) Update(ctx context.Context, source *model.DataSource) error {
	row := s.q.QueryRow(ctx, `
		UPDATE data_sources
		SET url = $2, source_type = $3, credibility_score = $4, status = $5,
		    next_scrape_due_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+sourceColumns,
		source.ID, source.URL, string(source.SourceType), source.CredibilityScore,
		string(source.Status), source.NextScrapeDueAt,
	)
	saved, err := scanSource(row)
	if err != nil {
		return err
	}
	*source = *saved
	return nil
}

func (s *sourceStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM data_sources WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sourceStore) RecordAttempt(ctx context.Context, id int64, at, nextDue time.Time, errMsg *string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE data_sources
		SET last_scraped_at = $2, next_scrape_due_at = $3, last_error = $4, updated_at = now()
		WHERE id = $1`, id, at, nextDue, errMsg)
	return err
}

func (s *sourceStore) MarkUnreachable(ctx context.Context, id int64, at, nextDue time.Time, errMsg string) error {
	_, err := s.q.Exec(ctx, `
		UPDATE data_sources
		SET status = 'unreachable', last_scraped_at = $2, next_scrape_due_at = $3,
		    last_error = $4, updated_at = now()
		WHERE id = $1`, id, at, nextDue, errMsg)
	return err
}

func collectSources(rows pgx.Rows) ([]model.DataSource, error) {
	defer rows.Close()

	var sources []model.DataSource
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

func scanSource(row pgx.Row) (*model.DataSource, error) {
	var (
		src                model.DataSource
		sourceType, status string
	)
	err := row.Scan(&src.ID, &src.ProfileID, &src.URL, &sourceType, &src.DiscoveredByAgent,
		&src.CredibilityScore, &status, &src.LastScrapedAt, &src.NextScrapeDueAt, &src.LastError,
		&src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	src.SourceType = model.SourceType(sourceType)
	src.Status = model.SourceStatus(status)
	return &src, nil
}
