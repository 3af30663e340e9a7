package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/model"
	"github.com/jackc/pgx/v5"
)

const contentColumns = `id, source_id, profile_id, content_url, content_hash, html_snapshot_url, screenshot_url,
	extracted_text_content, extracted_metadata, scrape_job_id, scraped_at, created_at`

type contentStore struct {
	q db.Querier
}

func newContentStore(q db.Querier) ContentStore {
	return &contentStore{q: q}
}

func (s *contentStore) Create(ctx context.Context, content *model.RawContent) error {
	metadata, err := json.Marshal(content.ExtractedMetadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if content.ExtractedMetadata == nil {
		metadata = []byte("{}")
	}

	err = s.q.QueryRow(ctx, `
		INSERT INTO raw_extracted_content
			(id, source_id, profile_id, content_url, content_hash, html_snapshot_url, screenshot_url,
			 extracted_text_content, extracted_metadata, scrape_job_id, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING created_at`,
		content.ID, content.SourceID, content.ProfileID, content.ContentURL, content.ContentHash,
		content.HTMLSnapshotURL, content.ScreenshotURL, content.ExtractedText, metadata,
		content.ScrapeJobID, content.ScrapedAt,
	).Scan(&content.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// DO NOTHING returns no row when the hash already exists.
		return ErrDuplicate
	}
	return mapErr(err)
}

func (s *contentStore) LookupHash(ctx context.Context, hash string) (HashStatus, error) {
	var st HashStatus
	err := s.q.QueryRow(ctx, `
		SELECT c.id, EXISTS (SELECT 1 FROM ai_processed_insights i WHERE i.raw_content_id = c.id)
		FROM raw_extracted_content c
		WHERE c.content_hash = $1`, hash,
	).Scan(&st.ContentID, &st.Enriched)
	if errors.Is(err, pgx.ErrNoRows) {
		return HashStatus{}, nil
	}
	if err != nil {
		return HashStatus{}, err
	}
	st.Exists = true
	return st, nil
}

func (s *contentStore) GetByID(ctx context.Context, id int64) (*model.RawContent, error) {
	var (
		c        model.RawContent
		metadata []byte
	)
	err := s.q.QueryRow(ctx, `SELECT `+contentColumns+` FROM raw_extracted_content WHERE id = $1`, id).Scan(
		&c.ID, &c.SourceID, &c.ProfileID, &c.ContentURL, &c.ContentHash, &c.HTMLSnapshotURL, &c.ScreenshotURL,
		&c.ExtractedText, &metadata, &c.ScrapeJobID, &c.ScrapedAt, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.ExtractedMetadata); err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}
	}
	return &c, nil
}
