package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type RawContent struct {
	ID                int64          `json:"id"`
	SourceID          *int64         `json:"source_id,omitempty"`
	ProfileID         *int64         `json:"profile_id,omitempty"`
	ContentURL        string         `json:"content_url"`
	ContentHash       string         `json:"content_hash"`
	HTMLSnapshotURL   *string        `json:"html_snapshot_url,omitempty"`
	ScreenshotURL     *string        `json:"screenshot_url,omitempty"`
	ExtractedText     string         `json:"extracted_text_content"`
	ExtractedMetadata map[string]any `json:"extracted_metadata"`
	ScrapeJobID       string         `json:"scrape_job_id"`
	ScrapedAt         time.Time      `json:"scraped_at"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ContentHash is the dedupe key of extracted text: lowercase hex SHA-256.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
