package fetcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cognito.app/sentinel/internal/blob"
)

type snapshotEntry struct {
	opts    ScrapeOptions
	created time.Time
	done    *Job
}

// snapshotting moves raw HTML and screenshots of completed jobs into blob storage.
type snapshotting struct {
	inner ContentFetcher
	blobs blob.Store

	mu      sync.Mutex
	entries map[string]*snapshotEntry
}

// NewSnapshotting decorates inner so that completed results carry blob paths
// instead of raw HTML and screenshot bytes.
func NewSnapshotting(inner ContentFetcher, blobs blob.Store) ContentFetcher {
	return &snapshotting{
		inner:   inner,
		blobs:   blobs,
		entries: make(map[string]*snapshotEntry),
	}
}

func (s *snapshotting) Scrape(ctx context.Context, url string, keywords []string, opts ScrapeOptions) (*Job, error) {
	job, err := s.inner.Scrape(ctx, url, keywords, opts)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s.mu.Lock()
	for id, e := range s.entries {
		if now.Sub(e.created) > finishedJobTTL {
			delete(s.entries, id)
		}
	}
	s.entries[job.ID] = &snapshotEntry{opts: opts, created: now}
	s.mu.Unlock()

	return job, nil
}

func (s *snapshotting) CheckStatus(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	entry, ok := s.entries[jobID]
	if ok && entry.done != nil {
		done := *entry.done
		s.mu.Unlock()
		return &done, nil
	}
	s.mu.Unlock()

	job, err := s.inner.CheckStatus(ctx, jobID)
	if err != nil || job.Status != JobCompleted || job.Result == nil {
		return job, err
	}

	var opts ScrapeOptions
	if ok {
		opts = entry.opts
	}
	result := *job.Result
	job.Result = &result
	s.persist(ctx, jobID, &result, opts)

	if ok {
		s.mu.Lock()
		stored := *job
		entry.done = &stored
		s.mu.Unlock()
	}
	return job, nil
}

// persist stores artifacts. Storage failures drop the artifact, not the job.
func (s *snapshotting) persist(ctx context.Context, jobID string, result *Result, opts ScrapeOptions) {
	if opts.SaveHTML && result.HTML != "" {
		ref, err := s.blobs.Put(ctx, blob.KindHTML, []byte(result.HTML))
		if err != nil {
			slog.WarnContext(ctx, "failed to store html snapshot", "job_id", jobID, "error", err)
		} else {
			result.HTMLPath = ref.URL
		}
	}
	result.HTML = ""

	if opts.TakeScreenshot && len(result.Screenshot) > 0 {
		ref, err := s.blobs.Put(ctx, blob.KindScreenshot, result.Screenshot)
		if err != nil {
			slog.WarnContext(ctx, "failed to store screenshot", "job_id", jobID, "error", err)
		} else {
			result.ScreenshotPath = ref.URL
		}
	}
	result.Screenshot = nil
}

func (s *snapshotting) DiscoverSources(ctx context.Context, keywords []string, excludedURLs []string) ([]string, error) {
	return s.inner.DiscoverSources(ctx, keywords, excludedURLs)
}

func (s *snapshotting) SearchWithinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error) {
	return s.inner.SearchWithinSite(ctx, siteURL, keywords)
}

func (s *snapshotting) ExtractPageContent(ctx context.Context, url string) (*PageContent, error) {
	return s.inner.ExtractPageContent(ctx, url)
}
