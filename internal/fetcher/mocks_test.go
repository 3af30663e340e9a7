package fetcher_test

import (
	"context"
	"sync"

	"cognito.app/sentinel/internal/fetcher"
)

type mockFetcher struct {
	mu sync.Mutex

	scrapeFn      func(ctx context.Context, url string, keywords []string, opts fetcher.ScrapeOptions) (*fetcher.Job, error)
	checkStatusFn func(ctx context.Context, jobID string) (*fetcher.Job, error)
	checks        int
}

func (m *mockFetcher) Scrape(ctx context.Context, url string, keywords []string, opts fetcher.ScrapeOptions) (*fetcher.Job, error) {
	if m.scrapeFn != nil {
		return m.scrapeFn(ctx, url, keywords, opts)
	}
	return &fetcher.Job{ID: "job-1", Status: fetcher.JobPending}, nil
}

func (m *mockFetcher) CheckStatus(ctx context.Context, jobID string) (*fetcher.Job, error) {
	m.mu.Lock()
	m.checks++
	m.mu.Unlock()
	if m.checkStatusFn != nil {
		return m.checkStatusFn(ctx, jobID)
	}
	return &fetcher.Job{ID: jobID, Status: fetcher.JobRunning}, nil
}

func (m *mockFetcher) Checks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

func (m *mockFetcher) DiscoverSources(ctx context.Context, keywords []string, excludedURLs []string) ([]string, error) {
	return nil, nil
}

func (m *mockFetcher) SearchWithinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error) {
	return nil, nil
}

func (m *mockFetcher) ExtractPageContent(ctx context.Context, url string) (*fetcher.PageContent, error) {
	return &fetcher.PageContent{URL: url}, nil
}
