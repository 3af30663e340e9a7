// Package fetcher scrapes web pages behind an asynchronous job interface.
package fetcher

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrJobNotFound = errors.New("scrape job not found")
	ErrJobFailed   = errors.New("scrape job failed")
	ErrJobTimeout  = errors.New("scrape job timed out")
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

type ScrapeOptions struct {
	TakeScreenshot   bool
	SaveHTML         bool
	InteractWithPage bool
}

// QuickScrape is used for relevance probes: text only, no artifacts.
var QuickScrape = ScrapeOptions{}

type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
	Result *Result   `json:"result,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// Result is the outcome of a completed job. HTML and Screenshot hold raw bytes
// until a snapshotting fetcher moves them to blob storage and sets the paths.
type Result struct {
	URL            string         `json:"url"`
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata"`
	HTML           string         `json:"html,omitempty"`
	HTMLPath       string         `json:"html_path,omitempty"`
	Screenshot     []byte         `json:"-"`
	ScreenshotPath string         `json:"screenshot_path,omitempty"`
}

type PageContent struct {
	URL      string         `json:"url"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Links    []string       `json:"links"`
}

// ContentFetcher is the contract every scraping provider implements.
type ContentFetcher interface {
	Scrape(ctx context.Context, url string, keywords []string, opts ScrapeOptions) (*Job, error)
	CheckStatus(ctx context.Context, jobID string) (*Job, error)
	DiscoverSources(ctx context.Context, keywords []string, excludedURLs []string) ([]string, error)
	SearchWithinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error)
	ExtractPageContent(ctx context.Context, url string) (*PageContent, error)
}

// Provider is a ContentFetcher that owns resources.
type Provider interface {
	ContentFetcher
	Close() error
}

// matchKeywords returns the keywords that occur in text, case-insensitively.
func matchKeywords(text string, keywords []string) []string {
	lower := strings.ToLower(text)
	matched := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
