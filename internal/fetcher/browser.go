package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"cognito.app/sentinel/common/logger"
)

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// finishedJobTTL bounds how long terminal jobs stay queryable.
const finishedJobTTL = time.Hour

type BrowserConfig struct {
	Headless       bool
	UserAgent      string
	MaxConcurrent  int
	PageTimeout    time.Duration
	SearchURL      string
	RequestTimeout time.Duration
	MaxResults     int
}

type browserJob struct {
	job      Job
	finished time.Time
}

// BrowserFetcher renders pages in headless Chrome. Scrape returns immediately;
// the page is loaded on a bounded pool of tabs sharing one browser process.
type BrowserFetcher struct {
	cfg    BrowserConfig
	search *htmlSearch

	baseCtx     context.Context
	cancelBase  context.CancelFunc
	allocCancel context.CancelFunc
	browserCtx  context.Context
	closeTabs   context.CancelFunc

	startOnce sync.Once
	startErr  error

	slots chan struct{}
	wg    sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*browserJob
}

func NewBrowser(cfg BrowserConfig) *BrowserFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 45 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 20 * time.Second
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &BrowserFetcher{
		cfg: cfg,
		search: &htmlSearch{
			client:     &http.Client{Timeout: cfg.RequestTimeout},
			endpoint:   cfg.SearchURL,
			userAgent:  cfg.UserAgent,
			maxResults: cfg.MaxResults,
		},
		baseCtx:    baseCtx,
		cancelBase: cancel,
		slots:      make(chan struct{}, cfg.MaxConcurrent),
		jobs:       make(map[string]*browserJob),
	}
}

// allocatorOptions returns chromedp allocator options with anti-bot-detection measures.
func (f *BrowserFetcher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(f.cfg.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if f.cfg.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

// start launches the shared browser on first use.
func (f *BrowserFetcher) start() error {
	f.startOnce.Do(func() {
		allocCtx, allocCancel := chromedp.NewExecAllocator(f.baseCtx, f.allocatorOptions()...)
		browserCtx, browserCancel := chromedp.NewContext(allocCtx)
		if err := chromedp.Run(browserCtx); err != nil {
			browserCancel()
			allocCancel()
			f.startErr = fmt.Errorf("starting browser: %w", err)
			return
		}
		f.allocCancel = allocCancel
		f.browserCtx = browserCtx
		f.closeTabs = browserCancel
	})
	return f.startErr
}

func (f *BrowserFetcher) Scrape(ctx context.Context, url string, keywords []string, opts ScrapeOptions) (*Job, error) {
	if err := f.baseCtx.Err(); err != nil {
		return nil, fmt.Errorf("fetcher closed: %w", err)
	}

	id := uuid.NewString()
	f.mu.Lock()
	f.pruneLocked(time.Now())
	f.jobs[id] = &browserJob{job: Job{ID: id, Status: JobPending}}
	f.mu.Unlock()

	jobCtx := logger.WithLogFields(f.baseCtx, logger.LogFields{
		JobID:     &id,
		Component: "sentinel.fetcher.browser",
	})

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(jobCtx, id, url, keywords, opts)
	}()

	return &Job{ID: id, Status: JobPending}, nil
}

func (f *BrowserFetcher) run(ctx context.Context, id, url string, keywords []string, opts ScrapeOptions) {
	select {
	case f.slots <- struct{}{}:
		defer func() { <-f.slots }()
	case <-ctx.Done():
		f.finish(id, nil, ctx.Err())
		return
	}

	f.setStatus(id, JobRunning)
	start := time.Now()

	result, err := f.render(ctx, url, opts)
	if err == nil {
		result.Metadata["matched_keywords"] = matchKeywords(result.Text, keywords)
	}
	f.finish(id, result, err)

	if err != nil {
		slog.WarnContext(ctx, "browser scrape failed", "url", url, "error", err)
		return
	}
	slog.DebugContext(ctx, "browser scrape completed",
		"url", url,
		"duration_ms", time.Since(start).Milliseconds(),
		"text_len", len(result.Text))
}

type page struct {
	html       string
	screenshot []byte
	status     int64
}

func (f *BrowserFetcher) render(ctx context.Context, url string, opts ScrapeOptions) (*Result, error) {
	p, err := f.load(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	extracted, err := Extract(p.html, url)
	if err != nil {
		return nil, err
	}
	extracted.Metadata["http_status"] = p.status

	result := &Result{
		URL:      url,
		Text:     extracted.Text,
		Metadata: extracted.Metadata,
	}
	if opts.SaveHTML {
		result.HTML = p.html
	}
	if opts.TakeScreenshot {
		result.Screenshot = p.screenshot
	}
	return result, nil
}

// load navigates a fresh tab to url and captures the rendered document.
func (f *BrowserFetcher) load(ctx context.Context, url string, opts ScrapeOptions) (*page, error) {
	if err := f.start(); err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.cfg.PageTimeout)
	defer cancelTimeout()

	// Tie the tab to the caller's lifetime as well as the browser's.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var (
		statusMu sync.Mutex
		p        page
	)
	chromedp.ListenTarget(tabCtx, func(ev any) {
		if resp, ok := ev.(*network.EventResponseReceived); ok && resp.Type == network.ResourceTypeDocument {
			statusMu.Lock()
			if p.status == 0 && resp.Response != nil {
				p.status = resp.Response.Status
			}
			statusMu.Unlock()
		}
	})

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if opts.InteractWithPage {
		for i := 0; i < 3; i++ {
			actions = append(actions,
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
				chromedp.Sleep(time.Duration(500+i*250)*time.Millisecond),
			)
		}
	}
	actions = append(actions, chromedp.OuterHTML("html", &p.html, chromedp.ByQuery))
	if opts.TakeScreenshot {
		actions = append(actions, chromedp.FullScreenshot(&p.screenshot, 100))
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("loading %s: %w", url, err)
	}

	statusMu.Lock()
	defer statusMu.Unlock()
	if p.status >= 400 {
		return nil, fmt.Errorf("loading %s: HTTP %d %s", url, p.status, http.StatusText(int(p.status)))
	}
	return &p, nil
}

func (f *BrowserFetcher) setStatus(id string, status JobStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if j, ok := f.jobs[id]; ok {
		j.job.Status = status
	}
}

func (f *BrowserFetcher) finish(id string, result *Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[id]
	if !ok {
		return
	}
	j.finished = time.Now()
	if err != nil {
		j.job.Status = JobFailed
		j.job.Error = err.Error()
		return
	}
	j.job.Status = JobCompleted
	j.job.Result = result
}

func (f *BrowserFetcher) pruneLocked(now time.Time) {
	for id, j := range f.jobs {
		if !j.finished.IsZero() && now.Sub(j.finished) > finishedJobTTL {
			delete(f.jobs, id)
		}
	}
}

func (f *BrowserFetcher) CheckStatus(ctx context.Context, jobID string) (*Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	j, ok := f.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := j.job
	return &snapshot, nil
}

func (f *BrowserFetcher) DiscoverSources(ctx context.Context, keywords []string, excludedURLs []string) ([]string, error) {
	return f.search.discover(ctx, keywords, excludedURLs)
}

func (f *BrowserFetcher) SearchWithinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error) {
	return f.search.withinSite(ctx, siteURL, keywords)
}

func (f *BrowserFetcher) ExtractPageContent(ctx context.Context, url string) (*PageContent, error) {
	p, err := f.load(ctx, url, ScrapeOptions{})
	if err != nil {
		return nil, err
	}

	extracted, err := Extract(p.html, url)
	if err != nil {
		return nil, err
	}
	return &PageContent{
		URL:      url,
		Title:    extracted.Title,
		Text:     extracted.Text,
		Metadata: extracted.Metadata,
		Links:    extracted.Links,
	}, nil
}

// Close cancels running jobs and shuts the browser down.
func (f *BrowserFetcher) Close() error {
	f.cancelBase()
	f.wg.Wait()
	if f.closeTabs != nil {
		f.closeTabs()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}
