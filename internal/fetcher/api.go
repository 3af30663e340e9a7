package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type APIConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxResults int
}

// APIFetcher delegates scraping to a managed REST scraping service.
type APIFetcher struct {
	baseURL    string
	apiKey     string
	maxResults int
	client     *http.Client
}

func NewAPI(cfg APIConfig) *APIFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &APIFetcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		maxResults: cfg.MaxResults,
		client:     &http.Client{Timeout: timeout},
	}
}

type apiScrapeRequest struct {
	URL              string   `json:"url"`
	Keywords         []string `json:"keywords,omitempty"`
	TakeScreenshot   bool     `json:"take_screenshot"`
	SaveHTML         bool     `json:"save_html"`
	InteractWithPage bool     `json:"interact_with_page"`
}

type apiJob struct {
	JobID  string     `json:"job_id"`
	Status JobStatus  `json:"status"`
	Error  string     `json:"error,omitempty"`
	Result *apiResult `json:"result,omitempty"`
}

type apiResult struct {
	URL              string         `json:"url"`
	Text             string         `json:"text"`
	HTML             string         `json:"html,omitempty"`
	Metadata         map[string]any `json:"metadata"`
	ScreenshotBase64 string         `json:"screenshot_base64,omitempty"`
}

type apiSearchResponse struct {
	Results []struct {
		URL string `json:"url"`
	} `json:"results"`
}

func (f *APIFetcher) Scrape(ctx context.Context, pageURL string, keywords []string, opts ScrapeOptions) (*Job, error) {
	var resp apiJob
	err := f.do(ctx, http.MethodPost, "/v1/scrape", apiScrapeRequest{
		URL:              pageURL,
		Keywords:         keywords,
		TakeScreenshot:   opts.TakeScreenshot,
		SaveHTML:         opts.SaveHTML,
		InteractWithPage: opts.InteractWithPage,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("submitting scrape: %w", err)
	}
	if resp.JobID == "" {
		return nil, fmt.Errorf("submitting scrape: empty job id")
	}

	status := resp.Status
	if status == "" {
		status = JobPending
	}
	return &Job{ID: resp.JobID, Status: status}, nil
}

func (f *APIFetcher) CheckStatus(ctx context.Context, jobID string) (*Job, error) {
	var resp apiJob
	if err := f.do(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &resp); err != nil {
		return nil, err
	}

	job := &Job{ID: jobID, Status: resp.Status, Error: resp.Error}
	if resp.Result != nil {
		result := &Result{
			URL:      resp.Result.URL,
			Text:     resp.Result.Text,
			HTML:     resp.Result.HTML,
			Metadata: resp.Result.Metadata,
		}
		if result.Metadata == nil {
			result.Metadata = map[string]any{}
		}
		if resp.Result.ScreenshotBase64 != "" {
			shot, err := base64.StdEncoding.DecodeString(resp.Result.ScreenshotBase64)
			if err != nil {
				return nil, fmt.Errorf("decoding screenshot: %w", err)
			}
			result.Screenshot = shot
		}
		job.Result = result
	}
	return job, nil
}

func (f *APIFetcher) DiscoverSources(ctx context.Context, keywords []string, excludedURLs []string) ([]string, error) {
	query := strings.TrimSpace(strings.Join(keywords, " "))
	if query == "" {
		return nil, nil
	}
	results, err := f.searchAPI(ctx, query)
	if err != nil {
		return nil, err
	}
	return filterResults(results, excludedURLs, f.maxResults), nil
}

func (f *APIFetcher) SearchWithinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error) {
	u, err := url.Parse(siteURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid site url %q", siteURL)
	}
	results, err := f.searchAPI(ctx, "site:"+u.Hostname()+" "+strings.Join(keywords, " "))
	if err != nil {
		return nil, err
	}
	return filterResults(results, nil, f.maxResults), nil
}

func (f *APIFetcher) ExtractPageContent(ctx context.Context, pageURL string) (*PageContent, error) {
	var resp PageContent
	if err := f.do(ctx, http.MethodGet, "/v1/extract?url="+url.QueryEscape(pageURL), nil, &resp); err != nil {
		return nil, fmt.Errorf("extracting page: %w", err)
	}
	if resp.URL == "" {
		resp.URL = pageURL
	}
	return &resp, nil
}

func (f *APIFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

func (f *APIFetcher) searchAPI(ctx context.Context, query string) ([]string, error) {
	path := "/v1/search?q=" + url.QueryEscape(query)
	if f.maxResults > 0 {
		path += fmt.Sprintf("&limit=%d", f.maxResults)
	}

	var resp apiSearchResponse
	if err := f.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}

	urls := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls, nil
}

func (f *APIFetcher) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, f.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if f.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.apiKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrJobNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("scraping API %s %s: HTTP %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
