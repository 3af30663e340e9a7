package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cognito.app/sentinel/internal/model"
)

// htmlSearch queries a DuckDuckGo-style HTML results page.
type htmlSearch struct {
	client     *http.Client
	endpoint   string
	userAgent  string
	maxResults int
}

func (s *htmlSearch) search(ctx context.Context, query string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	var results []string
	doc.Find("a.result__a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if u := resultURL(href); u != "" {
			results = append(results, u)
		}
	})
	return results, nil
}

// resultURL unwraps DuckDuckGo redirect links.
func resultURL(href string) string {
	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if actual := parsed.Query().Get("uddg"); actual != "" {
		return actual
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return ""
}

func (s *htmlSearch) discover(ctx context.Context, keywords, excludedURLs []string) ([]string, error) {
	query := strings.TrimSpace(strings.Join(keywords, " "))
	if query == "" {
		return nil, nil
	}

	results, err := s.search(ctx, query)
	if err != nil {
		return nil, err
	}
	return filterResults(results, excludedURLs, s.maxResults), nil
}

func (s *htmlSearch) withinSite(ctx context.Context, siteURL string, keywords []string) ([]string, error) {
	host := model.Hostname(siteURL)
	if host == "" {
		return nil, fmt.Errorf("invalid site url %q", siteURL)
	}

	results, err := s.search(ctx, "site:"+host+" "+strings.Join(keywords, " "))
	if err != nil {
		return nil, err
	}

	inSite := results[:0]
	for _, r := range results {
		if h := model.Hostname(r); h == host || strings.HasSuffix(h, "."+host) {
			inSite = append(inSite, r)
		}
	}
	return filterResults(inSite, nil, s.maxResults), nil
}

// filterResults drops excluded and repeated URLs and caps the list at limit.
func filterResults(results, excludedURLs []string, limit int) []string {
	skip := make(map[string]bool, len(excludedURLs)+len(results))
	for _, u := range excludedURLs {
		skip[model.NormalizeURL(u)] = true
	}

	var out []string
	for _, r := range results {
		norm := model.NormalizeURL(r)
		if skip[norm] {
			continue
		}
		skip[norm] = true
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
