package model

import (
	"net/url"
	"strings"
	"time"
)

type SourceType string

const (
	SourceTypeNews   SourceType = "news"
	SourceTypeSocial SourceType = "social"
	SourceTypeForum  SourceType = "forum"
	SourceTypeBlog   SourceType = "blog"
	SourceTypeOther  SourceType = "other"
)

type SourceStatus string

const (
	SourceStatusActive            SourceStatus = "active"
	SourceStatusUnreachable       SourceStatus = "unreachable"
	SourceStatusRequiresAttention SourceStatus = "requires_attention"
)

const (
	// DiscoveredCredibility is the starting credibility of agent-discovered sources.
	DiscoveredCredibility = 0.5

	// UnreachableBackoff is stamped as next_scrape_due_at when a source is parked as
	// unreachable. Parked sources are never listed as due: they stay parked until a
	// user sets them back to active, which makes them due immediately.
	UnreachableBackoff = 24 * time.Hour
)

var cadences = map[SourceType]time.Duration{
	SourceTypeNews:   2 * time.Hour,
	SourceTypeSocial: 4 * time.Hour,
	SourceTypeForum:  6 * time.Hour,
	SourceTypeBlog:   24 * time.Hour,
	SourceTypeOther:  24 * time.Hour,
}

// CadenceFor returns the fixed re-scrape interval of a source type.
// Unknown types use the "other" cadence.
func CadenceFor(t SourceType) time.Duration {
	if d, ok := cadences[t]; ok {
		return d
	}
	return cadences[SourceTypeOther]
}

// NextScrapeDue is the next due time after a scrape attempt at attemptedAt.
func NextScrapeDue(t SourceType, attemptedAt time.Time) time.Time {
	return attemptedAt.Add(CadenceFor(t))
}

func (t SourceType) Valid() bool {
	_, ok := cadences[t]
	return ok
}

type DataSource struct {
	ID                int64        `json:"id"`
	ProfileID         *int64       `json:"profile_id,omitempty"`
	URL               string       `json:"url"`
	SourceType        SourceType   `json:"source_type"`
	DiscoveredByAgent bool         `json:"discovered_by_agent"`
	CredibilityScore  float64      `json:"credibility_score"`
	Status            SourceStatus `json:"status"`
	LastScrapedAt     *time.Time   `json:"last_scraped_at,omitempty"`
	NextScrapeDueAt   *time.Time   `json:"next_scrape_due_at,omitempty"`
	LastError         *string      `json:"last_error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// IsDue reports whether the source is eligible for scraping at now.
func (s *DataSource) IsDue(now time.Time) bool {
	if s.Status != SourceStatusActive {
		return false
	}
	return s.NextScrapeDueAt == nil || !s.NextScrapeDueAt.After(now)
}

// hostKeywords is checked in order; the first hit wins.
var hostKeywords = []struct {
	sourceType SourceType
	keywords   []string
}{
	{SourceTypeSocial, []string{"twitter", "x.com", "facebook", "instagram", "linkedin", "tiktok", "youtube", "mastodon", "threads.net", "bsky"}},
	{SourceTypeForum, []string{"reddit", "forum", "community", "discourse", "stackexchange", "stackoverflow", "news.ycombinator", "quora", "board"}},
	{SourceTypeBlog, []string{"blog", "medium.com", "substack", "wordpress", "blogspot", "ghost.io", "tumblr", "dev.to", "hashnode"}},
	{SourceTypeNews, []string{"news", "reuters", "bloomberg", "cnn", "bbc", "nytimes", "wsj", "guardian", "times", "post", "press", "herald", "journal", "techcrunch", "forbes", "ft.com", "apnews"}},
}

// ClassifySourceType guesses a source type from keywords found in the URL's hostname,
// falling back to the path for blog-style URLs on generic hosts.
func ClassifySourceType(rawURL string) SourceType {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return SourceTypeOther
	}
	host := strings.ToLower(u.Hostname())

	for _, entry := range hostKeywords {
		for _, kw := range entry.keywords {
			if hostMatches(host, kw) {
				return entry.sourceType
			}
		}
	}

	if strings.HasPrefix(strings.ToLower(u.Path), "/blog") {
		return SourceTypeBlog
	}
	return SourceTypeOther
}

// hostMatches treats keywords containing a dot as domain fragments that must start
// at a label boundary, and plain keywords as substrings.
func hostMatches(host, kw string) bool {
	if !strings.Contains(kw, ".") {
		return strings.Contains(host, kw)
	}
	return strings.HasPrefix(host, kw) || strings.Contains(host, "."+kw)
}

// NormalizeURL lowercases scheme and host and strips fragments and trailing
// slashes so equivalent URLs compare equal.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(rawURL)), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// Hostname returns the lowercased host of rawURL without a leading "www.".
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
