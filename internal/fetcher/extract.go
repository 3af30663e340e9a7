package fetcher

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	mdConverter = converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)
	sanitizer = bluemonday.UGCPolicy()

	blankLines = regexp.MustCompile(`\n{3,}`)
)

// boilerplate is stripped before the main content is located.
const boilerplate = "script, style, noscript, iframe, nav, footer, header, aside, form, .sidebar, .menu, .cookie-notice, .advertisement"

var contentSelectors = []string{
	"article", "main", "[role=main]", ".post-content", ".entry-content", ".article-body", "#content", ".content",
}

type Extracted struct {
	Title    string
	Text     string
	Metadata map[string]any
	Links    []string
}

// Extract turns a rendered HTML page into markdown text, page metadata and
// the absolute links it contains.
func Extract(html, pageURL string) (*Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	metadata := extractMetadata(doc)
	links := extractLinks(doc, pageURL)

	doc.Find(boilerplate).Remove()

	body := doc.Find("body")
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 && len(strings.TrimSpace(s.Text())) > 200 {
			body = s
			break
		}
	}

	fragment, err := goquery.OuterHtml(body)
	if err != nil {
		return nil, fmt.Errorf("rendering content: %w", err)
	}
	clean := sanitizer.Sanitize(fragment)

	text, err := mdConverter.ConvertString(clean, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(text) == "" {
		text = collapseWhitespace(body.Text())
	}
	text = blankLines.ReplaceAllString(strings.TrimSpace(text), "\n\n")

	title, _ := metadata["title"].(string)
	metadata["word_count"] = len(strings.Fields(text))

	return &Extracted{
		Title:    title,
		Text:     text,
		Metadata: metadata,
		Links:    links,
	}, nil
}

func extractMetadata(doc *goquery.Document) map[string]any {
	meta := make(map[string]any)
	set := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			meta[key] = value
		}
	}

	set("title", doc.Find("title").First().Text())
	if _, ok := meta["title"]; !ok {
		set("title", doc.Find("h1").First().Text())
	}
	set("description", attr(doc, `meta[name="description"]`, "content"))
	set("author", attr(doc, `meta[name="author"]`, "content"))
	set("canonical_url", attr(doc, `link[rel="canonical"]`, "href"))
	set("language", attr(doc, "html", "lang"))
	set("published_time", attr(doc, `meta[property="article:published_time"]`, "content"))
	set("og_title", attr(doc, `meta[property="og:title"]`, "content"))
	set("og_description", attr(doc, `meta[property="og:description"]`, "content"))
	set("og_image", attr(doc, `meta[property="og:image"]`, "content"))
	set("site_name", attr(doc, `meta[property="og:site_name"]`, "content"))

	return meta
}

func attr(doc *goquery.Document, selector, name string) string {
	v, _ := doc.Find(selector).First().Attr(name)
	return v
}

func extractLinks(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		abs := ref.String()
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
