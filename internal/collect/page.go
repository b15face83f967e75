package collect

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Per-site selectors for the article body, tried before the generic list.
var siteSelectors = map[string][]string{
	"dailynews.lk":   {".field-name-body p", ".node-article .content p"},
	"newsfirst.lk":   {".editor-styles p", ".news-content p"},
	"dailymirror.lk": {"header.inner-content + div p", ".inner-content p"},
	"adaderana.lk":   {".news-content p", ".story-text p"},
	"sundaytimes.lk": {".entry-content p"},
}

var genericSelectors = []string{
	"article p",
	".article p",
	".article-body p",
	".entry-content p",
	".post-content p",
	".content p",
	"main p",
}

// PageFetcher downloads an article page and extracts its body paragraphs as HTML.
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

func NewPageFetcher(client *http.Client, userAgent string) *PageFetcher {
	return &PageFetcher{client: client, userAgent: userAgent}
}

// Fetch returns the article body as a sequence of <p> elements.
func (p *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "build request", Cause: err}
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "load page", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: pageURL, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &FetchError{URL: pageURL, Message: "parse HTML", Cause: err}
	}

	selectors := genericSelectors
	host := domainOf(pageURL)
	for site, extra := range siteSelectors {
		if matchesDomain(host, site) {
			selectors = append(append([]string{}, extra...), genericSelectors...)
			break
		}
	}

	body := extractParagraphs(doc, selectors)
	if body == "" {
		return "", &FetchError{URL: pageURL, Message: "no article body found"}
	}
	return body, nil
}

// extractParagraphs uses the first selector that yields meaningful paragraphs.
func extractParagraphs(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		var b strings.Builder
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if len(text) <= 10 {
				return
			}
			b.WriteString("<p>")
			b.WriteString(html.EscapeString(text))
			b.WriteString("</p>")
		})
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
