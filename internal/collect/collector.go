// Package collect fetches configured feeds and turns their items into filtered raw articles.
package collect

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/textutil"
)

const DefaultMaxArticlesPerSource = 12

// Options controls per-item selection and filtering.
type Options struct {
	MaxArticlesPerSource   int
	LookbackDays           int
	AllowedDomains         []string
	LocalRelevanceKeywords []string
	FetchFullArticle       bool
	Location               *time.Location
	UserAgent              string
}

// Collector turns one source feed into raw articles. It never fails: a broken
// source is logged and contributes no articles.
type Collector struct {
	opts   Options
	client *http.Client
	pages  *PageFetcher
	logger *slog.Logger
	now    func() time.Time
}

// NewHTTPClient returns a client with a bounded timeout and redirect count.
func NewHTTPClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

func New(client *http.Client, opts Options, logger *slog.Logger) *Collector {
	if opts.MaxArticlesPerSource <= 0 {
		opts.MaxArticlesPerSource = DefaultMaxArticlesPerSource
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		opts:   opts,
		client: client,
		pages:  NewPageFetcher(client, opts.UserAgent),
		logger: logger.With("component", "collector"),
		now:    time.Now,
	}
}

// Collect fetches src and returns the items that pass every filter, in feed order.
func (c *Collector) Collect(ctx context.Context, src article.Source) []article.Raw {
	log := c.logger.With("source", src.ID)

	feed, err := c.fetchFeed(ctx, src)
	if err != nil {
		log.Error("feed fetch failed", "url", src.URL, "error", err)
		return []article.Raw{}
	}

	items := feed.Items
	if len(items) > c.opts.MaxArticlesPerSource {
		items = items[:c.opts.MaxArticlesPerSource]
	}

	now := c.now()
	out := make([]article.Raw, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		raw, ok := c.normalize(ctx, src, item, log)
		if !ok {
			continue
		}
		if reason := c.reject(src, raw, now); reason != "" {
			log.Debug("item filtered", "url", raw.URL, "reason", reason)
			continue
		}
		out = append(out, raw)
	}

	log.Info("source collected", "items", len(feed.Items), "considered", len(items), "kept", len(out))
	return out
}

// Fetching the feed is the one failure that discards a whole source.
func (c *Collector) fetchFeed(ctx context.Context, src article.Source) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = c.client
	parser.UserAgent = c.opts.UserAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &FetchError{URL: src.URL, Message: fmt.Sprintf("HTTP %d", httpErr.StatusCode), Cause: err}
		}
		return nil, &FetchError{URL: src.URL, Message: "parse feed", Cause: err}
	}
	return feed, nil
}

func (c *Collector) normalize(ctx context.Context, src article.Source, item *gofeed.Item, log *slog.Logger) (article.Raw, bool) {
	guid := strings.TrimSpace(item.GUID)
	link := strings.TrimSpace(item.Link)
	if link == "" && isHTTPURL(guid) {
		link = guid
	}
	// An opaque guid (tag: or urn: ids) is enough to keep the item, but
	// there is no page to fetch and no domain to match.
	id := cmp.Or(guid, link)
	if id == "" {
		return article.Raw{}, false
	}

	content := cmp.Or(strings.TrimSpace(item.Content), strings.TrimSpace(item.Description), snippet(item))
	if content == "" && c.opts.FetchFullArticle && link != "" {
		body, err := c.pages.Fetch(ctx, link)
		if err != nil {
			log.Debug("article page unavailable", "url", link, "error", err)
		} else {
			content = body
		}
	}

	published := c.publishedAt(item)
	if published == nil {
		log.Warn("no parseable publish date, keeping item", "id", id)
	}

	return article.Raw{
		ID:           id,
		URL:          link,
		Title:        textutil.StripHTML(item.Title),
		Summary:      textutil.StripHTML(item.Description),
		Content:      textutil.SanitizeHTML(content),
		ContentText:  textutil.StripHTML(content),
		PublishedAt:  published,
		Author:       author(item),
		Tags:         mergeTags(src.Tags, item.Categories),
		SourceID:     src.ID,
		SourceName:   src.Name,
		SourceDomain: domainOf(link),
		Language:     src.Language,
	}, true
}

// reject returns the name of the first failing filter, or "".
func (c *Collector) reject(src article.Source, raw article.Raw, now time.Time) string {
	if !DomainAllowed(raw.SourceDomain, c.opts.AllowedDomains) {
		return "domain"
	}
	if c.opts.LookbackDays > 0 && !WithinLookback(raw.PublishedAt, now, c.opts.LookbackDays) {
		return "lookback"
	}
	text := raw.Title + " " + raw.Summary + " " + raw.ContentText
	if len(src.TopicFilters) > 0 && !textutil.ContainsAny(text, src.TopicFilters) {
		return "topic"
	}
	if len(c.opts.LocalRelevanceKeywords) > 0 && !textutil.ContainsAny(text, c.opts.LocalRelevanceKeywords) {
		return "relevance"
	}
	return ""
}

// publishedAt tries the parsed published date, the raw published string, the
// updated date and finally dc:date.
func (c *Collector) publishedAt(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		return c.inZone(*item.PublishedParsed)
	}
	if t, ok := parseDate(item.Published); ok {
		return c.inZone(t)
	}
	if item.UpdatedParsed != nil {
		return c.inZone(*item.UpdatedParsed)
	}
	if t, ok := parseDate(item.Updated); ok {
		return c.inZone(t)
	}
	if item.DublinCoreExt != nil {
		for _, d := range item.DublinCoreExt.Date {
			if t, ok := parseDate(d); ok {
				return c.inZone(t)
			}
		}
	}
	return nil
}

func (c *Collector) inZone(t time.Time) *time.Time {
	t = t.In(c.opts.Location)
	return &t
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// WithinLookback reports whether published is no older than days before now.
// Undated articles are always inside the window.
func WithinLookback(published *time.Time, now time.Time, days int) bool {
	if published == nil {
		return true
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	return !published.Before(cutoff)
}

// DomainAllowed matches domain against the allow-list, subdomains included.
// An empty list allows everything.
func DomainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if matchesDomain(domain, normalizeHost(a)) {
			return true
		}
	}
	return false
}

func matchesDomain(domain, want string) bool {
	if domain == "" || want == "" {
		return false
	}
	return domain == want || strings.HasSuffix(domain, "."+want)
}

func domainOf(link string) string {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ""
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimPrefix(h, "www.")
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func snippet(item *gofeed.Item) string {
	if item.ITunesExt != nil {
		if s := strings.TrimSpace(item.ITunesExt.Summary); s != "" {
			return s
		}
	}
	if item.DublinCoreExt != nil {
		for _, d := range item.DublinCoreExt.Description {
			if s := strings.TrimSpace(d); s != "" {
				return s
			}
		}
	}
	return ""
}

func author(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	for _, a := range item.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	return ""
}

// mergeTags joins source tags and item categories, dropping blanks and case-insensitive repeats.
func mergeTags(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, t := range list {
			t = textutil.NormalizeWhitespace(t)
			key := strings.ToLower(t)
			if t == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, t)
		}
	}
	return out
}
