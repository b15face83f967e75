// Package article defines the records that flow through the ingestion pipeline.
package article

import (
	"time"

	"github.com/nara-digital/newsingest/internal/textutil"
)

// Source is one configured feed.
type Source struct {
	ID           string   `yaml:"id" validate:"required"`
	Name         string   `yaml:"name" validate:"required"`
	URL          string   `yaml:"url" validate:"required,url"`
	Language     string   `yaml:"language" validate:"required"`
	Tags         []string `yaml:"tags"`
	TopicFilters []string `yaml:"topicFilters"`
}

// Raw is a feed item after normalization and filtering.
type Raw struct {
	ID           string // feed guid, or the link when there is none
	URL          string // empty when the item only carries an opaque guid
	Title        string
	Summary      string
	Content      string // sanitized HTML
	ContentText  string // stripped plain text
	PublishedAt  *time.Time
	CreatedAt    *time.Time
	Author       string
	Tags         []string
	SourceID     string
	SourceName   string
	SourceDomain string
	Language     string
	Hash         string
}

// Translation is a translated title and summary for one language.
type Translation struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Enriched is a raw article plus generated or heuristic enrichment.
type Enriched struct {
	Raw

	DocumentID   string
	Summary      string
	AutoSummary  *string
	Category     string
	KeyPoints    []string
	Translations map[string]Translation
	ReadTime     int
	EnrichedBy   string // model id, empty when the heuristic fallback was used
	UpdatedAt    time.Time
}

// Dedupe hashes every article and keeps the first occurrence of each hash,
// preserving input order.
func Dedupe(items []Raw) []Raw {
	seen := make(map[string]struct{}, len(items))
	out := make([]Raw, 0, len(items))
	for _, it := range items {
		h := textutil.ContentHash(it.URL, it.Title, it.ContentText)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		it.Hash = h
		out = append(out, it)
	}
	return out
}
