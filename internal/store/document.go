package store

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/category"
)

// Classifier identity recorded when the model supplied the enrichment.
const (
	ModelClassifierName    = "llm-enrichment"
	ModelClassifierVersion = "1"
)

// Document is the stored shape of an enriched article.
type Document struct {
	ID                string                         `json:"id"`
	Title             string                         `json:"title"`
	Summary           string                         `json:"summary"`
	Content           string                         `json:"content"`
	URL               string                         `json:"url"`
	SourceID          string                         `json:"sourceId"`
	SourceName        string                         `json:"sourceName"`
	SourceDomain      string                         `json:"sourceDomain"`
	Language          string                         `json:"language"`
	Author            string                         `json:"author"`
	Tags              []string                       `json:"tags"`
	PublishedAt       *time.Time                     `json:"publishedAt"`
	CreatedAt         time.Time                      `json:"createdAt"`
	UpdatedAt         time.Time                      `json:"updatedAt"`
	AutoSummary       *string                        `json:"autoSummary"`
	Category          string                         `json:"category"`
	KeyPoints         []string                       `json:"keyPoints"`
	Translations      map[string]article.Translation `json:"translations"`
	ReadTime          int                            `json:"readTime"`
	ContentHash       string                         `json:"contentHash"`
	IngestionMetadata IngestionMetadata              `json:"ingestionMetadata"`
}

type IngestionMetadata struct {
	IngestedAt        time.Time `json:"ingestedAt"`
	Classifier        string    `json:"classifier"`
	ClassifierVersion string    `json:"classifierVersion"`
	Model             string    `json:"model"`
}

// DocumentID is the first 32 hex characters of the content hash, or a random
// 32 character id when there is no usable hash.
func DocumentID(hash string) string {
	if len(hash) >= 32 {
		return hash[:32]
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewDocument reshapes an enriched article for storage.
func NewDocument(e article.Enriched, ingestedAt time.Time) Document {
	id := e.DocumentID
	if id == "" {
		id = DocumentID(e.Hash)
	}

	meta := IngestionMetadata{
		IngestedAt:        ingestedAt,
		Classifier:        category.ClassifierName,
		ClassifierVersion: category.ClassifierVersion,
	}
	if e.EnrichedBy != "" {
		meta.Classifier = ModelClassifierName
		meta.ClassifierVersion = ModelClassifierVersion
		meta.Model = e.EnrichedBy
	}

	createdAt := ingestedAt
	if e.CreatedAt != nil {
		createdAt = *e.CreatedAt
	}
	updatedAt := e.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = ingestedAt
	}

	translations := e.Translations
	if translations == nil {
		translations = map[string]article.Translation{}
	}

	return Document{
		ID:                id,
		Title:             e.Title,
		Summary:           e.Summary,
		Content:           e.Content,
		URL:               e.URL,
		SourceID:          e.SourceID,
		SourceName:        e.SourceName,
		SourceDomain:      e.SourceDomain,
		Language:          e.Language,
		Author:            e.Author,
		Tags:              nonNil(e.Tags),
		PublishedAt:       e.PublishedAt,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
		AutoSummary:       e.AutoSummary,
		Category:          e.Category,
		KeyPoints:         nonNil(e.KeyPoints),
		Translations:      translations,
		ReadTime:          e.ReadTime,
		ContentHash:       e.Hash,
		IngestionMetadata: meta,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
