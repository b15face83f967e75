// Package pipeline runs one ingestion pass: collect, dedupe, enrich, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/category"
	"github.com/nara-digital/newsingest/internal/enrich"
	"github.com/nara-digital/newsingest/internal/metrics"
	"github.com/nara-digital/newsingest/internal/store"
	"github.com/nara-digital/newsingest/internal/textutil"
)

// SummaryFallbackRunes is how much stripped text stands in for a missing feed summary.
const SummaryFallbackRunes = 280

// Stage names, logged as a run moves forward.
const (
	StageCollecting = "collecting"
	StageDeduping   = "deduping"
	StageEnriching  = "enriching"
	StagePersisting = "persisting"
	StageDone       = "done"
)

// Collector never fails: a broken source yields no articles.
type Collector interface {
	Collect(ctx context.Context, src article.Source) []article.Raw
}

type Persister interface {
	Persist(ctx context.Context, items []article.Enriched) error
}

// BuildError means one article could not be turned into an enriched record.
// The article is dropped and the run continues.
type BuildError struct {
	Title string
	Cause error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build article %q: %v", e.Title, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

type Options struct {
	Sources       []article.Source
	MaxConcurrent int
}

type Pipeline struct {
	opts      Options
	collector Collector
	enricher  enrich.Enricher
	persister Persister
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func New(opts Options, c Collector, e enrich.Enricher, p Persister, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:      opts,
		collector: c,
		enricher:  e,
		persister: p,
		metrics:   m,
		logger:    logger.With("component", "pipeline"),
		now:       time.Now,
	}
}

// Run executes one pass and returns what was persisted. Only a persistence
// failure (or cancellation) makes it return an error.
func (p *Pipeline) Run(ctx context.Context) (result []article.Enriched, err error) {
	started := p.now()
	defer func() {
		p.metrics.RecordRun(p.now().Sub(started))
		if err != nil {
			p.metrics.SetError(err.Error())
		} else {
			p.metrics.SetLastRun()
		}
	}()

	p.stage(StageCollecting)
	collected, err := p.collect(ctx)
	if err != nil {
		return nil, err
	}
	p.metrics.AddCollected(len(collected))

	p.stage(StageDeduping)
	unique := article.Dedupe(collected)
	p.metrics.AddDuplicates(len(collected) - len(unique))
	p.logger.Info("articles deduplicated", "collected", len(collected), "unique", len(unique))

	if len(unique) == 0 {
		p.logger.Info("no new articles, skipping enrichment")
		p.stage(StageDone)
		return []article.Enriched{}, nil
	}

	p.stage(StageEnriching)
	enriched := make([]article.Enriched, 0, len(unique))
	for _, raw := range unique {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := p.build(ctx, raw)
		if err != nil {
			p.metrics.IncrementDropped()
			p.logger.Error("dropping article", "title", raw.Title, "url", raw.URL, "error", err)
			continue
		}
		enriched = append(enriched, item)
	}

	p.stage(StagePersisting)
	if err := p.persister.Persist(ctx, enriched); err != nil {
		return nil, err
	}
	p.metrics.AddPersisted(len(enriched))

	p.stage(StageDone)
	p.logger.Info("run complete", "persisted", len(enriched), "took", p.now().Sub(started).Round(time.Millisecond))
	return enriched, nil
}

func (p *Pipeline) stage(name string) {
	p.logger.Debug("stage", "stage", name)
}

// collect fans out over sources with at most MaxConcurrent fetches in flight.
// Results keep source order.
func (p *Pipeline) collect(ctx context.Context) ([]article.Raw, error) {
	perSource := make([][]article.Raw, len(p.opts.Sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.MaxConcurrent)
	for i, src := range p.opts.Sources {
		g.Go(func() error {
			perSource[i] = p.collector.Collect(gctx, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []article.Raw
	for i, items := range perSource {
		if len(items) == 0 {
			p.metrics.AddSourcesEmpty(1)
			p.logger.Debug("source yielded nothing", "source", p.opts.Sources[i].ID)
		}
		out = append(out, items...)
	}
	return out, nil
}

// build enriches one article, falling back to heuristics when the model gave up.
func (p *Pipeline) build(ctx context.Context, raw article.Raw) (item article.Enriched, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &BuildError{Title: raw.Title, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload := buildPayload(raw)
	item = article.Enriched{
		Raw:        raw,
		DocumentID: store.DocumentID(raw.Hash),
		Summary:    payload.Summary,
		ReadTime:   textutil.ReadTime(raw.ContentText),
	}
	item.Title = payload.Title

	res, err := p.enricher.Enrich(ctx, payload)
	var enrichErr *enrich.Error
	switch {
	case err == nil:
		summary := res.Summary
		item.AutoSummary = &summary
		item.KeyPoints = res.KeyPoints
		if len(res.Tags) > 0 {
			item.Tags = res.Tags
		}
		item.Category = category.Ensure(res.Category, payload.Title, payload.Summary, raw.ContentText)
		item.Translations = res.Translations
		item.EnrichedBy = p.enricher.ModelID()
		p.metrics.IncrementEnriched()
	case errors.As(err, &enrichErr):
		if errors.Is(err, enrich.ErrNotConfigured) {
			p.logger.Debug("no model configured, using heuristics", "title", payload.Title)
		} else {
			p.logger.Warn("enrichment failed, using heuristics", "title", payload.Title, "attempts", enrichErr.Attempts, "error", enrichErr.Cause)
		}
		item.Category = category.Heuristic(payload.Title, payload.Summary, raw.ContentText)
		p.metrics.IncrementFallbacks()
	default:
		return article.Enriched{}, &BuildError{Title: raw.Title, Cause: err}
	}

	if item.KeyPoints == nil {
		item.KeyPoints = []string{}
	}
	if item.Translations == nil {
		item.Translations = map[string]article.Translation{}
	}

	now := p.now()
	if item.CreatedAt == nil {
		item.CreatedAt = &now
	}
	item.UpdatedAt = now
	return item, nil
}

func buildPayload(raw article.Raw) enrich.Payload {
	summary := textutil.NormalizeWhitespace(raw.Summary)
	if summary == "" {
		summary = textutil.Truncate(textutil.NormalizeWhitespace(raw.ContentText), SummaryFallbackRunes)
	}
	return enrich.Payload{
		Title:       strings.TrimSpace(raw.Title),
		Summary:     summary,
		Content:     raw.ContentText,
		URL:         raw.URL,
		Source:      raw.SourceName,
		Language:    raw.Language,
		PublishedAt: raw.PublishedAt,
		Tags:        raw.Tags,
		ContentHash: raw.Hash,
	}
}
