package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/category"
	"github.com/nara-digital/newsingest/internal/enrich"
	"github.com/nara-digital/newsingest/internal/logger"
	"github.com/nara-digital/newsingest/internal/metrics"
	"github.com/nara-digital/newsingest/internal/store"
)

type fakeCollector struct {
	items    map[string][]article.Raw
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeCollector) Collect(ctx context.Context, src article.Source) []article.Raw {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.items[src.ID]
}

type fakeEnricher struct {
	mu    sync.Mutex
	calls []enrich.Payload
	fn    func(enrich.Payload) (*enrich.Result, error)
}

func (f *fakeEnricher) ModelID() string { return "fake-model" }

func (f *fakeEnricher) Enrich(_ context.Context, p enrich.Payload) (*enrich.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()
	return f.fn(p)
}

type fakePersister struct {
	calls [][]article.Enriched
	err   error
}

func (f *fakePersister) Persist(_ context.Context, items []article.Enriched) error {
	f.calls = append(f.calls, items)
	return f.err
}

// timeoutModel never answers before the per-attempt deadline.
type timeoutModel struct {
	calls atomic.Int32
}

func (m *timeoutModel) Name() string { return "timeout-model" }

func (m *timeoutModel) Generate(ctx context.Context, _ enrich.Request) (*enrich.Response, error) {
	m.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func raw(id, title, text string) article.Raw {
	return article.Raw{
		URL:         "https://example.lk/" + id,
		Title:       title,
		ContentText: text,
		SourceID:    "example",
		SourceName:  "Example",
	}
}

func okResult(p enrich.Payload) (*enrich.Result, error) {
	return &enrich.Result{
		Summary:      "Generated: " + p.Title,
		Category:     "fisheries",
		KeyPoints:    []string{"point"},
		Tags:         []string{"fishing"},
		Translations: map[string]article.Translation{"si": {Title: "si title", Summary: "si summary"}},
	}, nil
}

func newTestPipeline(sources []string, c Collector, e enrich.Enricher, p Persister) *Pipeline {
	src := make([]article.Source, 0, len(sources))
	for _, id := range sources {
		src = append(src, article.Source{ID: id, Name: id, URL: "https://" + id + ".lk/rss", Language: "en"})
	}
	pl := New(Options{Sources: src, MaxConcurrent: 2}, c, e, p, metrics.New(), logger.Discard())
	pl.now = func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) }
	return pl
}

func TestRunEnrichesAndPersists(t *testing.T) {
	collector := &fakeCollector{items: map[string][]article.Raw{
		"a": {raw("1", "  Fishing ban lifted  ", "Fishermen return to sea after the monsoon ban.")},
		"b": {raw("2", "Harbour expansion", "The port authority approved a new harbour berth.")},
	}}
	enricher := &fakeEnricher{fn: okResult}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a", "b"}, collector, enricher, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, persister.calls, 1)
	assert.Equal(t, out, persister.calls[0])

	first := out[0]
	assert.Equal(t, "Fishing ban lifted", first.Title)
	require.NotNil(t, first.AutoSummary)
	assert.Equal(t, "Generated: Fishing ban lifted", *first.AutoSummary)
	assert.Equal(t, "Fisheries", first.Category)
	assert.Equal(t, []string{"fishing"}, first.Tags)
	assert.Equal(t, "fake-model", first.EnrichedBy)
	assert.Equal(t, store.DocumentID(first.Hash), first.DocumentID)
	assert.Len(t, first.DocumentID, 32)
	require.NotNil(t, first.CreatedAt)
	assert.Equal(t, pl.now(), first.UpdatedAt)
	assert.Equal(t, 1, first.ReadTime)

	stats := pl.metrics.GetStats()
	assert.EqualValues(t, 2, stats["articles_enriched"])
	assert.EqualValues(t, 2, stats["articles_persisted"])
}

func TestRunFallsBackWhenEnrichmentTimesOut(t *testing.T) {
	model := &timeoutModel{}
	client := enrich.NewClient(model, nil, enrich.Options{
		Timeout:    10 * time.Millisecond,
		Retries:    1,
		RetryDelay: time.Millisecond,
	}, logger.Discard())

	item := raw("1", "Tsunami warning issued for coastal districts", "The disaster management centre issued an evacuation order.")
	collector := &fakeCollector{items: map[string][]article.Raw{"a": {item}}}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a"}, collector, client, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 2, model.calls.Load())
	require.Len(t, persister.calls, 1)
	require.Len(t, out, 1)

	got := out[0]
	assert.Nil(t, got.AutoSummary)
	assert.Equal(t, category.Heuristic(got.Title, got.Summary, got.ContentText), got.Category)
	assert.Equal(t, "Disaster Management", got.Category)
	assert.NotNil(t, got.Translations)
	assert.Empty(t, got.Translations)
	assert.NotNil(t, got.KeyPoints)
	assert.Empty(t, got.KeyPoints)
	assert.Empty(t, got.EnrichedBy)

	doc := store.NewDocument(got, pl.now())
	assert.Equal(t, category.ClassifierName, doc.IngestionMetadata.Classifier)
}

func TestRunKeepsExistingCreatedAt(t *testing.T) {
	created := time.Date(2024, 4, 28, 14, 30, 0, 0, time.UTC)
	withDate := raw("1", "Dolphin pod sighted off Kalpitiya", "Whale and dolphin watching season opens.")
	withDate.CreatedAt = &created

	collector := &fakeCollector{items: map[string][]article.Raw{
		"a": {withDate, raw("2", "Beach clean-up", "Volunteers cleared plastic waste.")},
	}}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a"}, collector, &fakeEnricher{fn: okResult}, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	require.NotNil(t, out[0].CreatedAt)
	assert.Equal(t, created, *out[0].CreatedAt)
	assert.Equal(t, pl.now(), out[0].UpdatedAt)

	require.NotNil(t, out[1].CreatedAt)
	assert.Equal(t, pl.now(), *out[1].CreatedAt, "missing createdAt defaults to the run time")
}

func TestRunWithoutModelUsesHeuristics(t *testing.T) {
	collector := &fakeCollector{items: map[string][]article.Raw{
		"a": {raw("1", "New aquaculture farms for shrimp", "Shrimp farming expands in the lagoon.")},
	}}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a"}, collector, enrich.Unavailable{}, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Aquaculture", out[0].Category)
	assert.Nil(t, out[0].AutoSummary)
}

func TestRunEmptyCollectionShortCircuits(t *testing.T) {
	collector := &fakeCollector{items: map[string][]article.Raw{}}
	enricher := &fakeEnricher{fn: okResult}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a", "b"}, collector, enricher, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Empty(t, enricher.calls)
	assert.Empty(t, persister.calls)
	assert.EqualValues(t, 2, pl.metrics.GetStats()["sources_empty"])
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	dup := raw("1", "Same story", "Same body text")
	other := dup
	other.Title = "SAME   story"
	other.SourceID = "b"

	collector := &fakeCollector{items: map[string][]article.Raw{
		"a": {dup},
		"b": {other, raw("2", "Different story", "Another body")},
	}}
	enricher := &fakeEnricher{fn: okResult}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a", "b"}, collector, enricher, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "example", out[0].SourceID, "first occurrence wins")
	assert.Len(t, enricher.calls, 2)
	assert.EqualValues(t, 1, pl.metrics.GetStats()["duplicates_filtered"])
}

func TestRunDropsArticlesThatFailToBuild(t *testing.T) {
	collector := &fakeCollector{items: map[string][]article.Raw{
		"a": {
			raw("1", "boom", "panics while enriching"),
			raw("2", "broken", "returns an unexpected error"),
			raw("3", "fine", "enriches normally"),
		},
	}}
	enricher := &fakeEnricher{fn: func(p enrich.Payload) (*enrich.Result, error) {
		switch p.Title {
		case "boom":
			panic("nil map")
		case "broken":
			return nil, errors.New("unexpected")
		}
		return okResult(p)
	}}
	persister := &fakePersister{}

	pl := newTestPipeline([]string{"a"}, collector, enricher, persister)
	out, err := pl.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fine", out[0].Title)
	assert.EqualValues(t, 2, pl.metrics.GetStats()["articles_dropped"])
}

func TestBuildErrorWrapsCause(t *testing.T) {
	cause := errors.New("bad input")
	err := error(&BuildError{Title: "x", Cause: cause})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestRunPropagatesPersistenceError(t *testing.T) {
	collector := &fakeCollector{items: map[string][]article.Raw{"a": {raw("1", "t", "b")}}}
	persister := &fakePersister{err: &store.PersistenceError{Count: 1, Cause: errors.New("db down")}}

	pl := newTestPipeline([]string{"a"}, collector, &fakeEnricher{fn: okResult}, persister)
	out, err := pl.Run(context.Background())
	assert.Nil(t, out)

	var pe *store.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pl.metrics.Healthy())
}

func TestCollectBoundedAndOrdered(t *testing.T) {
	items := map[string][]article.Raw{}
	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for i, id := range ids {
		items[id] = []article.Raw{raw(id, fmt.Sprintf("story %d", i), "body")}
	}
	collector := &fakeCollector{items: items, delay: 20 * time.Millisecond}

	pl := newTestPipeline(ids, collector, &fakeEnricher{fn: okResult}, &fakePersister{})
	out, err := pl.collect(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i, it := range out {
		assert.Equal(t, fmt.Sprintf("story %d", i), it.Title)
	}
	assert.LessOrEqual(t, collector.peak.Load(), int32(2))
}

func TestBuildPayloadSummaryFallback(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "word "
	}
	p := buildPayload(article.Raw{Title: " Title ", ContentText: long})
	assert.Equal(t, "Title", p.Title)
	assert.Len(t, []rune(p.Summary), SummaryFallbackRunes)

	p = buildPayload(article.Raw{Title: "T", Summary: "  feed   summary ", ContentText: long})
	assert.Equal(t, "feed summary", p.Summary)
}
