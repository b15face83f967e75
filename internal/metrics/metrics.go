package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	Runs                int64
	SourcesEmpty        int64
	ArticlesCollected   int64
	DuplicatesFiltered  int64
	ArticlesEnriched    int64
	EnrichmentFallbacks int64
	ArticlesDropped     int64
	ArticlesPersisted   int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	TotalRunDuration   time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

func New() *Metrics {
	return &Metrics{IsHealthy: true}
}

func (m *Metrics) AddSourcesEmpty(n int) {
	m.add(&m.SourcesEmpty, n)
}

func (m *Metrics) AddCollected(n int) {
	m.add(&m.ArticlesCollected, n)
}

func (m *Metrics) AddDuplicates(n int) {
	m.add(&m.DuplicatesFiltered, n)
}

func (m *Metrics) IncrementEnriched() {
	m.add(&m.ArticlesEnriched, 1)
}

func (m *Metrics) IncrementFallbacks() {
	m.add(&m.EnrichmentFallbacks, 1)
}

func (m *Metrics) IncrementDropped() {
	m.add(&m.ArticlesDropped, 1)
}

func (m *Metrics) AddPersisted(n int) {
	m.add(&m.ArticlesPersisted, n)
}

func (m *Metrics) add(counter *int64, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter += int64(n)
}

func (m *Metrics) RecordRun(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Runs++
	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.Runs)
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"runs":                    m.Runs,
		"sources_empty":           m.SourcesEmpty,
		"articles_collected":      m.ArticlesCollected,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"articles_enriched":       m.ArticlesEnriched,
		"enrichment_fallbacks":    m.EnrichmentFallbacks,
		"articles_dropped":        m.ArticlesDropped,
		"articles_persisted":      m.ArticlesPersisted,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
