package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nara-digital/newsingest/internal/logger"
	"github.com/nara-digital/newsingest/internal/metrics"
	"github.com/nara-digital/newsingest/internal/ratelimit"
)

func get(t *testing.T, m *metrics.Metrics, b *ratelimit.Budget, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	NewRouter(m, b, logger.Discard()).ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthOK(t *testing.T) {
	m := metrics.New()
	m.SetLastRun()

	w, body := get(t, m, nil, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestHealthAfterFailedRun(t *testing.T) {
	m := metrics.New()
	m.SetError("persist 3 documents: db down")

	w, body := get(t, m, nil, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "persist 3 documents: db down", body["last_error"])
}

func TestMetricsCounters(t *testing.T) {
	m := metrics.New()
	m.AddCollected(7)
	m.AddDuplicates(2)
	m.AddPersisted(5)

	w, body := get(t, m, nil, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 7, body["articles_collected"])
	assert.EqualValues(t, 2, body["duplicates_filtered"])
	assert.EqualValues(t, 5, body["articles_persisted"])
	assert.NotContains(t, body, "enrichment_budget")
}

func TestMetricsIncludesEnrichmentBudget(t *testing.T) {
	b := ratelimit.NewBudget(100, 0, 24*time.Hour, logger.Discard())
	require.NoError(t, b.Acquire(context.Background()))
	require.NoError(t, b.Acquire(context.Background()))

	_, body := get(t, metrics.New(), b, "/metrics")
	budget, ok := body["enrichment_budget"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2, budget["used"])
	assert.EqualValues(t, 100, budget["limit"])
	assert.NotEmpty(t, budget["reset_time"])
}
