package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "test.db"))
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.MaxArticlesPerSource)
	assert.Equal(t, 7, cfg.LookbackDays)
	assert.Equal(t, []string{"si", "ta"}, cfg.TargetLanguages)
	assert.Equal(t, 2, cfg.EnrichRetries)
	assert.Equal(t, 4, cfg.MaxConcurrentRequests)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.NotEmpty(t, cfg.Sources)
	assert.Contains(t, cfg.AllowedSources, "dailynews.lk")
	assert.Contains(t, cfg.LocalRelevanceKeywords, "fisheries")
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "UTC", cfg.Location.String())
}

func TestLoadEnvOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAX_ARTICLES_PER_SOURCE", "3")
	t.Setenv("LOOKBACK_DAYS", "2")
	t.Setenv("TARGET_LANGUAGES", "si, ta ,en")
	t.Setenv("ENRICH_TIMEOUT", "45")
	t.Setenv("ENRICH_RETRY_DELAY", "500ms")
	t.Setenv("ENRICH_RETRY_BACKOFF", "true")
	t.Setenv("ALLOWED_SOURCES", "")
	t.Setenv("LOCAL_RELEVANCE_KEYWORDS", "nara,ocean")
	t.Setenv("FETCH_FULL_ARTICLE", "true")
	t.Setenv("GEMINI_TEMPERATURE", "0.7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxArticlesPerSource)
	assert.Equal(t, 2, cfg.LookbackDays)
	assert.Equal(t, []string{"si", "ta", "en"}, cfg.TargetLanguages)
	assert.Equal(t, 45*time.Second, cfg.EnrichTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.EnrichRetryDelay)
	assert.True(t, cfg.EnrichBackoff)
	assert.Empty(t, cfg.AllowedSources, "blank variable clears the allow-list")
	assert.Equal(t, []string{"nara", "ocean"}, cfg.LocalRelevanceKeywords)
	assert.True(t, cfg.FetchFullArticle)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"zero lookback", map[string]string{"LOOKBACK_DAYS": "0"}},
		{"bad safety", map[string]string{"GEMINI_SAFETY_THRESHOLD": "extreme"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"no languages", map[string]string{"TARGET_LANGUAGES": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadSourcesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
allowedSources: [example.lk]
sources:
  - id: test
    name: Test Feed
    url: https://example.lk/rss
    language: en
    topicFilters: [fisheries]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	sf, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sf.Sources, 1)
	assert.Equal(t, "test", sf.Sources[0].ID)
	assert.Equal(t, []string{"fisheries"}, sf.Sources[0].TopicFilters)
	assert.Equal(t, []string{"example.lk"}, sf.AllowedSources)
	assert.Empty(t, sf.LocalRelevanceKeywords)
}

func TestLoadSourcesRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feeds:\n  - https://x\n"), 0o600))

	_, err := LoadSources(path)
	assert.Error(t, err)
}

func TestDuplicateSourceIDs(t *testing.T) {
	setBaseEnv(t)
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := `
sources:
  - {id: a, name: A, url: "https://a.lk/rss", language: en}
  - {id: a, name: B, url: "https://b.lk/rss", language: en}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("SOURCES_CONFIG_PATH", path)

	_, err := Load()
	assert.ErrorContains(t, err, "duplicate source id")
}
