// Package config loads pipeline settings from the environment and the sources file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nara-digital/newsingest/internal/article"
)

type Config struct {
	// Gemini settings
	GeminiAPIKey      string
	Model             string        `validate:"required"`
	Temperature       float64       `validate:"gte=0,lte=2"`
	SafetyThreshold   string        `validate:"oneof=none low medium high"`
	EnrichTimeout     time.Duration `validate:"gt=0"`
	EnrichRetries     int           `validate:"gte=0,lte=5"`
	EnrichRetryDelay  time.Duration `validate:"gte=0"`
	EnrichBackoff     bool          // linear backoff between attempts
	MaxEnrichRequests int           `validate:"gte=0"` // per day, 0 = unlimited
	EnrichPerMinute   int           `validate:"gte=0"` // 0 = no pacing
	MaxKeyPoints      int           `validate:"gt=0"`
	TargetLanguages   []string      `validate:"min=1,dive,alpha,min=2,max=3"`

	// Feed settings
	SourcesConfigPath      string
	Sources                []article.Source `validate:"min=1,dive"`
	AllowedSources         []string
	LocalRelevanceKeywords []string
	MaxArticlesPerSource   int           `validate:"gt=0"`
	LookbackDays           int           `validate:"gt=0"`
	MaxConcurrentRequests  int           `validate:"gt=0"`
	FetchTimeout           time.Duration `validate:"gt=0"`
	MaxRedirects           int           `validate:"gte=0"`
	FetchFullArticle       bool
	UserAgent              string `validate:"required"`
	Timezone               string `validate:"required"`

	// Store settings
	StoreDriver string `validate:"oneof=postgres sqlite"`
	DatabaseURL string `validate:"required_if=StoreDriver postgres"`
	SQLitePath  string `validate:"required_if=StoreDriver sqlite"`

	// App settings
	Debug            bool
	LogFormat        string        `validate:"oneof=text json"`
	CacheTTL         time.Duration `validate:"gte=0"`
	ScheduleInterval time.Duration `validate:"gt=0"`
	EnableMonitoring bool
	MonitorAddr      string

	Location *time.Location `validate:"-"`
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		Model:                 "gemini-1.5-flash",
		Temperature:           0.2,
		SafetyThreshold:       "medium",
		EnrichTimeout:         30 * time.Second,
		EnrichRetries:         2,
		EnrichRetryDelay:      2 * time.Second,
		MaxKeyPoints:          5,
		TargetLanguages:       []string{"si", "ta"},
		MaxArticlesPerSource:  12,
		LookbackDays:          7,
		MaxConcurrentRequests: 4,
		FetchTimeout:          20 * time.Second,
		MaxRedirects:          5,
		UserAgent:             "newsingest/1.0 (+https://www.nara.ac.lk)",
		Timezone:              "UTC",
		StoreDriver:           "postgres",
		SQLitePath:            "newsingest.db",
		LogFormat:             "text",
		CacheTTL:              24 * time.Hour,
		ScheduleInterval:      6 * time.Hour,
		MonitorAddr:           ":8080",
	}

	// Gemini settings
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.Model = getEnvOrDefault("GEMINI_MODEL", cfg.Model)
	cfg.Temperature = getEnvFloatOrDefault("GEMINI_TEMPERATURE", cfg.Temperature)
	cfg.SafetyThreshold = strings.ToLower(getEnvOrDefault("GEMINI_SAFETY_THRESHOLD", cfg.SafetyThreshold))
	cfg.EnrichTimeout = getEnvDurationOrDefault("ENRICH_TIMEOUT", cfg.EnrichTimeout)
	cfg.EnrichRetries = getEnvIntOrDefault("ENRICH_RETRIES", cfg.EnrichRetries)
	cfg.EnrichRetryDelay = getEnvDurationOrDefault("ENRICH_RETRY_DELAY", cfg.EnrichRetryDelay)
	cfg.EnrichBackoff = os.Getenv("ENRICH_RETRY_BACKOFF") == "true"
	cfg.MaxEnrichRequests = getEnvIntOrDefault("MAX_ENRICH_REQUESTS", cfg.MaxEnrichRequests)
	cfg.EnrichPerMinute = getEnvIntOrDefault("ENRICH_PER_MINUTE", cfg.EnrichPerMinute)
	cfg.MaxKeyPoints = getEnvIntOrDefault("MAX_KEY_POINTS", cfg.MaxKeyPoints)
	cfg.TargetLanguages = getEnvListOrDefault("TARGET_LANGUAGES", cfg.TargetLanguages)

	// Feed settings
	cfg.SourcesConfigPath = os.Getenv("SOURCES_CONFIG_PATH")
	cfg.MaxArticlesPerSource = getEnvIntOrDefault("MAX_ARTICLES_PER_SOURCE", cfg.MaxArticlesPerSource)
	cfg.LookbackDays = getEnvIntOrDefault("LOOKBACK_DAYS", cfg.LookbackDays)
	cfg.MaxConcurrentRequests = getEnvIntOrDefault("MAX_CONCURRENT_REQUESTS", cfg.MaxConcurrentRequests)
	cfg.FetchTimeout = getEnvDurationOrDefault("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.MaxRedirects = getEnvIntOrDefault("MAX_REDIRECTS", cfg.MaxRedirects)
	cfg.FetchFullArticle = os.Getenv("FETCH_FULL_ARTICLE") == "true"
	cfg.UserAgent = getEnvOrDefault("USER_AGENT", cfg.UserAgent)
	cfg.Timezone = getEnvOrDefault("TIMEZONE", cfg.Timezone)

	// Store settings
	cfg.StoreDriver = strings.ToLower(getEnvOrDefault("STORE_DRIVER", cfg.StoreDriver))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.SQLitePath = getEnvOrDefault("SQLITE_PATH", cfg.SQLitePath)

	// App settings
	cfg.Debug = os.Getenv("DEBUG") == "true"
	cfg.LogFormat = strings.ToLower(getEnvOrDefault("LOG_FORMAT", cfg.LogFormat))
	cfg.CacheTTL = time.Duration(getEnvIntOrDefault("CACHE_TTL_HOURS", int(cfg.CacheTTL/time.Hour))) * time.Hour
	cfg.ScheduleInterval = getEnvDurationOrDefault("SCHEDULE_INTERVAL", cfg.ScheduleInterval)
	cfg.EnableMonitoring = os.Getenv("ENABLE_HTTP_MONITORING") == "true"
	cfg.MonitorAddr = getEnvOrDefault("MONITOR_ADDR", cfg.MonitorAddr)

	sources, err := LoadSources(cfg.SourcesConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Sources = sources.Sources
	cfg.AllowedSources = getEnvListOrDefault("ALLOWED_SOURCES", sources.AllowedSources)
	cfg.LocalRelevanceKeywords = getEnvListOrDefault("LOCAL_RELEVANCE_KEYWORDS", sources.LocalRelevanceKeywords)

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("45s") or plain seconds ("45").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated variable. Set-but-blank means an empty list.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if seen[s.ID] {
			return fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}
