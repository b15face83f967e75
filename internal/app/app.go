// Package app wires configuration into a runnable ingestion pipeline.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/cache"
	"github.com/nara-digital/newsingest/internal/category"
	"github.com/nara-digital/newsingest/internal/collect"
	"github.com/nara-digital/newsingest/internal/config"
	"github.com/nara-digital/newsingest/internal/enrich"
	"github.com/nara-digital/newsingest/internal/metrics"
	"github.com/nara-digital/newsingest/internal/monitor"
	"github.com/nara-digital/newsingest/internal/pipeline"
	"github.com/nara-digital/newsingest/internal/ratelimit"
	"github.com/nara-digital/newsingest/internal/store"
)

// App owns every long-lived client. Build it once with New and Close it on exit.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	db       *sql.DB
	budget   *ratelimit.Budget // nil without a model
	pipeline *pipeline.Pipeline
	closers  []func() error
	stop     context.CancelFunc
}

// New connects to the store, applies migrations and builds the pipeline.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{cfg: cfg, logger: logger, metrics: metrics.New()}

	bg, stop := context.WithCancel(context.Background())
	a.stop = stop

	db, dialect, err := OpenStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	version, dirty, err := store.Migrate(db, dialect)
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("store ready", "driver", dialect, "schema_version", version, "dirty", dirty)

	enricher, err := a.buildEnricher(ctx, bg)
	if err != nil {
		a.Close()
		return nil, err
	}

	collector := collect.New(
		collect.NewHTTPClient(cfg.FetchTimeout, cfg.MaxRedirects),
		collect.Options{
			MaxArticlesPerSource:   cfg.MaxArticlesPerSource,
			LookbackDays:           cfg.LookbackDays,
			AllowedDomains:         cfg.AllowedSources,
			LocalRelevanceKeywords: cfg.LocalRelevanceKeywords,
			FetchFullArticle:       cfg.FetchFullArticle,
			Location:               cfg.Location,
			UserAgent:              cfg.UserAgent,
		},
		logger,
	)

	a.pipeline = pipeline.New(
		pipeline.Options{Sources: cfg.Sources, MaxConcurrent: cfg.MaxConcurrentRequests},
		collector,
		enricher,
		store.NewWriter(store.NewSQLStore(db, dialect), logger),
		a.metrics,
		logger,
	)
	return a, nil
}

// buildEnricher returns the Gemini client, or Unavailable when no key is set.
func (a *App) buildEnricher(ctx, bg context.Context) (enrich.Enricher, error) {
	cfg := a.cfg
	if cfg.GeminiAPIKey == "" {
		a.logger.Warn("GEMINI_API_KEY not set, every article will use heuristic enrichment")
		return enrich.Unavailable{}, nil
	}

	model, err := enrich.NewGeminiModel(ctx, cfg.GeminiAPIKey, enrich.GeminiConfig{
		Model:           cfg.Model,
		Temperature:     float32(cfg.Temperature),
		SafetyThreshold: cfg.SafetyThreshold,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, model.Close)

	a.budget = ratelimit.NewBudget(cfg.MaxEnrichRequests, cfg.EnrichPerMinute, 24*time.Hour, a.logger)
	client := enrich.NewClient(model, a.budget, enrich.Options{
		TargetLanguages: cfg.TargetLanguages,
		Categories:      category.Names(),
		Timeout:         cfg.EnrichTimeout,
		Retries:         cfg.EnrichRetries,
		RetryDelay:      cfg.EnrichRetryDelay,
		Backoff:         cfg.EnrichBackoff,
		MaxKeyPoints:    cfg.MaxKeyPoints,
	}, a.logger)

	if cfg.CacheTTL <= 0 {
		return client, nil
	}
	results := cache.New[*enrich.Result](cfg.CacheTTL)
	results.StartJanitor(bg, time.Hour)
	return enrich.NewCached(client, results), nil
}

// OpenStore opens the configured database without touching the schema.
func OpenStore(ctx context.Context, cfg *config.Config) (*sql.DB, store.Dialect, error) {
	dialect := store.Dialect(cfg.StoreDriver)
	dsn := cfg.DatabaseURL
	if dialect == store.SQLite {
		dsn = store.SQLiteDSN(cfg.SQLitePath)
	}
	db, err := store.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, "", err
	}
	return db, dialect, nil
}

func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// RunOnce executes a single pipeline pass.
func (a *App) RunOnce(ctx context.Context) ([]article.Enriched, error) {
	return a.pipeline.Run(ctx)
}

// Schedule runs immediately and then every ScheduleInterval until ctx is done.
// A failed run is logged and the schedule continues.
func (a *App) Schedule(ctx context.Context) error {
	if a.cfg.EnableMonitoring {
		go func() {
			if err := monitor.Serve(ctx, a.cfg.MonitorAddr, a.metrics, a.budget, a.logger); err != nil {
				a.logger.Error("monitoring server stopped", "error", err)
			}
		}()
	}

	ticker := time.NewTicker(a.cfg.ScheduleInterval)
	defer ticker.Stop()

	for {
		if _, err := a.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			a.logger.Error("scheduled run failed", "error", err)
		}

		a.logger.Info("next run scheduled", "in", a.cfg.ScheduleInterval)
		select {
		case <-ctx.Done():
			a.logger.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close: %w", errors.Join(errs...))
	}
	return nil
}
