// Package monitor serves run health and counters over HTTP.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nara-digital/newsingest/internal/metrics"
	"github.com/nara-digital/newsingest/internal/ratelimit"
)

// NewRouter returns a gin engine with /health and /metrics. budget may be nil.
func NewRouter(m *metrics.Metrics, budget *ratelimit.Budget, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("monitor request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	})

	r.GET("/health", func(c *gin.Context) {
		stats := m.GetStats()

		status, code := "ok", http.StatusOK
		if !m.Healthy() {
			status, code = "error", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":     status,
			"last_run":   stats["last_run_time"],
			"last_error": stats["last_error"],
		})
	})

	r.GET("/metrics", func(c *gin.Context) {
		stats := m.GetStats()
		if budget != nil {
			stats["enrichment_budget"] = budget.GetStats()
		}
		c.JSON(http.StatusOK, stats)
	})

	return r
}

// Serve runs the monitoring server until ctx is cancelled.
func Serve(ctx context.Context, addr string, m *metrics.Metrics, budget *ratelimit.Budget, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "monitor")

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(m, budget, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting monitoring server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitoring server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
