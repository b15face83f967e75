package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrBudgetExhausted is returned once the request budget for the current window is used up.
var ErrBudgetExhausted = errors.New("enrichment request budget exhausted")

// Budget caps model requests per window and optionally paces them.
type Budget struct {
	mu        sync.Mutex
	used      int
	max       int // 0 = unlimited
	window    time.Duration
	resetTime time.Time
	limiter   *rate.Limiter
	now       func() time.Time
	logger    *slog.Logger
}

// NewBudget allows max requests per window (0 = unlimited) and at most perMinute
// requests per minute (0 = no pacing).
func NewBudget(max, perMinute int, window time.Duration, logger *slog.Logger) *Budget {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Budget{
		max:    max,
		window: window,
		now:    time.Now,
		logger: logger.With("component", "ratelimit"),
	}
	if perMinute > 0 {
		b.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	b.resetTime = b.now().Add(window)
	return b
}

// Acquire waits for the pacing limiter if configured, then reserves one
// request. A wait that ends with ctx does not spend budget.
func (b *Budget) Acquire(ctx context.Context) error {
	if b.exhausted() {
		return ErrBudgetExhausted
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return b.take()
}

func (b *Budget) exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkReset()
	return b.max > 0 && b.used >= b.max
}

func (b *Budget) take() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.checkReset()

	if b.max > 0 && b.used >= b.max {
		b.logger.Warn("enrichment budget reached", "used", b.used, "limit", b.max)
		return ErrBudgetExhausted
	}
	b.used++
	b.logger.Debug("enrichment budget", "used", b.used, "limit", b.max)
	return nil
}

// GetStats is served under /metrics.
func (b *Budget) GetStats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"used":       b.used,
		"limit":      b.max,
		"reset_time": b.resetTime.Format(time.RFC3339),
	}
}

func (b *Budget) checkReset() {
	if b.window > 0 && b.now().After(b.resetTime) {
		b.logger.Info("resetting enrichment budget", "used", b.used)
		b.used = 0
		b.resetTime = b.now().Add(b.window)
	}
}
