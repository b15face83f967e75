package enrich

import (
	"context"
	"errors"

	"github.com/nara-digital/newsingest/internal/cache"
)

// Cached reuses results for articles already enriched by the same model,
// keyed by content hash. Payloads without a hash are never cached.
type Cached struct {
	next  Enricher
	cache *cache.Cache[*Result]
}

var _ Enricher = (*Cached)(nil)

func NewCached(next Enricher, c *cache.Cache[*Result]) *Cached {
	return &Cached{next: next, cache: c}
}

func (c *Cached) ModelID() string {
	return c.next.ModelID()
}

func (c *Cached) Enrich(ctx context.Context, p Payload) (*Result, error) {
	if p.ContentHash == "" {
		return c.next.Enrich(ctx, p)
	}

	key := cache.Key(c.next.ModelID(), p.ContentHash)
	if res, ok := c.cache.Get(key); ok {
		return res, nil
	}

	res, err := c.next.Enrich(ctx, p)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, res)
	return res, nil
}

// ErrNotConfigured is the cause reported by Unavailable.
var ErrNotConfigured = errors.New("no enrichment model configured")

// Unavailable fails every call, sending all articles down the heuristic path.
type Unavailable struct{}

var _ Enricher = Unavailable{}

func (Unavailable) ModelID() string { return "" }

func (Unavailable) Enrich(context.Context, Payload) (*Result, error) {
	return nil, &Error{Cause: ErrNotConfigured}
}
