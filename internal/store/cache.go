package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// SeenCache wraps a Store with an in-process LRU of recently seen external
// ids so repeat observations within a process skip the database round-trip.
// The unique constraint in the underlying store still owns correctness;
// this is purely a fast path.
type SeenCache struct {
	inner scrape.Store
	seen  *lru.Cache[string, struct{}]
}

// NewSeenCache wraps inner with an LRU of the given size.
func NewSeenCache(inner scrape.Store, size int) (*SeenCache, error) {
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, err
	}
	return &SeenCache{inner: inner, seen: cache}, nil
}

// CreateRun delegates to the wrapped store.
func (c *SeenCache) CreateRun(ctx context.Context, query string, startedAt time.Time, maxItems int) (scrape.SearchRun, error) {
	return c.inner.CreateRun(ctx, query, startedAt, maxItems)
}

// SetExpectedTotal delegates to the wrapped store.
func (c *SeenCache) SetExpectedTotal(ctx context.Context, runID string, total int) error {
	return c.inner.SetExpectedTotal(ctx, runID, total)
}

// Ingest short-circuits external ids already seen by this process, and
// remembers ids the wrapped store accepted or recognized as duplicates.
func (c *SeenCache) Ingest(ctx context.Context, runID string, fields scrape.ListingFields) (scrape.IngestOutcome, error) {
	if _, ok := c.seen.Get(fields.ExternalID); ok {
		return scrape.OutcomeSkippedDuplicate, nil
	}
	outcome, err := c.inner.Ingest(ctx, runID, fields)
	if err != nil {
		return outcome, err
	}
	c.seen.Add(fields.ExternalID, struct{}{})
	return outcome, nil
}

// GetRun delegates to the wrapped store.
func (c *SeenCache) GetRun(ctx context.Context, runID string) (scrape.SearchRun, error) {
	return c.inner.GetRun(ctx, runID)
}

// ListRuns delegates to the wrapped store.
func (c *SeenCache) ListRuns(ctx context.Context) ([]scrape.SearchRun, error) {
	return c.inner.ListRuns(ctx)
}

// Close closes the wrapped store.
func (c *SeenCache) Close() error {
	return c.inner.Close()
}
