package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/crawl"
	"github.com/farahad-khurami/ebay-scraper/internal/extract"
	"github.com/farahad-khurami/ebay-scraper/internal/id/uuid"
	"github.com/farahad-khurami/ebay-scraper/internal/orchestrator"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store/memory"
)

// scriptedSession serves one fixed page per query and reports no next
// control, so every session completes after a single fetch.
type scriptedSession struct {
	html string
}

func (s *scriptedSession) Start(context.Context, string) scrape.FetchResult {
	return scrape.FetchResult{Status: scrape.FetchOK, HTML: s.html}
}

func (s *scriptedSession) NextPage(context.Context) scrape.FetchResult {
	return scrape.FetchResult{Status: scrape.FetchFatal}
}

func (s *scriptedSession) Reload(context.Context) scrape.FetchResult {
	return scrape.FetchResult{Status: scrape.FetchFatal}
}

func (s *scriptedSession) Close() error { return nil }

// countingFactory hands out a distinct session per call and remembers how
// many were created.
type countingFactory struct {
	mu       sync.Mutex
	sessions int
	html     func(n int) string
}

func (f *countingFactory) NewSession(context.Context) (scrape.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	return &scriptedSession{html: f.html(f.sessions)}, nil
}

type stoppedClock struct{}

func (stoppedClock) Now() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func itemPage(id string) string {
	return fmt.Sprintf(
		`<html><body><ul><li class="s-item" id="%s"><div class="s-item__title"><span>Item</span></div></li></ul></body></html>`,
		id)
}

func newController(store scrape.Store, factory scrape.SessionFactory) *crawl.Controller {
	pacing := crawl.PacingConfig{CheckpointMin: 1 << 20, CheckpointMax: 1 << 20}
	return crawl.New(
		store,
		factory,
		extract.NewExtractor(),
		extract.NewPageParser(extract.DefaultSelectors()),
		crawl.NewPacer(pacing, nil),
		nil,
		nil,
		stoppedClock{},
		crawl.Config{},
		zap.NewNop(),
	)
}

func TestOrchestrator_RunsOneSessionPerQuery(t *testing.T) {
	t.Parallel()

	store := memory.New(uuid.NewGenerator())
	factory := &countingFactory{html: func(n int) string {
		return itemPage(fmt.Sprintf("item%d", n))
	}}
	o := orchestrator.New(newController(store, factory), orchestrator.Config{}, zap.NewNop())

	jobs := []orchestrator.QueryJob{
		{Query: "lego castle"},
		{Query: "vintage camera"},
		{Query: "record player"},
	}
	results, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, jobs[i], r.Job, "results keep worklist order")
		require.NoError(t, r.Err)
		assert.Equal(t, crawl.StateCompleted, r.State.State)
		assert.Equal(t, 1, r.State.Scraped)
	}
	assert.Equal(t, 3, factory.sessions, "one isolated fetch session per query")

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestOrchestrator_AbortedSessionDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	store := memory.New(uuid.NewGenerator())
	factory := &countingFactory{html: func(n int) string {
		return itemPage(fmt.Sprintf("item%d", n))
	}}
	o := orchestrator.New(newController(store, factory), orchestrator.Config{}, zap.NewNop())

	results, err := o.Run(context.Background(), []orchestrator.QueryJob{
		{Query: ""},
		{Query: "lego"},
	})
	require.Error(t, err, "first failure surfaces to the caller")
	require.Len(t, results, 2)

	assert.ErrorIs(t, results[0].Err, crawl.ErrMissingQuery)
	require.NoError(t, results[1].Err)
	assert.Equal(t, crawl.StateCompleted, results[1].State.State)
}

func TestOrchestrator_BoundedConcurrency(t *testing.T) {
	t.Parallel()

	store := memory.New(uuid.NewGenerator())
	factory := &countingFactory{html: func(n int) string {
		return itemPage(fmt.Sprintf("item%d", n))
	}}
	o := orchestrator.New(newController(store, factory), orchestrator.Config{Concurrency: 2}, zap.NewNop())

	jobs := make([]orchestrator.QueryJob, 6)
	for i := range jobs {
		jobs[i] = orchestrator.QueryJob{Query: fmt.Sprintf("query %d", i)}
	}
	results, err := o.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.Equal(t, 6, factory.sessions)
}
