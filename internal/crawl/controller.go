// Package crawl implements the pagination state machine driving one crawl
// session: fetch, extract, ingest, paginate, with anti-ban pacing, bounded
// timeout recovery and diagnostic capture on abort.
package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/extract"
	"github.com/farahad-khurami/ebay-scraper/internal/metrics"
	"github.com/farahad-khurami/ebay-scraper/internal/normalize"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// State identifies a position in the session state machine.
type State int

// Session states.
const (
	StateInit State = iota
	StateFetchingFirstPage
	StateDiscoveringTotal
	StateProcessingPage
	StatePaginating
	StatePaused
	StateCompleted
	StateAborted
)

var stateNames = map[State]string{
	StateInit:              "init",
	StateFetchingFirstPage: "fetching_first_page",
	StateDiscoveringTotal:  "discovering_total",
	StateProcessingPage:    "processing_page",
	StatePaginating:        "paginating",
	StatePaused:            "paused",
	StateCompleted:         "completed",
	StateAborted:           "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// SessionState is the explicit state value threaded through every
// transition. Controllers hold no mutable per-session fields, so sessions
// are independent and testable in isolation.
type SessionState struct {
	State         State
	Run           scrape.SearchRun
	Query         string
	MaxItems      int
	Scraped       int
	PageNum       int
	CheckpointIdx int
	ExpectedTotal int

	page         extract.Page
	html         string
	itemIdx      int
	pendingPause time.Duration
}

// Config controls Controller behavior shared by all sessions.
type Config struct {
	// MaxPages caps pagination; the marketplace stops serving results
	// after roughly this many pages anyway.
	MaxPages int

	// RetryAttempts bounds reloads after a navigation timeout.
	RetryAttempts int

	// Topic, when set together with a publisher, receives one event per
	// inserted listing.
	Topic string

	// SnapshotPrefix is the path prefix for diagnostic page captures.
	SnapshotPrefix string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 200
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.SnapshotPrefix == "" {
		c.SnapshotPrefix = "snapshots"
	}
	return c
}

// Controller runs crawl sessions. One Controller serves many sessions; all
// per-session state lives in SessionState.
type Controller struct {
	store     scrape.Store
	sessions  scrape.SessionFactory
	extractor extract.Extractor
	parser    *extract.PageParser
	pacer     *Pacer
	publisher scrape.Publisher
	snapshots scrape.BlobStore
	clock     scrape.Clock
	sleep     func(ctx context.Context, d time.Duration) error
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Controller. publisher and snapshots may be nil, which
// disables event publishing and diagnostic capture respectively.
func New(
	store scrape.Store,
	sessions scrape.SessionFactory,
	extractor extract.Extractor,
	parser *extract.PageParser,
	pacer *Pacer,
	publisher scrape.Publisher,
	snapshots scrape.BlobStore,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		store:     store,
		sessions:  sessions,
		extractor: extractor,
		parser:    parser,
		pacer:     pacer,
		publisher: publisher,
		snapshots: snapshots,
		clock:     clock,
		sleep:     sleepContext,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// Run executes one crawl session for the query until a terminal state. The
// fetch session is released exactly once on every exit path. maxItems <= 0
// means unlimited.
func (c *Controller) Run(ctx context.Context, query string, maxItems int) (SessionState, error) {
	st := SessionState{State: StateInit, Query: query, MaxItems: maxItems}
	if strings.TrimSpace(query) == "" {
		st.State = StateAborted
		return st, ErrMissingQuery
	}

	metrics.SessionStarted()
	defer func() {
		metrics.SessionFinished(st.State.String())
	}()

	session, err := c.sessions.NewSession(ctx)
	if err != nil {
		st.State = StateAborted
		return st, fmt.Errorf("open fetch session: %w", err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if cerr := session.Close(); cerr != nil {
			c.logger.Warn("close fetch session", zap.String("query", query), zap.Error(cerr))
		}
	}
	defer release()

	st.State = StateFetchingFirstPage
	for {
		switch st.State {
		case StateFetchingFirstPage:
			st, err = c.fetchFirstPage(ctx, session, st)
		case StateDiscoveringTotal:
			st = c.discoverTotal(ctx, st)
		case StateProcessingPage:
			st = c.processPage(ctx, st)
		case StatePaginating:
			st, err = c.paginate(ctx, session, st)
		case StatePaused:
			st, err = c.pause(ctx, st)
		case StateCompleted:
			release()
			c.logger.Info("crawl session completed",
				zap.String("run_id", st.Run.ID),
				zap.String("query", st.Query),
				zap.Int("scraped", st.Scraped),
				zap.Int("pages", st.PageNum),
			)
			return st, nil
		case StateAborted:
			release()
			return st, err
		default:
			release()
			return st, fmt.Errorf("unexpected session state %d", st.State)
		}
	}
}

func (c *Controller) fetchFirstPage(ctx context.Context, session scrape.Session, st SessionState) (SessionState, error) {
	run, err := c.store.CreateRun(ctx, st.Query, c.clock.Now(), st.MaxItems)
	if err != nil {
		st.State = StateAborted
		return st, fmt.Errorf("create run: %w", err)
	}
	st.Run = run
	c.logger.Info("crawl session started",
		zap.String("run_id", run.ID),
		zap.String("query", st.Query),
		zap.Int("max_items", st.MaxItems),
	)

	res, err := c.resolveFetch(ctx, session, session.Start(ctx, st.Query))
	if err != nil {
		return c.abort(ctx, st, err)
	}
	return c.loadPage(ctx, st, res, StateDiscoveringTotal)
}

func (c *Controller) discoverTotal(ctx context.Context, st SessionState) SessionState {
	if total := st.page.TotalResults; total > 0 {
		if err := c.store.SetExpectedTotal(ctx, st.Run.ID, total); err != nil {
			c.logger.Warn("record expected total", zap.String("run_id", st.Run.ID), zap.Error(err))
		}
		st.ExpectedTotal = total
		c.logger.Info("discovered expected total",
			zap.String("run_id", st.Run.ID),
			zap.Int("expected_total", total),
		)
	}
	st.State = StateProcessingPage
	return st
}

func (c *Controller) processPage(ctx context.Context, st SessionState) SessionState {
	for st.itemIdx < len(st.page.Items) {
		if c.limitReached(st) {
			st.State = StateCompleted
			return st
		}

		raw := st.page.Items[st.itemIdx]
		st.itemIdx++

		fields, ok := c.extractor.Extract(raw)
		if !ok {
			metrics.ObserveItem("rejected")
			continue
		}

		outcome, err := c.store.Ingest(ctx, st.Run.ID, fields)
		if err != nil {
			c.logger.Error("ingest listing failed",
				zap.String("run_id", st.Run.ID),
				zap.String("external_id", fields.ExternalID),
				zap.Error(err),
			)
			continue
		}
		st.Scraped++
		metrics.ObserveItem(outcome.String())
		if outcome == scrape.OutcomeInserted {
			c.publishListing(ctx, st, fields)
		}

		if idx, pause := c.pacer.Check(st.Scraped, st.CheckpointIdx); pause > 0 {
			st.CheckpointIdx = idx
			st.pendingPause = pause
			st.State = StatePaused
			return st
		}
	}

	st.itemIdx = 0
	switch {
	case c.limitReached(st):
		st.State = StateCompleted
	case !st.page.HasNext:
		st.State = StateCompleted
	default:
		st.State = StatePaginating
	}
	return st
}

func (c *Controller) paginate(ctx context.Context, session scrape.Session, st SessionState) (SessionState, error) {
	if st.PageNum >= c.cfg.MaxPages {
		c.logger.Warn("page limit reached, stopping pagination",
			zap.String("run_id", st.Run.ID),
			zap.Int("pages", st.PageNum),
		)
		st.State = StateCompleted
		return st, nil
	}

	res, err := c.resolveFetch(ctx, session, session.NextPage(ctx))
	if err != nil {
		return c.abort(ctx, st, err)
	}
	return c.loadPage(ctx, st, res, StateProcessingPage)
}

func (c *Controller) pause(ctx context.Context, st SessionState) (SessionState, error) {
	d := st.pendingPause
	st.pendingPause = 0
	c.logger.Info("pacing pause",
		zap.String("run_id", st.Run.ID),
		zap.Int("checkpoint", st.CheckpointIdx),
		zap.Duration("duration", d),
	)
	if err := c.sleep(ctx, d); err != nil {
		return c.abort(ctx, st, fmt.Errorf("pacing pause interrupted: %w", err))
	}
	metrics.ObservePause(d)
	st.State = StateProcessingPage
	return st, nil
}

// resolveFetch applies the bounded reload policy to a fetch result.
func (c *Controller) resolveFetch(ctx context.Context, session scrape.Session, res scrape.FetchResult) (scrape.FetchResult, error) {
	attempts := 0
	for {
		switch res.Status {
		case scrape.FetchOK:
			return res, nil
		case scrape.FetchTimeout:
			metrics.ObserveFetchTimeout()
			attempts++
			if attempts > c.cfg.RetryAttempts {
				return res, fmt.Errorf("fetch retries exhausted after %d reloads: %w", c.cfg.RetryAttempts, res.Err)
			}
			c.logger.Warn("navigation timeout, reloading",
				zap.String("url", res.URL),
				zap.Int("attempt", attempts),
			)
			res = session.Reload(ctx)
		default:
			return res, fmt.Errorf("fatal fetch failure: %w", res.Err)
		}
	}
}

// loadPage parses a fetched page into the session state.
func (c *Controller) loadPage(ctx context.Context, st SessionState, res scrape.FetchResult, next State) (SessionState, error) {
	page, err := c.parser.Parse(res.HTML)
	if err != nil {
		metrics.ObservePage("parse_error")
		st.html = res.HTML
		return c.abort(ctx, st, err)
	}
	metrics.ObservePage("ok")
	st.page = page
	st.html = res.HTML
	st.itemIdx = 0
	st.PageNum++
	c.logger.Debug("loaded results page",
		zap.String("run_id", st.Run.ID),
		zap.Int("page", st.PageNum),
		zap.Int("items", len(page.Items)),
		zap.Bool("has_next", page.HasNext),
	)
	st.State = next
	return st, nil
}

func (c *Controller) limitReached(st SessionState) bool {
	if st.MaxItems > 0 && st.Scraped >= st.MaxItems {
		return true
	}
	return st.ExpectedTotal > 0 && st.Scraped >= st.ExpectedTotal
}

func (c *Controller) publishListing(ctx context.Context, st SessionState, fields scrape.ListingFields) {
	if c.publisher == nil || c.cfg.Topic == "" {
		return
	}
	event := scrape.ListingEvent{
		RunID:      st.Run.ID,
		Query:      st.Query,
		ExternalID: fields.ExternalID,
		Title:      fields.Title,
		Price:      normalize.Price(fields.PriceText),
		SoldDate:   normalize.SoldDate(fields.DateSoldText),
		IngestedAt: c.clock.Now(),
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.Topic, event); err != nil {
		c.logger.Warn("publish listing event",
			zap.String("external_id", fields.ExternalID),
			zap.Error(err),
		)
	}
}

// abort captures a diagnostic snapshot of the last rendered page and moves
// the session to its terminal aborted state.
func (c *Controller) abort(ctx context.Context, st SessionState, cause error) (SessionState, error) {
	st.State = StateAborted
	uri := ""
	if c.snapshots != nil && st.html != "" {
		path := fmt.Sprintf("%s/%s/page-%03d.html",
			strings.TrimSuffix(c.cfg.SnapshotPrefix, "/"), st.Run.ID, st.PageNum)
		var err error
		uri, err = c.snapshots.PutObject(ctx, path, "text/html; charset=utf-8", strings.NewReader(st.html))
		if err != nil {
			c.logger.Error("write diagnostic snapshot", zap.String("run_id", st.Run.ID), zap.Error(err))
		}
	}
	c.logger.Error("crawl session aborted",
		zap.String("run_id", st.Run.ID),
		zap.String("query", st.Query),
		zap.Int("page", st.PageNum),
		zap.String("snapshot", uri),
		zap.Error(cause),
	)
	return st, &AbortError{RunID: st.Run.ID, PageNum: st.PageNum, SnapshotURI: uri, Err: cause}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
