// Package static implements a plain-HTTP fetch session. It paginates through
// explicit page-number URLs instead of driving a browser, which is enough for
// the marketplace views that render server side.
package static

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/fetcher"
	"github.com/farahad-khurami/ebay-scraper/internal/policy/ratelimit"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// Config controls the behavior of the static session.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration

	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = fetcher.DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Session fetches sold-items result pages over plain HTTP. Not safe for
// concurrent use; the controller issues one operation at a time.
type Session struct {
	cfg       Config
	limiter   *ratelimit.Limiter
	logger    *zap.Logger
	collector *colly.Collector

	query      string
	page       int
	currentURL string
	lastBody   []byte
}

// NewSession builds a collector configured for repeated visits to the
// results pages.
func NewSession(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Session, error) {
	cfg = cfg.withDefaults()

	opts := []colly.CollectorOption{colly.AllowURLRevisit()}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.Transport != nil {
		c.WithTransport(cfg.Transport)
	}

	s := &Session{cfg: cfg, limiter: limiter, logger: logger, collector: c}
	c.OnResponse(func(r *colly.Response) {
		s.lastBody = r.Body
	})
	return s, nil
}

// Start fetches the first sold-items results page for the query.
func (s *Session) Start(ctx context.Context, query string) scrape.FetchResult {
	s.query = query
	s.page = 1
	return s.fetch(ctx, fetcher.SearchURL(s.cfg.BaseURL, query, 1))
}

// NextPage fetches the following results page.
func (s *Session) NextPage(ctx context.Context) scrape.FetchResult {
	s.page++
	return s.fetch(ctx, fetcher.SearchURL(s.cfg.BaseURL, s.query, s.page))
}

// Reload re-fetches the current page.
func (s *Session) Reload(ctx context.Context) scrape.FetchResult {
	if s.currentURL == "" {
		return scrape.FetchResult{Status: scrape.FetchFatal, Err: errors.New("reload before first fetch")}
	}
	return s.fetch(ctx, s.currentURL)
}

// Close is a no-op; the collector holds no long-lived resources.
func (s *Session) Close() error {
	return nil
}

func (s *Session) fetch(ctx context.Context, rawURL string) scrape.FetchResult {
	if err := ctx.Err(); err != nil {
		return scrape.FetchResult{Status: scrape.FetchFatal, URL: rawURL, Err: err}
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx, rawURL); err != nil {
			return scrape.FetchResult{Status: scrape.FetchFatal, URL: rawURL, Err: err}
		}
	}

	s.lastBody = nil
	if err := s.collector.Visit(rawURL); err != nil {
		return s.classify(rawURL, err)
	}
	s.collector.Wait()

	s.currentURL = rawURL
	s.logger.Debug("fetched page",
		zap.String("url", rawURL),
		zap.Int("bytes", len(s.lastBody)),
	)
	return scrape.FetchResult{Status: scrape.FetchOK, URL: rawURL, HTML: string(s.lastBody)}
}

func (s *Session) classify(rawURL string, err error) scrape.FetchResult {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return scrape.FetchResult{Status: scrape.FetchTimeout, URL: rawURL, Err: err}
	}
	return scrape.FetchResult{Status: scrape.FetchFatal, URL: rawURL, Err: fmt.Errorf("visit %s: %w", rawURL, err)}
}

// Factory builds a fresh static Session per crawl session.
type Factory struct {
	cfg     Config
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewFactory returns a Factory that stamps sessions from cfg.
func NewFactory(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, limiter: limiter, logger: logger}
}

// NewSession creates a session with its own collector state.
func (f *Factory) NewSession(_ context.Context) (scrape.Session, error) {
	return NewSession(f.cfg, f.limiter, f.logger)
}
