// Package headless implements the marketplace fetch session with a headless
// browser, for the rendered search-results views the static path cannot see.
package headless

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/fetcher"
	"github.com/farahad-khurami/ebay-scraper/internal/policy/ratelimit"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
)

// Config controls the behavior of the headless session.
type Config struct {
	BaseURL           string
	UserAgent         string
	NavigationTimeout time.Duration
	NextSelector      string
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = fetcher.DefaultBaseURL
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 45 * time.Second
	}
	if c.NextSelector == "" {
		c.NextSelector = "a.pagination__next"
	}
	return c
}

// Session drives one dedicated browser through the paginated sold-items view.
// One Session serves exactly one crawl session; it is not safe for
// concurrent use and never shared between queries.
type Session struct {
	cfg         Config
	limiter     *ratelimit.Limiter
	logger      *zap.Logger
	allocator   context.Context
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc
	currentURL  string
	closeOnce   sync.Once
}

// NewSession starts a fresh browser allocator owning one tab.
func NewSession(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) (*Session, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	return &Session{
		cfg:         cfg,
		limiter:     limiter,
		logger:      logger,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		tab:         tabCtx,
		tabCancel:   tabCancel,
	}, nil
}

// Start navigates to the sold-items results for the query and returns the
// first page. The sold filter is reached the way a user would: by following
// the marketplace's own sold-items link when one is present, falling back to
// the URL parameter otherwise.
func (s *Session) Start(ctx context.Context, query string) scrape.FetchResult {
	searchURL := fetcher.SearchURL(s.cfg.BaseURL, query, 1)

	if res := s.navigate(ctx, chromedp.Navigate(s.cfg.BaseURL)); res.Status != scrape.FetchOK {
		return res
	}
	res := s.navigate(ctx, chromedp.Navigate(searchURL))
	if res.Status != scrape.FetchOK {
		return res
	}

	soldURL := s.findSoldLink(res)
	if soldURL == res.URL {
		return res
	}
	s.logger.Debug("applying sold items filter", zap.String("url", soldURL))
	return s.navigate(ctx, chromedp.Navigate(soldURL))
}

// findSoldLink picks a sold-filter link out of the current page, or builds
// one by appending the filter parameter.
func (s *Session) findSoldLink(res scrape.FetchResult) string {
	var hrefs []string
	evalCtx, cancel := context.WithTimeout(s.tab, s.cfg.NavigationTimeout)
	defer cancel()
	err := chromedp.Run(evalCtx, chromedp.Evaluate(
		`Array.from(document.querySelectorAll('a[href]')).map(a => a.href)`, &hrefs,
	))
	if err == nil {
		for _, href := range hrefs {
			if fetcher.SoldFilterToken(href) {
				return href
			}
		}
	}
	if fetcher.SoldFilterToken(res.URL) {
		return res.URL
	}
	return fetcher.AppendSoldFilter(res.URL)
}

// NextPage clicks the pagination control and waits for the next page.
func (s *Session) NextPage(ctx context.Context) scrape.FetchResult {
	return s.navigate(ctx,
		chromedp.Click(s.cfg.NextSelector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

// Reload re-fetches the current page after a timeout.
func (s *Session) Reload(ctx context.Context) scrape.FetchResult {
	return s.navigate(ctx, chromedp.Reload())
}

// navigate runs the given action followed by the capture sequence, under the
// per-navigation timeout and the domain rate limit.
func (s *Session) navigate(ctx context.Context, action chromedp.Action) scrape.FetchResult {
	if err := s.limiterWait(ctx); err != nil {
		return scrape.FetchResult{Status: scrape.FetchFatal, Err: err}
	}

	navCtx, cancel := context.WithTimeout(s.tab, s.cfg.NavigationTimeout)
	defer cancel()

	var (
		html     string
		finalURL string
	)
	actions := []chromedp.Action{
		s.networkSetup(),
		action,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(navCtx, actions...); err != nil {
		return s.classify(err)
	}

	s.currentURL = finalURL
	return scrape.FetchResult{Status: scrape.FetchOK, URL: finalURL, HTML: html}
}

func (s *Session) limiterWait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx, s.cfg.BaseURL)
}

func (s *Session) networkSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (s *Session) classify(err error) scrape.FetchResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return scrape.FetchResult{Status: scrape.FetchTimeout, URL: s.currentURL, Err: err}
	}
	return scrape.FetchResult{Status: scrape.FetchFatal, URL: s.currentURL, Err: fmt.Errorf("chromedp run: %w", err)}
}

// Close tears down the tab and the browser allocator. Safe to call more
// than once; only the first call does the work.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.allocCancel()
	})
	return nil
}

// Factory builds an isolated headless Session per crawl session.
type Factory struct {
	cfg     Config
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewFactory returns a Factory that stamps sessions from cfg.
func NewFactory(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Factory {
	return &Factory{cfg: cfg, limiter: limiter, logger: logger}
}

// NewSession creates a fresh browser session.
func (f *Factory) NewSession(_ context.Context) (scrape.Session, error) {
	return NewSession(f.cfg, f.limiter, f.logger)
}
