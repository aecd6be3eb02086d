package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/api"
	"github.com/farahad-khurami/ebay-scraper/internal/blob/gcs"
	"github.com/farahad-khurami/ebay-scraper/internal/blob/local"
	"github.com/farahad-khurami/ebay-scraper/internal/clock/system"
	"github.com/farahad-khurami/ebay-scraper/internal/config"
	"github.com/farahad-khurami/ebay-scraper/internal/crawl"
	"github.com/farahad-khurami/ebay-scraper/internal/extract"
	"github.com/farahad-khurami/ebay-scraper/internal/fetcher/headless"
	"github.com/farahad-khurami/ebay-scraper/internal/fetcher/static"
	"github.com/farahad-khurami/ebay-scraper/internal/id/uuid"
	"github.com/farahad-khurami/ebay-scraper/internal/logging"
	"github.com/farahad-khurami/ebay-scraper/internal/metrics"
	"github.com/farahad-khurami/ebay-scraper/internal/orchestrator"
	"github.com/farahad-khurami/ebay-scraper/internal/policy/ratelimit"
	pubsubpub "github.com/farahad-khurami/ebay-scraper/internal/publisher/pubsub"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store"
	"github.com/farahad-khurami/ebay-scraper/internal/store/memory"
	"github.com/farahad-khurami/ebay-scraper/internal/store/postgres"
	"github.com/farahad-khurami/ebay-scraper/internal/store/sqlite"
)

const seenCacheSize = 8192

func newScrapeCmd() *cobra.Command {
	var (
		queries  []string
		maxItems int
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs one crawl session per configured query",
		Long: `Runs the sold-items crawl for every query in the configured worklist,
or for the queries given with --query. Each query gets its own isolated
fetch session and its own run row in the store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd.Context(), queries, maxItems)
		},
	}
	cmd.Flags().StringArrayVar(&queries, "query", nil, "search query (repeatable, overrides the configured worklist)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "cap ingested items per query, used with --query")
	return cmd
}

func runScrape(parent context.Context, queries []string, maxItems int) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush

	jobs, err := buildWorklist(cfg, queries, maxItems)
	if err != nil {
		return err
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("close store", zap.Error(cerr))
		}
	}()

	cached, err := store.NewSeenCache(st, seenCacheSize)
	if err != nil {
		return fmt.Errorf("init seen cache: %w", err)
	}

	snapshots, err := openSnapshots(ctx, cfg)
	if err != nil {
		return err
	}

	publisher, closePublisher, err := openPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	if closePublisher != nil {
		defer func() {
			if cerr := closePublisher(); cerr != nil {
				logger.Warn("close publisher", zap.Error(cerr))
			}
		}()
	}

	factory, err := buildSessionFactory(cfg, logger)
	if err != nil {
		return err
	}

	pauseMin, pauseMax := cfg.PauseBounds()
	pacer := crawl.NewPacer(crawl.PacingConfig{
		CheckpointMin: cfg.Pacing.CheckpointMin,
		CheckpointMax: cfg.Pacing.CheckpointMax,
		PauseMin:      pauseMin,
		PauseMax:      pauseMax,
	}, nil)

	ctrl := crawl.New(
		cached,
		factory,
		extract.NewExtractor(),
		extract.NewPageParser(extract.DefaultSelectors()),
		pacer,
		publisher,
		snapshots,
		system.New(),
		crawl.Config{
			MaxPages:       cfg.Scraper.MaxPages,
			RetryAttempts:  cfg.Scraper.RetryAttempts,
			Topic:          cfg.PubSub.TopicName,
			SnapshotPrefix: cfg.Storage.Prefix,
		},
		logger.Named("crawl"),
	)

	if cfg.Server.Enabled {
		shutdown := startStatusServer(cfg, cached, logger.Named("api"))
		defer shutdown()
	}

	orch := orchestrator.New(ctrl, orchestrator.Config{Concurrency: cfg.Scraper.Concurrency}, logger.Named("orchestrator"))
	results, err := orch.Run(ctx, jobs)
	for _, r := range results {
		logger.Info("session result",
			zap.String("query", r.Job.Query),
			zap.String("state", r.State.State.String()),
			zap.Int("scraped", r.State.Scraped),
		)
	}
	return err
}

func buildWorklist(cfg config.Config, queries []string, maxItems int) ([]orchestrator.QueryJob, error) {
	var jobs []orchestrator.QueryJob
	if len(queries) > 0 {
		for _, q := range queries {
			jobs = append(jobs, orchestrator.QueryJob{Query: q, MaxItems: maxItems})
		}
		return jobs, nil
	}
	for _, q := range cfg.Queries {
		jobs = append(jobs, orchestrator.QueryJob{Query: q.Query, MaxItems: q.MaxItems})
	}
	if len(jobs) == 0 {
		return nil, errors.New("no queries configured: set queries in the config file or pass --query")
	}
	return jobs, nil
}

func openStore(ctx context.Context, cfg config.Config) (scrape.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:      cfg.Store.DSN,
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	case "sqlite":
		return sqlite.New(cfg.Store.DSN, uuid.NewGenerator())
	case "memory":
		return memory.New(uuid.NewGenerator()), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openSnapshots(ctx context.Context, cfg config.Config) (scrape.BlobStore, error) {
	switch cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return gcs.New(client, cfg.Storage.GCSBucket)
	default:
		return local.New(cfg.Storage.Dir)
	}
}

func openPublisher(ctx context.Context, cfg config.Config) (scrape.Publisher, func() error, error) {
	if !cfg.PubSub.Enabled {
		return nil, nil, nil
	}
	pub, closer, err := pubsubpub.Connect(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, nil, err
	}
	return pub, closer, nil
}

func buildSessionFactory(cfg config.Config, logger *zap.Logger) (scrape.SessionFactory, error) {
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Scraper.RPS,
		DefaultBurst: cfg.Scraper.Burst,
	})
	switch cfg.Scraper.Mode {
	case "static":
		return static.NewFactory(static.Config{
			BaseURL:   cfg.Fetcher.BaseURL,
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   cfg.NavTimeout(),
		}, limiter, logger.Named("fetcher")), nil
	case "headless":
		return headless.NewFactory(headless.Config{
			BaseURL:           cfg.Fetcher.BaseURL,
			UserAgent:         cfg.Scraper.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		}, limiter, logger.Named("fetcher")), nil
	default:
		return nil, fmt.Errorf("unknown scraper mode %q", cfg.Scraper.Mode)
	}
}

func startStatusServer(cfg config.Config, st scrape.Store, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(st, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}
