// Package postgres provides the Postgres-backed store implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store persists runs, sellers and listings in Postgres.
type Store struct {
	db DB
}

// New connects a pool and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool (primarily for testing).
func NewWithDB(db DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	run_id TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	expected_total INTEGER NOT NULL DEFAULT 0,
	items_scraped INTEGER NOT NULL DEFAULT 0,
	max_items INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sellers (
	seller_id BIGSERIAL PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	feedback_score INTEGER,
	feedback_percent DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS items (
	item_id BIGSERIAL PRIMARY KEY,
	external_id TEXT UNIQUE NOT NULL,
	run_id TEXT NOT NULL REFERENCES searches(run_id),
	seller_id BIGINT REFERENCES sellers(seller_id),
	title TEXT,
	url TEXT,
	image_url TEXT,
	condition TEXT,
	sold_date DATE,
	price DOUBLE PRECISION,
	shipping_price DOUBLE PRECISION,
	shipping_location TEXT,
	best_offer TEXT,
	rating DOUBLE PRECISION,
	rating_count INTEGER
);
`

// InitSchema creates the three tables when they do not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// CreateRun inserts a new run row for the query.
func (s *Store) CreateRun(ctx context.Context, query string, startedAt time.Time, maxItems int) (scrape.SearchRun, error) {
	run := scrape.SearchRun{
		Query:     query,
		StartedAt: startedAt,
		MaxItems:  maxItems,
	}
	err := s.db.QueryRow(ctx,
		`INSERT INTO searches (run_id, query, started_at, max_items)
		 VALUES (gen_random_uuid(), $1, $2, $3)
		 RETURNING run_id`,
		query, startedAt, maxItems,
	).Scan(&run.ID)
	if err != nil {
		return scrape.SearchRun{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// SetExpectedTotal records the observed total at most once per run.
func (s *Store) SetExpectedTotal(ctx context.Context, runID string, total int) error {
	_, err := s.db.Exec(ctx,
		`UPDATE searches SET expected_total = $2 WHERE run_id = $1 AND expected_total = 0`,
		runID, total,
	)
	if err != nil {
		return fmt.Errorf("set expected total: %w", err)
	}
	return nil
}

// Ingest performs the dedup-upsert as a single transaction: duplicate
// external ids are skipped untouched, the seller is resolved with a
// latest-wins merge of non-null feedback, and the new listing row is
// guarded by the unique constraint on external_id so racing ingestions
// cannot double-insert.
func (s *Store) Ingest(ctx context.Context, runID string, fields scrape.ListingFields) (scrape.IngestOutcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var exists bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM items WHERE external_id = $1)`,
		fields.ExternalID,
	).Scan(&exists)
	if err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("check external id: %w", err)
	}
	if exists {
		return scrape.OutcomeSkippedDuplicate, nil
	}

	listing := store.NormalizeListing(runID, fields)

	if obs := store.NormalizeSeller(fields); obs.Username != "" {
		var sellerID int64
		err = tx.QueryRow(ctx,
			`INSERT INTO sellers (username, feedback_score, feedback_percent)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (username) DO UPDATE SET
				feedback_score = COALESCE(EXCLUDED.feedback_score, sellers.feedback_score),
				feedback_percent = COALESCE(EXCLUDED.feedback_percent, sellers.feedback_percent)
			 RETURNING seller_id`,
			obs.Username, obs.FeedbackScore, obs.FeedbackPercent,
		).Scan(&sellerID)
		if err != nil {
			return scrape.OutcomeSkippedDuplicate, fmt.Errorf("upsert seller %q: %w", obs.Username, err)
		}
		listing.SellerID = &sellerID
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO items (
			external_id, run_id, seller_id, title, url, image_url, condition,
			sold_date, price, shipping_price, shipping_location, best_offer,
			rating, rating_count
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (external_id) DO NOTHING`,
		listing.ExternalID, listing.RunID, listing.SellerID, listing.Title,
		listing.URL, listing.ImageURL, listing.Condition, listing.SoldDate,
		listing.Price, listing.ShippingPrice, listing.ShippingLocation,
		listing.BestOffer, listing.Rating, listing.RatingCount,
	)
	if err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("insert listing %q: %w", listing.ExternalID, err)
	}
	if tag.RowsAffected() == 0 {
		// A concurrent session inserted the same external id first.
		return scrape.OutcomeSkippedDuplicate, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE searches SET items_scraped = items_scraped + 1 WHERE run_id = $1`,
		runID,
	); err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("bump run counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("commit ingest: %w", err)
	}
	return scrape.OutcomeInserted, nil
}

const runColumns = `run_id, query, started_at, expected_total, items_scraped, max_items`

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (scrape.SearchRun, error) {
	var run scrape.SearchRun
	err := s.db.QueryRow(ctx,
		`SELECT `+runColumns+` FROM searches WHERE run_id = $1`, runID,
	).Scan(&run.ID, &run.Query, &run.StartedAt, &run.ExpectedTotal, &run.ItemsScraped, &run.MaxItems)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scrape.SearchRun{}, fmt.Errorf("run %s: %w", runID, scrape.ErrRunNotFound)
		}
		return scrape.SearchRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]scrape.SearchRun, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+runColumns+` FROM searches ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []scrape.SearchRun
	for rows.Next() {
		var run scrape.SearchRun
		if err := rows.Scan(&run.ID, &run.Query, &run.StartedAt, &run.ExpectedTotal, &run.ItemsScraped, &run.MaxItems); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}
