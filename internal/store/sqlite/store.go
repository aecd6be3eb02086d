// Package sqlite provides a file-backed store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store"
)

// Store persists runs, sellers and listings in a SQLite database.
type Store struct {
	db    *sql.DB
	idGen scrape.IDGenerator
}

// New opens (or creates) the database at path and initializes the schema.
func New(path string, idGen scrape.IDGenerator) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store.path is required")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{db: db, idGen: idGen}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS searches (
		run_id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		expected_total INTEGER NOT NULL DEFAULT 0,
		items_scraped INTEGER NOT NULL DEFAULT 0,
		max_items INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS sellers (
		seller_id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		feedback_score INTEGER,
		feedback_percent REAL
	);

	CREATE TABLE IF NOT EXISTS items (
		item_id INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT UNIQUE NOT NULL,
		run_id TEXT NOT NULL REFERENCES searches(run_id),
		seller_id INTEGER REFERENCES sellers(seller_id),
		title TEXT,
		url TEXT,
		image_url TEXT,
		condition TEXT,
		sold_date DATE,
		price REAL,
		shipping_price REAL,
		shipping_location TEXT,
		best_offer TEXT,
		rating REAL,
		rating_count INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_items_run ON items(run_id);
	CREATE INDEX IF NOT EXISTS idx_items_seller ON items(seller_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(ctx context.Context, query string, startedAt time.Time, maxItems int) (scrape.SearchRun, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return scrape.SearchRun{}, fmt.Errorf("generate run id: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO searches (run_id, query, started_at, max_items) VALUES (?, ?, ?, ?)`,
		id, query, startedAt, maxItems,
	)
	if err != nil {
		return scrape.SearchRun{}, fmt.Errorf("insert run: %w", err)
	}
	return scrape.SearchRun{ID: id, Query: query, StartedAt: startedAt, MaxItems: maxItems}, nil
}

// SetExpectedTotal records the observed total at most once per run.
func (s *Store) SetExpectedTotal(ctx context.Context, runID string, total int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE searches SET expected_total = ? WHERE run_id = ? AND expected_total = 0`,
		total, runID,
	)
	if err != nil {
		return fmt.Errorf("set expected total: %w", err)
	}
	return nil
}

// Ingest performs the dedup-upsert in one transaction, mirroring the
// Postgres implementation.
func (s *Store) Ingest(ctx context.Context, runID string, fields scrape.ListingFields) (scrape.IngestOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("begin ingest tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM items WHERE external_id = ?`, fields.ExternalID,
	).Scan(&one)
	switch {
	case err == nil:
		return scrape.OutcomeSkippedDuplicate, nil
	case !errors.Is(err, sql.ErrNoRows):
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("check external id: %w", err)
	}

	listing := store.NormalizeListing(runID, fields)

	if obs := store.NormalizeSeller(fields); obs.Username != "" {
		sellerID, err := s.upsertSeller(ctx, tx, obs)
		if err != nil {
			return scrape.OutcomeSkippedDuplicate, err
		}
		listing.SellerID = &sellerID
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO items (
			external_id, run_id, seller_id, title, url, image_url, condition,
			sold_date, price, shipping_price, shipping_location, best_offer,
			rating, rating_count
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		listing.ExternalID, listing.RunID, listing.SellerID, listing.Title,
		listing.URL, listing.ImageURL, listing.Condition, listing.SoldDate,
		listing.Price, listing.ShippingPrice, listing.ShippingLocation,
		listing.BestOffer, listing.Rating, listing.RatingCount,
	)
	if err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("insert listing %q: %w", listing.ExternalID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return scrape.OutcomeSkippedDuplicate, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE searches SET items_scraped = items_scraped + 1 WHERE run_id = ?`, runID,
	); err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("bump run counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("commit ingest: %w", err)
	}
	return scrape.OutcomeInserted, nil
}

func (s *Store) upsertSeller(ctx context.Context, tx *sql.Tx, obs store.SellerObservation) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sellers (username, feedback_score, feedback_percent)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
			feedback_score = COALESCE(EXCLUDED.feedback_score, sellers.feedback_score),
			feedback_percent = COALESCE(EXCLUDED.feedback_percent, sellers.feedback_percent)`,
		obs.Username, obs.FeedbackScore, obs.FeedbackPercent,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert seller %q: %w", obs.Username, err)
	}
	var sellerID int64
	err = tx.QueryRowContext(ctx,
		`SELECT seller_id FROM sellers WHERE username = ?`, obs.Username,
	).Scan(&sellerID)
	if err != nil {
		return 0, fmt.Errorf("resolve seller id for %q: %w", obs.Username, err)
	}
	return sellerID, nil
}

const runColumns = `run_id, query, started_at, expected_total, items_scraped, max_items`

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (scrape.SearchRun, error) {
	var run scrape.SearchRun
	err := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM searches WHERE run_id = ?`, runID,
	).Scan(&run.ID, &run.Query, &run.StartedAt, &run.ExpectedTotal, &run.ItemsScraped, &run.MaxItems)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scrape.SearchRun{}, fmt.Errorf("run %s: %w", runID, scrape.ErrRunNotFound)
		}
		return scrape.SearchRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]scrape.SearchRun, error) {
	rows, err := s.db.QueryContext(ctx,
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

// Close shuts down the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite db: %w", err)
	}
	return nil
}
