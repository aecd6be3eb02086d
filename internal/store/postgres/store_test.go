package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store/postgres"
)

func newMockStore(t *testing.T) (*postgres.Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := postgres.NewWithDB(mock)
	require.NoError(t, err)
	return s, mock
}

func TestStore_CreateRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	startedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO searches`)).
		WithArgs("lego", startedAt, 100).
		WillReturnRows(pgxmock.NewRows([]string{"run_id"}).AddRow("run-1"))

	run, err := s.CreateRun(context.Background(), "lego", startedAt, 100)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "lego", run.Query)
	assert.Equal(t, 100, run.MaxItems)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetExpectedTotal(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE searches SET expected_total = $2 WHERE run_id = $1 AND expected_total = 0`)).
		WithArgs("run-1", 2417).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetExpectedTotal(context.Background(), "run-1", 2417))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IngestInsertsNewListing(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM items WHERE external_id = $1)`)).
		WithArgs("item42").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO sellers`)).
		WithArgs("brickseller", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"seller_id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO items`)).
		WithArgs("item42", "run-1", pgxmock.AnyArg(), "Lego Castle 6080",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE searches SET items_scraped = items_scraped + 1 WHERE run_id = $1`)).
		WithArgs("run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	outcome, err := s.Ingest(context.Background(), "run-1", scrape.ListingFields{
		ExternalID:     "item42",
		Title:          "Lego Castle 6080",
		PriceText:      "£120.00",
		DateSoldText:   "Sold 3 Jan 2023",
		SellerInfoText: "brickseller (1,234) 99.5%",
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.OutcomeInserted, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IngestSkipsExistingExternalID(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM items WHERE external_id = $1)`)).
		WithArgs("item42").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	outcome, err := s.Ingest(context.Background(), "run-2", scrape.ListingFields{
		ExternalID: "item42",
		Title:      "Lego Castle 6080",
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.OutcomeSkippedDuplicate, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_IngestLosesInsertRace(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).
		WithArgs("item42").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO items`)).
		WithArgs("item42", "run-1", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	// No seller text, so the seller upsert is skipped entirely.
	outcome, err := s.Ingest(context.Background(), "run-1", scrape.ListingFields{
		ExternalID: "item42",
	})
	require.NoError(t, err)
	assert.Equal(t, scrape.OutcomeSkippedDuplicate, outcome)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetRun(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	startedAt := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT run_id, query, started_at, expected_total, items_scraped, max_items FROM searches WHERE run_id = $1`)).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(
			[]string{"run_id", "query", "started_at", "expected_total", "items_scraped", "max_items"},
		).AddRow("run-1", "lego", startedAt, 2417, 42, 100))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "lego", run.Query)
	assert.Equal(t, 2417, run.ExpectedTotal)
	assert.Equal(t, 42, run.ItemsScraped)
	require.NoError(t, mock.ExpectationsWereMet())
}
