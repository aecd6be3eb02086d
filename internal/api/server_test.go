package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/api"
	"github.com/farahad-khurami/ebay-scraper/internal/id/uuid"
	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store/memory"
)

func newTestServer(t *testing.T) (*api.Server, *memory.Store) {
	t.Helper()
	store := memory.New(uuid.NewGenerator())
	return api.NewServer(store, zap.NewNop()), store
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	_, err := store.CreateRun(context.Background(), "lego", time.Now().UTC(), 0)
	require.NoError(t, err)
	_, err = store.CreateRun(context.Background(), "camera", time.Now().UTC(), 100)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs []scrape.SearchRun `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Runs, 2)
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	srv, store := newTestServer(t)
	run, err := store.CreateRun(context.Background(), "lego", time.Now().UTC(), 0)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got scrape.SearchRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "lego", got.Query)
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/runs/no-such-run", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
