package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/blob/local"
)

func TestNew_RequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := local.New("  ")
	assert.Error(t, err)
}

func TestPutObject_WritesFileAndReturnsURI(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(dir)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(),
		"snapshots/run-1/page-003.html", "text/html", strings.NewReader("<html>stuck page</html>"))
	require.NoError(t, err)

	path := filepath.Join(dir, "snapshots", "run-1", "page-003.html")
	assert.Equal(t, "file://"+path, uri)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>stuck page</html>", string(body))
}

func TestPutObject_RejectsEscapingPaths(t *testing.T) {
	t.Parallel()

	store, err := local.New(t.TempDir())
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.html", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}
