package fetcher_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/fetcher"
)

func TestSearchURL_FirstPageOmitsPageParam(t *testing.T) {
	t.Parallel()

	raw := fetcher.SearchURL("https://www.ebay.co.uk", "lego castle", 1)
	u, err := url.Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "/sch/i.html", u.Path)
	q := u.Query()
	assert.Equal(t, "lego castle", q.Get("_nkw"))
	assert.Equal(t, "240", q.Get("_ipg"))
	assert.Equal(t, "1", q.Get("LH_Sold"))
	assert.Equal(t, "1", q.Get("LH_Complete"))
	assert.Empty(t, q.Get("_pgn"))
}

func TestSearchURL_LaterPagesCarryPageParam(t *testing.T) {
	t.Parallel()

	u, err := url.Parse(fetcher.SearchURL("https://www.ebay.co.uk", "lego", 7))
	require.NoError(t, err)
	assert.Equal(t, "7", u.Query().Get("_pgn"))
}

func TestAppendSoldFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
	}{
		{"no existing query", "https://www.ebay.co.uk/sch/i.html"},
		{"existing query", "https://www.ebay.co.uk/sch/i.html?_nkw=lego"},
		{"already filtered", "https://www.ebay.co.uk/sch/i.html?_nkw=lego&LH_Sold=1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := fetcher.AppendSoldFilter(tt.in)
			assert.True(t, fetcher.SoldFilterToken(out), "expected sold filter on %q", out)
		})
	}
}

func TestSoldFilterToken(t *testing.T) {
	t.Parallel()

	assert.True(t, fetcher.SoldFilterToken("https://www.ebay.co.uk/sch/i.html?LH_Sold=1&_nkw=x"))
	assert.False(t, fetcher.SoldFilterToken("https://www.ebay.co.uk/sch/i.html?_nkw=x"))
	assert.False(t, fetcher.SoldFilterToken("https://www.ebay.co.uk/sch/i.html?LH_Sold=0"))
}
