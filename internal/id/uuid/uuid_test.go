package uuid_test

import (
	"testing"

	guuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farahad-khurami/ebay-scraper/internal/id/uuid"
)

func TestGenerator_NewID(t *testing.T) {
	t.Parallel()

	gen := uuid.NewGenerator()
	a, err := gen.NewID()
	require.NoError(t, err)
	b, err := gen.NewID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	parsed, err := guuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, guuid.Version(7), parsed.Version())
}
