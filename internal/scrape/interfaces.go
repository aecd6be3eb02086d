package scrape

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrRunNotFound reports a lookup for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Store persists runs, sellers and listings with dedup-upsert semantics.
type Store interface {
	// CreateRun inserts a new run row for the query and returns it.
	CreateRun(ctx context.Context, query string, startedAt time.Time, maxItems int) (SearchRun, error)

	// SetExpectedTotal records the result count observed on the first page.
	// It is set at most once per run; later calls are no-ops.
	SetExpectedTotal(ctx context.Context, runID string, total int) error

	// Ingest atomically persists one listing. If the external id already
	// exists anywhere in the store it returns OutcomeSkippedDuplicate and
	// touches nothing; otherwise it resolves the seller (latest-wins merge
	// of non-null feedback fields), inserts the listing referencing the
	// seller and the run, and increments the run's items-scraped counter.
	Ingest(ctx context.Context, runID string, fields ListingFields) (IngestOutcome, error)

	// GetRun returns a run by id.
	GetRun(ctx context.Context, runID string) (SearchRun, error)

	// ListRuns returns all runs, most recent first.
	ListRuns(ctx context.Context) ([]SearchRun, error)

	// Close releases the underlying connection resources.
	Close() error
}

// Session is one isolated page-fetching session against the marketplace.
// Implementations own a single browser/page resource: the controller issues
// one outstanding operation at a time and never shares a Session between
// crawl sessions.
type Session interface {
	// Start navigates to the sold-items results for the query and returns
	// the first page.
	Start(ctx context.Context, query string) FetchResult

	// NextPage advances to the next results page.
	NextPage(ctx context.Context) FetchResult

	// Reload re-fetches the current page after a timeout.
	Reload(ctx context.Context) FetchResult

	// Close releases the session. Safe to call once per session.
	Close() error
}

// SessionFactory creates a fresh Session per crawl session so that two
// queries never share one fetch context.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Publisher pushes listing events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes diagnostic artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
