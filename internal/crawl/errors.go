package crawl

import (
	"errors"
	"fmt"
)

// ErrMissingQuery is returned before any fetch when a session is started
// with an empty query term.
var ErrMissingQuery = errors.New("query must not be empty")

// AbortError is the terminal error of an aborted crawl session. It carries
// the run id and, when a diagnostic snapshot was captured, its URI.
type AbortError struct {
	RunID       string
	PageNum     int
	SnapshotURI string
	Err         error
}

func (e *AbortError) Error() string {
	if e.SnapshotURI != "" {
		return fmt.Sprintf("crawl session aborted on page %d (snapshot %s): %v", e.PageNum, e.SnapshotURI, e.Err)
	}
	return fmt.Sprintf("crawl session aborted on page %d: %v", e.PageNum, e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
