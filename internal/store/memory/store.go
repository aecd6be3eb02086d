// Package memory contains an in-memory store implementation used by tests
// and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/farahad-khurami/ebay-scraper/internal/scrape"
	"github.com/farahad-khurami/ebay-scraper/internal/store"
)

// Store keeps runs, sellers and listings in process memory with the same
// dedup-upsert semantics as the relational implementations.
type Store struct {
	mu       sync.Mutex
	idGen    scrape.IDGenerator
	runs     map[string]*scrape.SearchRun
	sellers  map[string]*scrape.Seller
	listings map[string]*scrape.Listing
	nextID   int64
}

// New creates an empty Store.
func New(idGen scrape.IDGenerator) *Store {
	return &Store{
		idGen:    idGen,
		runs:     make(map[string]*scrape.SearchRun),
		sellers:  make(map[string]*scrape.Seller),
		listings: make(map[string]*scrape.Listing),
	}
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(_ context.Context, query string, startedAt time.Time, maxItems int) (scrape.SearchRun, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return scrape.SearchRun{}, fmt.Errorf("generate run id: %w", err)
	}
	run := scrape.SearchRun{
		ID:        id,
		Query:     query,
		StartedAt: startedAt,
		MaxItems:  maxItems,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = &run
	return run, nil
}

// SetExpectedTotal records the observed total at most once per run.
func (s *Store) SetExpectedTotal(_ context.Context, runID string, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, scrape.ErrRunNotFound)
	}
	if run.ExpectedTotal == 0 {
		run.ExpectedTotal = total
	}
	return nil
}

// Ingest applies the dedup-upsert algorithm under a single lock.
func (s *Store) Ingest(_ context.Context, runID string, fields scrape.ListingFields) (scrape.IngestOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return scrape.OutcomeSkippedDuplicate, fmt.Errorf("run %s: %w", runID, scrape.ErrRunNotFound)
	}
	if _, exists := s.listings[fields.ExternalID]; exists {
		return scrape.OutcomeSkippedDuplicate, nil
	}

	listing := store.NormalizeListing(runID, fields)
	listing.ID = s.nextSerial()

	if obs := store.NormalizeSeller(fields); obs.Username != "" {
		seller := s.upsertSeller(obs)
		listing.SellerID = &seller.ID
	}

	s.listings[listing.ExternalID] = &listing
	run.ItemsScraped++
	return scrape.OutcomeInserted, nil
}

func (s *Store) upsertSeller(obs store.SellerObservation) *scrape.Seller {
	seller, ok := s.sellers[obs.Username]
	if !ok {
		seller = &scrape.Seller{
			ID:              s.nextSerial(),
			Username:        obs.Username,
			FeedbackScore:   obs.FeedbackScore,
			FeedbackPercent: obs.FeedbackPercent,
		}
		s.sellers[obs.Username] = seller
		return seller
	}
	// Latest-wins merge: null observations never erase known values.
	if obs.FeedbackScore != nil {
		seller.FeedbackScore = obs.FeedbackScore
	}
	if obs.FeedbackPercent != nil {
		seller.FeedbackPercent = obs.FeedbackPercent
	}
	return seller
}

func (s *Store) nextSerial() int64 {
	s.nextID++
	return s.nextID
}

// GetRun returns a copy of the run.
func (s *Store) GetRun(_ context.Context, runID string) (scrape.SearchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return scrape.SearchRun{}, fmt.Errorf("run %s: %w", runID, scrape.ErrRunNotFound)
	}
	return *run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(_ context.Context) ([]scrape.SearchRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scrape.SearchRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// Seller returns the stored seller by username, for assertions in tests.
func (s *Store) Seller(username string) (scrape.Seller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seller, ok := s.sellers[username]
	if !ok {
		return scrape.Seller{}, false
	}
	return *seller, true
}

// Listing returns the stored listing by external id, for tests.
func (s *Store) Listing(externalID string) (scrape.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing, ok := s.listings[externalID]
	if !ok {
		return scrape.Listing{}, false
	}
	return *listing, true
}
