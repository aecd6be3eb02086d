// Package orchestrator runs one crawl session per configured query with
// bounded concurrency. Sessions never share a fetch session; each one gets
// its own from the controller's session factory.
package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/farahad-khurami/ebay-scraper/internal/crawl"
)

// QueryJob is one worklist entry.
type QueryJob struct {
	Query    string
	MaxItems int
}

// Result pairs a job with its session outcome.
type Result struct {
	Job   QueryJob
	State crawl.SessionState
	Err   error
}

// Config controls Orchestrator behavior.
type Config struct {
	// Concurrency bounds how many sessions run at once. Zero or one
	// means sequential.
	Concurrency int
}

// Orchestrator drives the worklist.
type Orchestrator struct {
	ctrl   *crawl.Controller
	cfg    Config
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(ctrl *crawl.Controller, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{ctrl: ctrl, cfg: cfg, logger: logger}
}

// Run executes every job and returns results in worklist order. An aborted
// session never stops the others; the first error is also returned for the
// caller's exit code.
func (o *Orchestrator) Run(ctx context.Context, jobs []QueryJob) ([]Result, error) {
	results := make([]Result, len(jobs))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, job := range jobs {
		wg.Add(1)
		go func(i int, job QueryJob) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			state, err := o.ctrl.Run(ctx, job.Query, job.MaxItems)
			if err != nil {
				o.logger.Error("crawl session failed",
					zap.String("query", job.Query),
					zap.Error(err),
				)
			}
			results[i] = Result{Job: job, State: state, Err: err}
		}(i, job)
	}
	wg.Wait()

	var first error
	for _, r := range results {
		if r.Err != nil {
			first = r.Err
			break
		}
	}
	return results, first
}
