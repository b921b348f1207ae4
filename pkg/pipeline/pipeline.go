// Package pipeline runs batches of draft facts through an ingestion
// operation, sequentially or on a bounded worker pool.
//
// Results always come back in input order and one item's failure never
// affects its neighbors; the Result for a failed item carries the error.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/chronofact/chronofact/pkg/config"
	"github.com/chronofact/chronofact/pkg/types"
)

// Operation ingests one draft and returns the resulting fact, reporting
// whether the fact was newly created.
type Operation func(ctx context.Context, draft types.DraftFact) (*types.Fact, bool, error)

// Result is the outcome for one input item. Index is the item's position in
// the input batch.
type Result struct {
	Index   int           `json:"index"`
	Fact    *types.Fact   `json:"fact,omitempty"`
	Created bool          `json:"created"`
	Err     error         `json:"-"`
	Elapsed time.Duration `json:"elapsed"`
}

// Summary aggregates a finished batch.
type Summary struct {
	Total    int           `json:"total"`
	Created  int           `json:"created"`
	Existing int           `json:"existing"`
	Failed   int           `json:"failed"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Pipeline executes batch ingestion with optional concurrency, per-item
// timeouts and rate limiting.
type Pipeline struct {
	cfg     config.PipelineConfig
	logger  *slog.Logger
	limiter *rate.Limiter
}

// New creates a Pipeline. A nil logger falls back to slog.Default.
func New(cfg config.PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = config.DefaultPipelineWorkers
	}
	p := &Pipeline{cfg: cfg, logger: logger}
	if cfg.RatePerSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	return p
}

// Process runs the batch one item at a time. Context cancellation stops the
// batch; items not yet started report the context error.
func (p *Pipeline) Process(ctx context.Context, drafts []types.DraftFact, op Operation) []Result {
	results := make([]Result, len(drafts))
	for i, draft := range drafts {
		if err := ctx.Err(); err != nil {
			results[i] = Result{Index: i, Err: err}
			continue
		}
		results[i] = p.runOne(ctx, i, draft, op)
	}
	return results
}

// ProcessParallel runs the batch on a worker pool. Each result lands in the
// slot matching its input index regardless of completion order.
func (p *Pipeline) ProcessParallel(ctx context.Context, drafts []types.DraftFact, op Operation) []Result {
	results := make([]Result, len(drafts))
	if len(drafts) == 0 {
		return results
	}

	workers := p.cfg.Workers
	if workers > len(drafts) {
		workers = len(drafts)
	}

	type job struct {
		index int
		draft types.DraftFact
	}
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = p.runOne(ctx, j.index, j.draft, op)
			}
		}()
	}

	for i, draft := range drafts {
		jobs <- job{index: i, draft: draft}
	}
	close(jobs)
	wg.Wait()
	return results
}

// runOne executes a single item with validation, rate limiting, timeout and
// panic isolation.
func (p *Pipeline) runOne(ctx context.Context, index int, draft types.DraftFact, op Operation) (result Result) {
	start := time.Now()
	result = Result{Index: index}
	defer func() {
		result.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("ingest item %d panicked: %v", index, r)
			p.logger.Error("pipeline item panicked", "index", index, "panic", r)
		}
	}()

	if err := draft.Validate(); err != nil {
		result.Err = err
		return result
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			result.Err = err
			return result
		}
	}

	itemCtx := ctx
	if p.cfg.ItemTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.ItemTimeoutSeconds)*time.Second)
		defer cancel()
	}

	fact, created, err := op(itemCtx, draft)
	if err != nil {
		result.Err = err
		p.logger.Warn("pipeline item failed", "index", index, "error", err)
		return result
	}
	result.Fact = fact
	result.Created = created
	return result
}

// Summarize folds a result slice into batch totals.
func Summarize(results []Result, elapsed time.Duration) Summary {
	summary := Summary{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		switch {
		case r.Err != nil:
			summary.Failed++
		case r.Created:
			summary.Created++
		default:
			summary.Existing++
		}
	}
	return summary
}
