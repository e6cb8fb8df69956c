package coordinator

import (
	"context"
	"log/slog"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"stockdata/internal/fetcher"
)

// Worker fetches and persists one symbol.
type Worker interface {
	Fetch(ctx context.Context, req fetcher.Request) fetcher.Outcome
}

// Coordinator fans symbols out over a bounded pool of workers and gathers
// one outcome per symbol.
type Coordinator struct {
	worker  Worker
	workers int
	log     *slog.Logger
}

// New creates a Coordinator running at most workers fetches at a time.
func New(w Worker, workers int, logger *slog.Logger) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		worker:  w,
		workers: workers,
		log:     logger,
	}
}

// Dispatch fetches every symbol into dir and returns their outcomes once all
// of them are done. An empty period or interval takes the fetcher default. Outcome order does not follow input order. A worker that
// panics is recorded as a failure for its symbol; the others still finish.
func (c *Coordinator) Dispatch(ctx context.Context, symbols []string, dir, period, interval string) []fetcher.Outcome {
	if len(symbols) == 0 {
		c.log.Info("no tickers to process")
		return []fetcher.Outcome{}
	}

	c.log.Info("starting parallel updates", "tickers", len(symbols), "workers", c.workers)

	p := pool.NewWithResults[fetcher.Outcome]().WithMaxGoroutines(c.workers)
	for _, symbol := range symbols {
		req := fetcher.NewRequest(symbol, dir)
		if period != "" {
			req.Period = period
		}
		if interval != "" {
			req.Interval = interval
		}
		p.Go(func() fetcher.Outcome {
			return c.fetch(ctx, req)
		})
	}
	return p.Wait()
}

func (c *Coordinator) fetch(ctx context.Context, req fetcher.Request) (out fetcher.Outcome) {
	var pc panics.Catcher
	pc.Try(func() {
		out = c.worker.Fetch(ctx, req)
	})
	if r := pc.Recovered(); r != nil {
		err := r.AsError()
		c.log.Error("worker crashed", "symbol", req.Symbol, "error", err)
		return fetcher.Outcome{
			Symbol: req.Symbol,
			Status: fetcher.StatusFailure,
			Err:    err,
		}
	}
	return out
}
