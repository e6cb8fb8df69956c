package fetcher

import (
	"context"
	"io"
	"log/slog"
	"time"

	"stockdata/internal/history"
)

const (
	// DefaultMaxAttempts bounds the retrievals made for one symbol.
	DefaultMaxAttempts = 3
	// DefaultBackoff is the fixed pause between attempts.
	DefaultBackoff = 2 * time.Second
)

// Writer persists a non-empty history table under dir and returns the file path.
type Writer interface {
	Write(dir string, t *history.Table) (string, error)
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Retrier fetches one symbol with a bounded number of attempts and a fixed
// backoff, then persists the table. It never returns an error: every failure
// is folded into the Outcome.
type Retrier struct {
	sessions    SessionFactory
	writer      Writer
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	log         *slog.Logger
}

// NewRetrier creates a Retrier. Zero values in cfg fall back to
// DefaultMaxAttempts and DefaultBackoff.
func NewRetrier(sessions SessionFactory, w Writer, cfg RetryConfig, logger *slog.Logger) *Retrier {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrier{
		sessions:    sessions,
		writer:      w,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepContext,
		log:         logger,
	}
}

// Fetch retrieves the history for req.Symbol and writes it to req.Dir.
//
// An empty table stops immediately with StatusEmpty. A retrieval error is
// logged and retried after the backoff until the attempts run out. A write
// error is not retried.
func (r *Retrier) Fetch(ctx context.Context, req Request) Outcome {
	req = req.withDefaults()
	log := r.log.With("symbol", req.Symbol)

	session := r.sessions()
	if c, ok := session.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				log.Debug("closing session", "error", err)
			}
		}()
	}

	log.Info("fetching history", "period", req.Period, "interval", req.Interval)

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		table, err := session.History(ctx, req.Symbol, req.Period, req.Interval)
		if err != nil {
			lastErr = err
			log.Error("fetch attempt failed",
				"attempt", attempt,
				"max_attempts", r.maxAttempts,
				"error_type", TypeOf(err),
				"retryable", IsRetryable(err),
				"error", err)

			if attempt == r.maxAttempts {
				break
			}
			if serr := r.sleep(ctx, r.backoff); serr != nil {
				log.Warn("giving up before retry", "error", serr)
				return Outcome{Symbol: req.Symbol, Status: StatusFailure, Attempts: attempt, Err: lastErr}
			}
			continue
		}

		if table.Empty() {
			log.Warn("no data returned")
			return Outcome{Symbol: req.Symbol, Status: StatusEmpty, Attempts: attempt}
		}

		path, err := r.writer.Write(req.Dir, table)
		if err != nil {
			log.Error("writing history", "error", err)
			return Outcome{Symbol: req.Symbol, Status: StatusFailure, Attempts: attempt, Err: err}
		}

		log.Info("history written", "path", path, "rows", table.Len())
		return Outcome{
			Symbol:   req.Symbol,
			Status:   StatusSuccess,
			Rows:     table.Len(),
			Path:     path,
			Attempts: attempt,
		}
	}

	log.Error("all attempts failed", "attempts", r.maxAttempts, "error", lastErr)
	return Outcome{Symbol: req.Symbol, Status: StatusFailure, Attempts: r.maxAttempts, Err: lastErr}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
