package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"stockdata/internal/config"
	"stockdata/internal/fetcher"
	"stockdata/internal/ratelimit"
	"stockdata/internal/readme"
	"stockdata/internal/store"
	"stockdata/internal/tickers"
	"stockdata/internal/tzcache"
	"stockdata/internal/yahoo"
)

// Run executes one job: resolve the group, take this invocation's chunk,
// fetch every symbol, then regenerate the status document. Symbol-level
// failures are logged and do not fail the run.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reporter := readme.NewReporter(cfg.ReadmePath, logger)

	if cfg.UpdateReadmeOnly {
		logger.Info("only updating status document as requested")
		_ = reporter.Update()
		return nil
	}

	group, err := tickers.ParseGroup(cfg.Group)
	if err != nil {
		return err
	}
	writer, err := store.NewWriter(cfg.OutputFormat)
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.DataDir, group.Folder())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	resolver := tickers.NewResolver(tickers.NewSP500Scraper(cfg.SP500URL, cfg.UserAgent, logger), logger)
	symbols := resolver.Resolve(ctx, group)

	if cfg.Chunked {
		chunk := cfg.Chunk()
		symbols = tickers.Partition(symbols, chunk.Index, chunk.Total)
		logger.Info("processing chunk", "chunk", chunk.String(), "tickers", len(symbols))
	}

	if cfg.YahooRateLimit > 0 {
		ratelimit.GetLimiter().SetLimit(ratelimit.APIYahoo, rate.Limit(cfg.YahooRateLimit), max(1, int(cfg.YahooRateLimit)))
	}

	shared := prepareTimezones(ctx, cfg, logger)
	if shared != nil {
		defer shared.Close()
	}

	retrier := fetcher.NewRetrier(
		newSessionFactory(cfg, shared, logger),
		writer,
		fetcher.RetryConfig{MaxAttempts: cfg.MaxRetries, Backoff: cfg.RetryBackoff},
		logger,
	)

	outcomes := New(retrier, cfg.Workers(), logger.With("group", group.String())).
		Dispatch(ctx, symbols, dir, cfg.Period, cfg.Interval)

	summary := fetcher.Summarize(outcomes)
	logger.Info("updates finished",
		"group", group.String(),
		"tickers", summary.Total(),
		"success", summary.Success,
		"empty", summary.Empty,
		"failure", summary.Failure)

	_ = reporter.Update()
	return nil
}

// prepareTimezones creates the shared time zone cache and loads it into
// memory. It returns nil when either step fails.
func prepareTimezones(ctx context.Context, cfg *config.Config, logger *slog.Logger) *tzcache.Memo {
	db, err := tzcache.Prepare(ctx, cfg.CacheDir, cfg.LockTimeout, logger)
	if err != nil {
		logger.Warn("timezone cache pre-initialization failed, workers will open their own", "error", err)
		return nil
	}
	memo, err := tzcache.NewMemo(ctx, db)
	if err != nil {
		db.Close()
		logger.Warn("loading timezone cache failed, workers will open their own", "error", err)
		return nil
	}
	logger.Debug("timezone cache loaded", "zones", memo.Len())
	return memo
}

// session is one symbol's provider session. It closes the timezone cache it
// opened itself when the shared one was unavailable.
type session struct {
	*yahoo.Client
	own *tzcache.Store
}

func (s *session) Close() error {
	if s.own != nil {
		return s.own.Close()
	}
	return nil
}

func newSessionFactory(cfg *config.Config, shared *tzcache.Memo, logger *slog.Logger) fetcher.SessionFactory {
	return func() fetcher.Provider {
		s := &session{}
		opts := yahoo.Options{
			BaseURL:   cfg.YahooBaseURL,
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.RequestTimeout,
			Logger:    logger,
		}

		switch {
		case shared != nil:
			opts.Timezones = shared
		default:
			own, err := tzcache.Open(cfg.CacheDir)
			if err != nil {
				logger.Debug("running without timezone cache", "error", err)
				break
			}
			s.own = own
			opts.Timezones = own
		}

		s.Client = yahoo.NewClient(opts)
		return s
	}
}
