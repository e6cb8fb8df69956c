package tickers

import (
	"context"
	"log/slog"
	"slices"
)

// Scraper returns the raw symbols of a live membership table.
type Scraper interface {
	Symbols(ctx context.Context) ([]string, error)
}

// Resolver maps a Group onto its ordered symbol list.
type Resolver struct {
	sp500 Scraper
	log   *slog.Logger
}

// NewResolver creates a Resolver that scrapes S&P 500 membership with sp500.
func NewResolver(sp500 Scraper, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{sp500: sp500, log: logger}
}

// Resolve returns the symbols of g. It never fails: a scrape error is logged
// and yields an empty list, which callers treat as nothing to do.
func (r *Resolver) Resolve(ctx context.Context, g Group) []string {
	switch g {
	case SP500:
		return r.resolveSP500(ctx)
	case HangSengTech:
		r.log.Info("using static Hang Seng Tech constituents", "count", len(hangSengTech))
		return slices.Clone(hangSengTech)
	case MAG7:
		r.log.Info("using static MAG7 tickers", "count", len(mag7))
		return slices.Clone(mag7)
	case Indexes:
		r.log.Info("using static market indexes", "count", len(indexes))
		return slices.Clone(indexes)
	default:
		r.log.Warn("unknown group", "group", g.String())
		return []string{}
	}
}

func (r *Resolver) resolveSP500(ctx context.Context) []string {
	r.log.Info("fetching S&P 500 constituents")
	if r.sp500 == nil {
		r.log.Warn("no S&P 500 scraper configured")
		return []string{}
	}

	raw, err := r.sp500.Symbols(ctx)
	if err != nil {
		r.log.Warn("fetching S&P 500 constituents failed", "error", err)
		return []string{}
	}

	symbols := make([]string, 0, len(raw))
	for _, s := range raw {
		if n := Normalize(s); n != "" {
			symbols = append(symbols, n)
		}
	}
	symbols = Dedupe(symbols)
	r.log.Info("found S&P 500 tickers", "count", len(symbols))
	return symbols
}
