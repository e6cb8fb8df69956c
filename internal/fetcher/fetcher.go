package fetcher

import (
	"context"

	"stockdata/internal/history"
)

const (
	// DefaultPeriod requests all available history.
	DefaultPeriod = "max"
	// DefaultInterval requests one row per trading day.
	DefaultInterval = "1d"
)

// Provider retrieves the price history of a single symbol.
// A well-formed answer with no rows is returned as an empty table, not an error.
type Provider interface {
	History(ctx context.Context, symbol, period, interval string) (*history.Table, error)
}

// SessionFactory opens a fresh provider session. Every symbol gets its own
// session so that no client state or cache is shared between workers.
// Sessions that implement io.Closer are closed once the symbol is done.
type SessionFactory func() Provider

// Request is the immutable unit of work handed to a worker.
type Request struct {
	Symbol   string
	Dir      string
	Period   string
	Interval string
}

// NewRequest builds a Request with the default period and interval.
func NewRequest(symbol, dir string) Request {
	return Request{
		Symbol:   symbol,
		Dir:      dir,
		Period:   DefaultPeriod,
		Interval: DefaultInterval,
	}
}

func (r Request) withDefaults() Request {
	if r.Period == "" {
		r.Period = DefaultPeriod
	}
	if r.Interval == "" {
		r.Interval = DefaultInterval
	}
	return r
}
