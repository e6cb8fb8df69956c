// Package yahoo retrieves price history from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"resty.dev/v3"

	"stockdata/internal/fetcher"
	"stockdata/internal/history"
	"stockdata/internal/ratelimit"
)

const (
	// DefaultBaseURL is the chart endpoint; the symbol is appended as a path segment.
	DefaultBaseURL = "https://query2.finance.yahoo.com/v8/finance/chart"

	source       = "yahoo"
	notFoundCode = "Not Found"
)

// TimezoneCache remembers each symbol's exchange time zone across runs.
type TimezoneCache interface {
	Lookup(ctx context.Context, symbol string) (string, bool)
	Save(ctx context.Context, symbol, tz string) error
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Timezones is optional.
	Timezones TimezoneCache
	Logger    *slog.Logger
}

// Client is one provider session. It owns its HTTP client, so separate
// Clients never share connection state. Only the time zone cache is shared.
type Client struct {
	client *resty.Client
	tz     TimezoneCache
	log    *slog.Logger
}

// Compile-time interface check.
var _ fetcher.Provider = (*Client)(nil)

// NewClient creates a new chart API session.
func NewClient(opts Options) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		client: fetcher.NewHTTPClient(fetcher.ClientOptions{
			BaseURL:   baseURL,
			UserAgent: opts.UserAgent,
			Timeout:   opts.Timeout,
			Logger:    logger,
		}),
		tz:  opts.Timezones,
		log: logger,
	}
}

// History retrieves the series for symbol over period at interval.
// Yahoo's "Not Found" answer (unknown or delisted symbol) yields an empty table.
func (c *Client) History(ctx context.Context, symbol, period, interval string) (*history.Table, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.APIYahoo); err != nil {
		return nil, fetcher.NewTimeoutError(err).WithSource(source)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetQueryParams(map[string]string{
			"range":          period,
			"interval":       interval,
			"events":         "div,splits",
			"includePrePost": "false",
		}).
		Get("/{symbol}")
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fetcher.NewTimeoutError(err).WithSource(source)
		}
		return nil, fetcher.NewNetworkError(err).WithSource(source)
	}

	var chart ChartResponse
	decodeErr := json.Unmarshal([]byte(resp.String()), &chart)

	if !resp.IsSuccess() {
		if decodeErr == nil && isNotFound(chart.Chart.Error) {
			return emptyTable(symbol, interval), nil
		}
		fe := fetcher.ClassifyHTTPError(resp.StatusCode()).WithSource(source)
		if decodeErr == nil && chart.Chart.Error != nil && chart.Chart.Error.Description != "" {
			fe.Message = chart.Chart.Error.Description
		}
		return nil, fe
	}

	if decodeErr != nil {
		fe := fetcher.NewValidationError("decoding chart response").WithSource(source)
		fe.Cause = decodeErr
		return nil, fe
	}
	if e := chart.Chart.Error; e != nil {
		if isNotFound(e) {
			return emptyTable(symbol, interval), nil
		}
		return nil, fetcher.NewValidationError(e.Code + ": " + e.Description).WithSource(source)
	}
	if len(chart.Chart.Result) == 0 {
		return emptyTable(symbol, interval), nil
	}

	result := chart.Chart.Result[0]
	return buildTable(symbol, interval, result, c.location(ctx, symbol, result.Meta)), nil
}

// location resolves the exchange zone, preferring the response and falling
// back to the shared cache.
func (c *Client) location(ctx context.Context, symbol string, meta Meta) *time.Location {
	name := meta.ExchangeTimezoneName
	if c.tz != nil {
		cached, ok := c.tz.Lookup(ctx, symbol)
		switch {
		case name == "" && ok:
			name = cached
		case name != "" && cached != name:
			if err := c.tz.Save(ctx, symbol, name); err != nil {
				c.log.Debug("caching time zone", "symbol", symbol, "error", err)
			}
		}
	}

	if name != "" {
		loc, err := time.LoadLocation(name)
		if err == nil {
			return loc
		}
		c.log.Debug("unknown time zone, using offset", "symbol", symbol, "tz", name, "error", err)
	}
	if meta.GMTOffset == 0 {
		return time.UTC
	}
	return time.FixedZone("", meta.GMTOffset)
}

func isNotFound(e *ChartError) bool {
	return e != nil && e.Code == notFoundCode
}

func emptyTable(symbol, interval string) *history.Table {
	index := history.IndexDate
	if history.IsIntraday(interval) {
		index = history.IndexDatetime
	}
	return &history.Table{Symbol: symbol, Index: index}
}

// buildTable turns the column arrays into rows. Prices are back-adjusted for
// splits and dividends using adjclose, rows with no prices at all are
// dropped, and daily or coarser stamps are normalized to local midnight.
// For intervals coarser than a day, events land on the bar whose period holds
// them.
func buildTable(symbol, interval string, res ChartResult, loc *time.Location) *history.Table {
	t := emptyTable(symbol, interval)
	if len(res.Timestamp) == 0 || len(res.Indicators.Quote) == 0 {
		return t
	}
	intraday := history.IsIntraday(interval)
	coarse := !intraday && interval != history.DailyInterval

	stamp := func(unix int64) time.Time {
		ts := time.Unix(unix, 0).In(loc)
		if intraday {
			return ts
		}
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	}

	dividends := make(map[int64]float64, len(res.Events.Dividends))
	splits := make(map[int64]float64, len(res.Events.Splits))
	if !coarse {
		for _, d := range res.Events.Dividends {
			dividends[stamp(d.Date).Unix()] += d.Amount
		}
		for _, s := range res.Events.Splits {
			if s.Denominator != 0 {
				splits[stamp(s.Date).Unix()] = s.Numerator / s.Denominator
			}
		}
	}

	q := res.Indicators.Quote[0]
	var adj []*float64
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	t.Bars = make([]history.Bar, 0, len(res.Timestamp))
	for i, unix := range res.Timestamp {
		op, hi, lo, cl := floatAt(q.Open, i), floatAt(q.High, i), floatAt(q.Low, i), floatAt(q.Close, i)
		if math.IsNaN(op) && math.IsNaN(hi) && math.IsNaN(lo) && math.IsNaN(cl) {
			continue
		}
		if a := floatAt(adj, i); !math.IsNaN(a) && !math.IsNaN(cl) && cl != 0 {
			ratio := a / cl
			op, hi, lo, cl = op*ratio, hi*ratio, lo*ratio, a
		}

		ts := stamp(unix)
		bar := history.Bar{
			Time:        ts,
			Open:        op,
			High:        hi,
			Low:         lo,
			Close:       cl,
			Volume:      intAt(q.Volume, i),
			Dividends:   dividends[ts.Unix()],
			StockSplits: splits[ts.Unix()],
		}

		// Yahoo may append a live row that lands on the last session's stamp.
		if n := len(t.Bars); n > 0 && t.Bars[n-1].Time.Equal(ts) {
			t.Bars[n-1] = bar
			continue
		}
		t.Bars = append(t.Bars, bar)
	}

	if coarse {
		bucketEvents(t.Bars, res.Events)
	}
	return t
}

// bucketEvents adds each event to the last bar starting at or before it.
// Events older than the first bar are dropped.
func bucketEvents(bars []history.Bar, ev Events) {
	find := func(unix int64) int {
		at := time.Unix(unix, 0)
		return sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(at) }) - 1
	}
	for _, d := range ev.Dividends {
		if i := find(d.Date); i >= 0 {
			bars[i].Dividends += d.Amount
		}
	}
	for _, s := range ev.Splits {
		if s.Denominator == 0 {
			continue
		}
		if i := find(s.Date); i >= 0 {
			ratio := s.Numerator / s.Denominator
			if bars[i].StockSplits != 0 {
				ratio *= bars[i].StockSplits
			}
			bars[i].StockSplits = ratio
		}
	}
}

func floatAt(s []*float64, i int) float64 {
	if i >= len(s) || s[i] == nil {
		return math.NaN()
	}
	return *s[i]
}

func intAt(s []*int64, i int) int64 {
	if i >= len(s) || s[i] == nil {
		return 0
	}
	return *s[i]
}
