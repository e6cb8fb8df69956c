package testutil

import (
	"context"
	"sync"
	"time"

	"stockdata/internal/fetcher"
	"stockdata/internal/history"
)

// NewYork is a fixed UTC-5 zone, so tests do not depend on a tz database.
var NewYork = time.FixedZone("EST", -5*60*60)

// MockProvider is a mock implementation of fetcher.Provider for testing.
// It counts calls per symbol.
type MockProvider struct {
	HistoryFunc func(ctx context.Context, symbol, period, interval string) (*history.Table, error)

	mu    sync.Mutex
	calls map[string]int
}

// History implements fetcher.Provider
func (m *MockProvider) History(ctx context.Context, symbol, period, interval string) (*history.Table, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, symbol, period, interval)
	}
	return NewTable(symbol, 3), nil
}

// Calls returns how many times History was called for symbol.
func (m *MockProvider) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// Sessions returns a SessionFactory that hands out p for every symbol.
func Sessions(p fetcher.Provider) fetcher.SessionFactory {
	return func() fetcher.Provider { return p }
}

// NewTable builds a daily table with rows consecutive sessions starting
// 2024-01-02, priced from 100.0 upwards.
func NewTable(symbol string, rows int) *history.Table {
	t := &history.Table{Symbol: symbol, Index: history.IndexDate}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, NewYork)
	for i := 0; i < rows; i++ {
		price := 100.0 + float64(i)
		t.Bars = append(t.Bars, history.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price + 1.5,
			Low:    price - 0.5,
			Close:  price + 0.25,
			Volume: int64(1000 * (i + 1)),
		})
	}
	return t
}
