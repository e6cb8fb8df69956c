// Package history holds the in-memory form of a symbol's price history.
package history

import "time"

const (
	// IndexDate names the index column of daily and coarser tables.
	IndexDate = "Date"
	// IndexDatetime names the index column of intraday tables.
	IndexDatetime = "Datetime"
)

// ValueColumns are the data columns, in file order, after the index column.
var ValueColumns = []string{"Open", "High", "Low", "Close", "Volume", "Dividends", "Stock Splits"}

// Bar is one row of a history table. Missing prices are NaN.
type Bar struct {
	Time        time.Time
	Open        float64
	High        float64
	Low         float64
	Close       float64
	Volume      int64
	Dividends   float64
	StockSplits float64
}

// Table is the retrieved time series for one symbol, oldest row first.
type Table struct {
	Symbol string
	// Index is IndexDate or IndexDatetime.
	Index string
	Bars  []Bar
}

// Len returns the number of rows. A nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Bars)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Header returns the column names including the index column.
func (t *Table) Header() []string {
	index := IndexDate
	if t != nil && t.Index != "" {
		index = t.Index
	}
	return append([]string{index}, ValueColumns...)
}

// DailyInterval is one bar per trading session.
const DailyInterval = "1d"

// IsIntraday reports whether interval is finer than one day.
func IsIntraday(interval string) bool {
	switch interval {
	case DailyInterval, "5d", "1wk", "1mo", "3mo":
		return false
	default:
		return true
	}
}
