package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"stockdata/internal/history"
)

// Compile-time interface check.
var _ Writer = ParquetWriter{}

// BarRecord is the Parquet schema for one history row.
type BarRecord struct {
	Symbol      string  `parquet:"symbol"`
	Date        int64   `parquet:"date,timestamp(millisecond)"` // Unix ms
	Timezone    string  `parquet:"timezone"`
	Open        float64 `parquet:"open"`
	High        float64 `parquet:"high"`
	Low         float64 `parquet:"low"`
	Close       float64 `parquet:"close"`
	Volume      int64   `parquet:"volume"`
	Dividends   float64 `parquet:"dividends"`
	StockSplits float64 `parquet:"stock_splits"`
}

// ParquetWriter writes <dir>/<symbol>.parquet.
type ParquetWriter struct{}

// Path returns the file a symbol's table is written to.
func (ParquetWriter) Path(dir, symbol string) string {
	return filepath.Join(dir, symbol+".parquet")
}

// Write overwrites the symbol's file with the full table.
func (w ParquetWriter) Write(dir string, t *history.Table) (string, error) {
	if t.Empty() {
		return "", errEmptyTable
	}
	path := w.Path(dir, t.Symbol)

	records := make([]BarRecord, 0, len(t.Bars))
	for _, b := range t.Bars {
		records = append(records, BarRecord{
			Symbol:      t.Symbol,
			Date:        b.Time.UnixMilli(),
			Timezone:    b.Time.Location().String(),
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			Volume:      b.Volume,
			Dividends:   b.Dividends,
			StockSplits: b.StockSplits,
		})
	}

	err := replaceFile(path, func(f *os.File) error {
		pw := parquet.NewGenericWriter[BarRecord](f)
		if _, err := pw.Write(records); err != nil {
			return err
		}
		return pw.Close()
	})
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
