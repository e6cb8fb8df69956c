package store

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"stockdata/internal/history"
)

// TimeLayout renders the index column the way pandas writes tz-aware timestamps.
const TimeLayout = "2006-01-02 15:04:05-07:00"

// Compile-time interface check.
var _ Writer = CSVWriter{}

// CSVWriter writes <dir>/<symbol>.csv with a header row and the index column first.
type CSVWriter struct{}

// Path returns the file a symbol's table is written to.
func (CSVWriter) Path(dir, symbol string) string {
	return filepath.Join(dir, symbol+".csv")
}

// Write overwrites the symbol's file with the full table.
func (w CSVWriter) Write(dir string, t *history.Table) (string, error) {
	if t.Empty() {
		return "", errEmptyTable
	}
	path := w.Path(dir, t.Symbol)

	err := replaceFile(path, func(f *os.File) error {
		buf := bufio.NewWriter(f)
		cw := csv.NewWriter(buf)
		if err := cw.Write(t.Header()); err != nil {
			return err
		}
		for _, b := range t.Bars {
			if err := cw.Write(csvRecord(b)); err != nil {
				return err
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("writing csv rows: %w", err)
		}
		return buf.Flush()
	})
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

func csvRecord(b history.Bar) []string {
	return []string{
		b.Time.Format(TimeLayout),
		formatFloat(b.Open),
		formatFloat(b.High),
		formatFloat(b.Low),
		formatFloat(b.Close),
		strconv.FormatInt(b.Volume, 10),
		formatFloat(b.Dividends),
		formatFloat(b.StockSplits),
	}
}

// formatFloat prints the shortest round-trip form, keeps a ".0" on whole
// numbers and leaves missing values blank.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !math.IsInf(v, 0) && !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
