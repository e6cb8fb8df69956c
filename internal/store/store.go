// Package store persists history tables as one file per symbol.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"stockdata/internal/history"
)

// Output formats accepted by NewWriter.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Writer persists a table under dir and returns the path written.
type Writer interface {
	Write(dir string, t *history.Table) (string, error)
}

var errEmptyTable = errors.New("refusing to write an empty table")

// NewWriter returns the Writer for the named format.
func NewWriter(format string) (Writer, error) {
	switch format {
	case "", FormatCSV:
		return CSVWriter{}, nil
	case FormatParquet:
		return ParquetWriter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// replaceFile writes through a temp file in the target directory and renames
// it over path, so readers never see a half-written file.
func replaceFile(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}
