// Package readme regenerates the repository status document.
package readme

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"text/template"
	"time"

	"stockdata/internal/tickers"
)

// TimestampLayout is how the last-updated time is printed.
const TimestampLayout = "2006-01-02 15:04:05 UTC"

var tmpl = template.Must(template.New("readme").Parse(`# Tech-Stocks-Data

A repository containing historical stock data for major tech indices and companies.

## Data Collections

{{range .Groups}}- **{{.Title}}**: {{.Description}}
{{end}}
## Data Update Frequency

Data is updated daily via GitHub Actions. Each update creates a fresh repository state.

## Last Updated

{{.LastUpdated}}

## Data Source

All stock data is fetched from the Yahoo Finance chart API.

## Usage

The data is stored in CSV format and can be used for financial analysis, machine learning models, or visualization projects.
`))

type collection struct {
	Title       string
	Description string
}

// Render returns the status document for the given time.
func Render(now time.Time) string {
	data := struct {
		Groups      []collection
		LastUpdated string
	}{
		LastUpdated: now.UTC().Format(TimestampLayout),
	}
	for _, g := range tickers.All() {
		data.Groups = append(data.Groups, collection{Title: g.Title(), Description: g.Description()})
	}

	var buf bytes.Buffer
	// The template and its data are fixed; execution cannot fail.
	_ = tmpl.Execute(&buf, data)
	return buf.String()
}

// Reporter writes the status document to a path.
type Reporter struct {
	path string
	now  func() time.Time
	log  *slog.Logger
}

// NewReporter creates a Reporter for path.
func NewReporter(path string, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{path: path, now: time.Now, log: logger}
}

// Update overwrites the document. Failures are logged and returned; callers
// are free to ignore them.
func (r *Reporter) Update() error {
	r.log.Info("updating status document", "path", r.path)
	if err := os.WriteFile(r.path, []byte(Render(r.now())), 0o644); err != nil {
		r.log.Error("updating status document failed", "path", r.path, "error", err)
		return fmt.Errorf("writing %s: %w", r.path, err)
	}
	r.log.Info("status document updated", "path", r.path)
	return nil
}
