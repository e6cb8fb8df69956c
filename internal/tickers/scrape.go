package tickers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"resty.dev/v3"

	"stockdata/internal/fetcher"
	"stockdata/internal/ratelimit"
)

const (
	// DefaultSP500URL is the public constituents page. Its first table lists
	// one company per row with the ticker in the "Symbol" column.
	DefaultSP500URL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

	sp500Column     = "Symbol"
	scrapeSource    = "wikipedia"
	scrapeRetries   = 2
	htmlContentType = "text/html,application/xhtml+xml"
)

// ErrTableNotFound is returned when the page has no table to read.
var ErrTableNotFound = errors.New("no table found")

// TableScraper reads one column of the first HTML table on a page.
type TableScraper struct {
	url    string
	column string
	client *resty.Client
}

// NewSP500Scraper creates a scraper for the S&P 500 constituents page.
// Retry logs go to logger.
func NewSP500Scraper(url, userAgent string, logger *slog.Logger) *TableScraper {
	if url == "" {
		url = DefaultSP500URL
	}
	return &TableScraper{
		url:    url,
		column: sp500Column,
		client: fetcher.NewHTTPClient(fetcher.ClientOptions{
			UserAgent:  userAgent,
			Accept:     htmlContentType,
			RetryCount: scrapeRetries,
			Logger:     logger,
		}),
	}
}

// Symbols downloads the page and returns the raw column values in row order.
func (s *TableScraper) Symbols(ctx context.Context) ([]string, error) {
	if err := ratelimit.GetLimiter().Wait(ctx, ratelimit.APIWikipedia); err != nil {
		return nil, fetcher.NewTimeoutError(err).WithSource(scrapeSource)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		Get(s.url)
	if err != nil {
		return nil, fetcher.NewNetworkError(err).WithSource(scrapeSource)
	}
	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode()).WithSource(scrapeSource)
	}

	values, err := ReadTableColumn(strings.NewReader(resp.String()), s.column)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.url, err)
	}
	return values, nil
}

// ReadTableColumn parses an HTML document and returns the text of the named
// column of its first table. The header row is the first row made of <th>
// cells; empty cells are skipped.
func ReadTableColumn(r io.Reader, column string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}

	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, ErrTableNotFound
	}

	col := -1
	var values []string
	for _, row := range findAll(table, atom.Tr) {
		cells := rowCells(row)
		if col < 0 {
			if isHeaderRow(cells) {
				col = indexOf(cells, column)
				if col < 0 {
					return nil, fmt.Errorf("column %q not in table header", column)
				}
			}
			continue
		}
		if col >= len(cells) {
			continue
		}
		if v := textOf(cells[col]); v != "" {
			values = append(values, v)
		}
	}

	if col < 0 {
		return nil, fmt.Errorf("table has no header row")
	}
	return values, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// findAll collects descendants of type a without descending into nested tables.
func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom == a {
				out = append(out, c)
				continue
			}
			if c.DataAtom == atom.Table {
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func rowCells(tr *html.Node) []*html.Node {
	var cells []*html.Node
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			cells = append(cells, c)
		}
	}
	return cells
}

func isHeaderRow(cells []*html.Node) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c.DataAtom != atom.Th {
			return false
		}
	}
	return true
}

func indexOf(cells []*html.Node, name string) int {
	for i, c := range cells {
		if strings.EqualFold(textOf(c), name) {
			return i
		}
	}
	return -1
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		// Footnote markers such as [1] are not part of the value.
		if n.Type == html.ElementNode && n.DataAtom == atom.Sup {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
