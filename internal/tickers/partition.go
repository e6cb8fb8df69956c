package tickers

import (
	"fmt"
	"slices"
	"strings"
)

// Chunk selects one contiguous slice of a ticker list for a matrix job.
type Chunk struct {
	Index int
	Total int
}

// Validate checks 0 <= Index < Total.
func (c Chunk) Validate() error {
	if c.Total < 1 {
		return fmt.Errorf("total chunks must be at least 1, got %d", c.Total)
	}
	if c.Index < 0 || c.Index >= c.Total {
		return fmt.Errorf("chunk index %d out of range [0, %d)", c.Index, c.Total)
	}
	return nil
}

// String renders the chunk 1-based, as shown in job logs.
func (c Chunk) String() string {
	return fmt.Sprintf("%d/%d", c.Index+1, c.Total)
}

// Partition returns the sub-list chunk index of total is responsible for.
// Chunks are ceil(len/total) long; trailing chunks may be short or empty.
func Partition(tickers []string, index, total int) []string {
	if total < 1 || index < 0 {
		return []string{}
	}
	size := (len(tickers) + total - 1) / total
	start := index * size
	if start >= len(tickers) {
		return []string{}
	}
	end := min(start+size, len(tickers))
	return slices.Clone(tickers[start:end])
}

// Normalize converts a symbol to the provider's notation: class-share dots
// become hyphens (BRK.B → BRK-B).
func Normalize(symbol string) string {
	return strings.ReplaceAll(strings.TrimSpace(symbol), ".", "-")
}

// Dedupe drops repeated symbols, keeping the first occurrence.
func Dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
