package tzcache

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
)

// Memo is a run-wide in-memory layer over a Store. It is loaded with every
// cached zone up front, so sessions resolve known symbols without touching
// SQLite; only misses and new zones reach the database.
type Memo struct {
	store *Store
	mem   *cache.Cache
}

// NewMemo loads all entries of s into memory.
func NewMemo(ctx context.Context, s *Store) (*Memo, error) {
	zones, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	items := make(map[string]cache.Item, len(zones))
	for symbol, tz := range zones {
		items[symbol] = cache.Item{Object: tz}
	}
	return &Memo{
		store: s,
		mem:   cache.NewFrom(cache.NoExpiration, 0, items),
	}, nil
}

// Lookup returns the zone for symbol from memory, falling back to the store.
func (m *Memo) Lookup(ctx context.Context, symbol string) (string, bool) {
	if v, ok := m.mem.Get(symbol); ok {
		return v.(string), true
	}
	tz, ok := m.store.Lookup(ctx, symbol)
	if ok {
		m.mem.SetDefault(symbol, tz)
	}
	return tz, ok
}

// Save writes tz through to the store unless memory already holds it.
func (m *Memo) Save(ctx context.Context, symbol, tz string) error {
	if v, ok := m.mem.Get(symbol); ok && v.(string) == tz {
		return nil
	}
	if err := m.store.Save(ctx, symbol, tz); err != nil {
		return err
	}
	m.mem.SetDefault(symbol, tz)
	return nil
}

// Len reports how many zones are held in memory.
func (m *Memo) Len() int {
	return m.mem.ItemCount()
}

// Close closes the underlying store.
func (m *Memo) Close() error {
	if err := m.store.Close(); err != nil {
		return fmt.Errorf("closing timezone cache: %w", err)
	}
	return nil
}
