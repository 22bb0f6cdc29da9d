package cache

import (
	"context"
	"slices"
	"time"

	"github.com/couchcryptid/price-locator/internal/domain"
	"github.com/jonboulle/clockwork"
)

// MemoryStore is an in-process domain.QuoteCache.
type MemoryStore struct {
	lru *LRU[[]domain.Quote]
}

// NewMemoryStore creates a store of at most maxEntries snapshots, each living
// for ttl as measured by clock.
func NewMemoryStore(maxEntries int, ttl time.Duration, clock clockwork.Clock) *MemoryStore {
	return &MemoryStore{lru: NewLRU[[]domain.Quote](maxEntries, ttl, clock)}
}

// Get returns a copy of the snapshot stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]domain.Quote, bool, error) {
	quotes, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(quotes), true, nil
}

// Set stores a copy of quotes under key.
func (s *MemoryStore) Set(_ context.Context, key string, quotes []domain.Quote) error {
	s.lru.Put(key, slices.Clone(quotes))
	return nil
}

// Clear drops every snapshot.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.lru.Purge()
	return nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStore) Len() int {
	return s.lru.Len()
}
