package store

import (
	"context"
	"sync"

	"sjsage522/purchasewatcher/internal/purchase"
)

// MemoryStore keeps purchases in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	purchases []purchase.Purchase
	keys      map[string]bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]bool)}
}

// Upsert implements Store
func (m *MemoryStore) Upsert(ctx context.Context, purchases []purchase.Purchase) ([]purchase.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted []purchase.Purchase
	for _, p := range purchases {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		key := p.Key()
		if m.keys[key] {
			continue
		}
		m.keys[key] = true
		m.purchases = append(m.purchases, p)
		inserted = append(inserted, p)
	}
	return inserted, nil
}

// List implements Store
func (m *MemoryStore) List(ctx context.Context) ([]purchase.Purchase, error) {
	m.mu.RLock()
	out := append([]purchase.Purchase(nil), m.purchases...)
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

// Stats implements Store
func (m *MemoryStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{TotalPurchases: int64(len(m.purchases))}
	products := make(map[string]bool)
	for i, p := range m.purchases {
		products[p.ProductID] = true
		if i == 0 || p.PurchaseDate < *stats.DateRange.Oldest {
			date := p.PurchaseDate
			stats.DateRange.Oldest = &date
		}
		if i == 0 || p.PurchaseDate > *stats.DateRange.Newest {
			date := p.PurchaseDate
			stats.DateRange.Newest = &date
		}
	}
	stats.UniqueProducts = len(products)
	return stats, nil
}

// Ping implements Store
func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close implements Store
func (m *MemoryStore) Close(ctx context.Context) error {
	return nil
}
