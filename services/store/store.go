package store

import (
	"context"
	"sort"

	"sjsage522/purchasewatcher/internal/purchase"
)

// Store persists purchase records
type Store interface {
	// Upsert inserts purchases not stored yet and returns the ones that were new
	Upsert(ctx context.Context, purchases []purchase.Purchase) ([]purchase.Purchase, error)

	// List returns every stored purchase, newest first
	List(ctx context.Context) ([]purchase.Purchase, error)

	// Stats summarizes the stored purchases
	Stats(ctx context.Context) (Stats, error)

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close releases the store's resources
	Close(ctx context.Context) error
}

// DateRange holds the oldest and newest purchase dates, nil when empty
type DateRange struct {
	Oldest *string `json:"oldest"`
	Newest *string `json:"newest"`
}

// Stats is the summary served by the stats endpoint
type Stats struct {
	TotalPurchases int64     `json:"total_purchases"`
	UniqueProducts int       `json:"unique_products"`
	DateRange      DateRange `json:"date_range"`
}

// sortNewestFirst orders by purchase date then time, both descending
func sortNewestFirst(purchases []purchase.Purchase) {
	sort.SliceStable(purchases, func(i, j int) bool {
		if purchases[i].PurchaseDate != purchases[j].PurchaseDate {
			return purchases[i].PurchaseDate > purchases[j].PurchaseDate
		}
		return purchases[i].PurchaseTime > purchases[j].PurchaseTime
	})
}
