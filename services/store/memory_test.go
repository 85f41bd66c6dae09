package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/purchasewatcher/internal/purchase"
)

// Ensure both implementations satisfy Store
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)

func samplePurchases() []purchase.Purchase {
	return []purchase.Purchase{
		{ProductName: "Kurta", ProductID: "p1", CustomerLocation: "Pune", PurchaseDate: "2024-05-01", PurchaseTime: "10:37"},
		{ProductName: "Saree", ProductID: "p2", CustomerLocation: "Delhi", PurchaseDate: "2024-05-02", PurchaseTime: "08:15"},
		{ProductName: "Kurta", ProductID: "p1", CustomerLocation: "Goa", PurchaseDate: "2024-05-01", PurchaseTime: "11:02"},
	}
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stored, err := s.Upsert(ctx, samplePurchases())
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	// Same purchases again are not stored twice
	stored, err = s.Upsert(ctx, samplePurchases())
	require.NoError(t, err)
	assert.Empty(t, stored)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "p2", list[0].ProductID)
	assert.Equal(t, "11:02", list[1].PurchaseTime)
	assert.Equal(t, "10:37", list[2].PurchaseTime)
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalPurchases)
	assert.Nil(t, stats.DateRange.Oldest)
	assert.Nil(t, stats.DateRange.Newest)

	_, err = s.Upsert(ctx, samplePurchases())
	require.NoError(t, err)

	stats, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalPurchases)
	assert.Equal(t, 2, stats.UniqueProducts)
	require.NotNil(t, stats.DateRange.Oldest)
	assert.Equal(t, "2024-05-01", *stats.DateRange.Oldest)
	assert.Equal(t, "2024-05-02", *stats.DateRange.Newest)
}

func TestMemoryStorePing(t *testing.T) {
	s := NewMemoryStore()
	assert.NoError(t, s.Ping(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Ping(ctx))
	assert.NoError(t, s.Close(context.Background()))
}
