package cache

import (
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// CacheService represents a generic cache service
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}

// BlockKey is the key marking a storefront host as rate limited
func BlockKey(host string) string {
	return "purchasewatcher:block:" + host
}

// StoredKey is the key marking a purchase as already stored
func StoredKey(purchaseKey string) string {
	return "purchasewatcher:stored:" + purchaseKey
}
