package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{client: client}
}

// Ping checks that the memcache server is reachable
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(safeKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        safeKey(key),
		Value:      value,
		Expiration: expirationSeconds(expiration, time.Now()),
	})
}

// maxRelativeExpiration is the longest expiration memcache reads as relative;
// larger values are taken as absolute unix times
const maxRelativeExpiration = 30 * 24 * time.Hour

// expirationSeconds converts d to memcache's expiration field.
// Sub-second durations round up to one second so they never mean "no expiry".
func expirationSeconds(d time.Duration, now time.Time) int32 {
	if d <= 0 {
		return 0
	}
	if d > maxRelativeExpiration {
		return int32(now.Add(d).Unix())
	}
	secs := d / time.Second
	if d%time.Second != 0 {
		secs++
	}
	return int32(secs)
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(safeKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// safeKey hashes keys memcache would reject (spaces, control chars, > 250 bytes)
func safeKey(key string) string {
	if len(key) <= 250 && !containsInvalid(key) {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return "purchasewatcher:h:" + hex.EncodeToString(sum[:])
}

func containsInvalid(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return true
		}
	}
	return false
}
