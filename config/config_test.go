package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/purchasewatcher/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8000", config.Addr)
	assert.Equal(t, "mongo", config.StoreDriver)
	assert.Equal(t, "shopdeck_monitoring", config.Database)
	assert.Equal(t, "purchases", config.Collection)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, 60, config.IntervalMinutes)
	assert.Equal(t, 300*time.Second, config.BlockTime)
	assert.Empty(t, config.Sites)
	assert.False(t, config.StoreConfigured())

	// Test with environment variables
	t.Setenv("MONGODB_URL", "mongodb://db.example.com:27017")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("INTERVAL_MINUTES", "40")
	t.Setenv("PRODUCT_URL", "https://shop.example.com/p/kurta")
	t.Setenv("BLOCK_TIME_SECONDS", "30")

	config, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 2, config.RedisDB)
	assert.Equal(t, 40, config.IntervalMinutes)
	assert.Equal(t, 30*time.Second, config.BlockTime)
	assert.True(t, config.StoreConfigured())
	assert.Equal(t, []Site{{Name: "default", ProductURL: "https://shop.example.com/p/kurta", IntervalMinutes: 40}}, config.Sites)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigInvalidInt(t *testing.T) {
	t.Setenv("INTERVAL_MINUTES", "sixty")

	config, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 60, config.IntervalMinutes)
}

func TestLoadSites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	content := `
sites:
  - name: kurtas
    product_url: https://shop.example.com/p/kurta
    interval_minutes: 30
  - product_url: https://shop.example.com/p/saree
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("SITES_FILE", path)
	t.Setenv("PRODUCT_URL", "https://ignored.example.com")

	config, err := LoadConfig()
	require.NoError(t, err)
	require.Len(t, config.Sites, 2)
	assert.Equal(t, Site{Name: "kurtas", ProductURL: "https://shop.example.com/p/kurta", IntervalMinutes: 30}, config.Sites[0])
	assert.Equal(t, Site{Name: "site-2", ProductURL: "https://shop.example.com/p/saree", IntervalMinutes: 60}, config.Sites[1])
}

func TestLoadSitesMissingFile(t *testing.T) {
	_, err := LoadSites(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
}

func TestValidate(t *testing.T) {
	config := &Config{StoreDriver: "memory", IntervalMinutes: 60, RedisStreamCount: 1}
	assert.NoError(t, config.Validate())

	config.StoreDriver = "postgres"
	assert.Error(t, config.Validate())

	config.StoreDriver = "memory"
	config.Sites = []Site{{Name: "a", ProductURL: "https://x"}, {Name: "a", ProductURL: "https://y"}}
	assert.Error(t, config.Validate())

	config.Sites = []Site{{Name: "a"}}
	assert.Error(t, config.Validate())

	config.Sites = nil
	config.IntervalMinutes = 0
	assert.Error(t, config.Validate())
}
