package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"sjsage522/purchasewatcher/pkg/errors"
)

// Site is a storefront product page to monitor
type Site struct {
	Name            string `yaml:"name"`
	ProductURL      string `yaml:"product_url"`
	IntervalMinutes int    `yaml:"interval_minutes"`
}

// Config represents the application configuration
type Config struct {
	// HTTP server
	Addr string

	// Document store
	StoreDriver string
	MongoURL    string
	Database    string
	Collection  string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Monitoring
	ProductURL      string
	IntervalMinutes int
	Sites           []Site
	CrawlSchedule   string
	BlockTime       time.Duration
	RequestTimeout  time.Duration

	// Environment
	Environment string
}

// sitesFile is the layout of SITES_FILE
type sitesFile struct {
	Sites []Site `yaml:"sites"`
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Addr:                 getEnv("HTTP_ADDR", ":8000"),
		StoreDriver:          getEnv("STORE_DRIVER", "mongo"),
		MongoURL:             getEnv("MONGODB_URL", ""),
		Database:             getEnv("MONGODB_DATABASE", "shopdeck_monitoring"),
		Collection:           getEnv("MONGODB_COLLECTION", "purchases"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "purchases"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		ProductURL:           getEnv("PRODUCT_URL", ""),
		IntervalMinutes:      getEnvInt("INTERVAL_MINUTES", 60),
		CrawlSchedule:        getEnv("CRAWL_SCHEDULE", ""),
		BlockTime:            time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 300)) * time.Second,
		RequestTimeout:       time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		Environment:          getEnv("PURCHASE_ENVIRONMENT", "development"),
	}

	if path := getEnv("SITES_FILE", ""); path != "" {
		sites, err := LoadSites(path)
		if err != nil {
			return nil, err
		}
		cfg.Sites = sites
	}

	// A bare PRODUCT_URL is the single default site
	if len(cfg.Sites) == 0 && cfg.ProductURL != "" {
		cfg.Sites = []Site{{Name: "default", ProductURL: cfg.ProductURL}}
	}

	for i := range cfg.Sites {
		if cfg.Sites[i].IntervalMinutes <= 0 {
			cfg.Sites[i].IntervalMinutes = cfg.IntervalMinutes
		}
	}

	return cfg, nil
}

// LoadSites reads the list of monitored sites from a YAML file
func LoadSites(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to read sites file %s", path), err)
	}

	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to parse sites file %s", path), err)
	}

	for i, s := range file.Sites {
		if s.Name == "" {
			file.Sites[i].Name = fmt.Sprintf("site-%d", i+1)
		}
	}

	return file.Sites, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "mongo", "memory":
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver), nil)
	}
	if c.IntervalMinutes <= 0 {
		return errors.NewConfiguration("INTERVAL_MINUTES must be positive", nil)
	}
	if c.RedisStreamCount <= 0 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}

	seen := make(map[string]bool, len(c.Sites))
	for _, s := range c.Sites {
		if s.ProductURL == "" {
			return errors.NewConfiguration(fmt.Sprintf("site %s has no product_url", s.Name), nil)
		}
		if seen[s.Name] {
			return errors.NewConfiguration(fmt.Sprintf("duplicate site name %s", s.Name), nil)
		}
		seen[s.Name] = true
	}
	return nil
}

// StoreConfigured reports whether a document store is available
func (c *Config) StoreConfigured() bool {
	return c.StoreDriver == "memory" || c.MongoURL != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
