package monitor

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/purchase"
	"sjsage522/purchasewatcher/internal/storefront"
	"sjsage522/purchasewatcher/logger"
	perrors "sjsage522/purchasewatcher/pkg/errors"
	"sjsage522/purchasewatcher/services/cache"
	"sjsage522/purchasewatcher/services/publisher"
	"sjsage522/purchasewatcher/services/store"
)

// publishKey is the stream field new purchases are published under
const publishKey = "b64_purchase"

// storedTTL bounds how long a stored purchase key is remembered in the cache
const storedTTL = 2 * time.Hour

// Result describes one monitoring run of a site
type Result struct {
	RunID         string              `json:"run_id"`
	Site          string              `json:"site"`
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	RecordsFound  int                 `json:"records_found"`
	RecordsStored int                 `json:"records_stored"`
	AllPurchases  []purchase.Observed `json:"all_purchases"`
	Error         string              `json:"error,omitempty"`
	Retryable     bool                `json:"retryable,omitempty"`
}

// Monitor runs fetch, select, store and publish for one site at a time
type Monitor struct {
	fetcher   storefront.Fetcher
	store     store.Store
	cache     cache.CacheService
	publisher publisher.Publisher
	now       func() time.Time
}

// Option customizes a Monitor
type Option func(*Monitor)

// WithClock sets the source of the reference instant used for each run
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// New creates a monitor. cacheSvc may be nil; a nil publisher publishes nothing.
func New(fetcher storefront.Fetcher, st store.Store, cacheSvc cache.CacheService, pub publisher.Publisher, opts ...Option) *Monitor {
	if pub == nil {
		pub = publisher.Noop{}
	}
	m := &Monitor{
		fetcher:   fetcher,
		store:     st,
		cache:     cacheSvc,
		publisher: pub,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run fetches the site's recent purchases and stores those at most maxMinutes old
func (m *Monitor) Run(ctx context.Context, site config.Site, maxMinutes int) (*Result, error) {
	log := logger.ForSite(site.Name)
	result := &Result{
		RunID:        uuid.NewString(),
		Site:         site.Name,
		AllPurchases: []purchase.Observed{},
	}

	if site.ProductURL == "" {
		return result, perrors.NewValidation(site.Name, "product url not set")
	}
	if m.store == nil {
		return result, perrors.NewConfiguration("database not configured", nil)
	}

	entities, err := m.fetcher.FetchPurchases(ctx, site.ProductURL)
	if err != nil {
		return result, err
	}

	now := m.now()
	result.Success = true
	if len(entities) == 0 {
		result.Message = "No purchases found"
		log.Info().Str("run_id", result.RunID).Msg("No purchases found")
		return result, nil
	}

	result.RecordsFound = len(entities)
	result.AllPurchases = purchase.Observe(entities, now)

	selected := m.skipRecentlyStored(purchase.Select(entities, site.Name, now, maxMinutes))

	stored, err := m.store.Upsert(ctx, selected)
	if err != nil {
		result.Success = false
		return result, perrors.NewStorage(site.Name, "failed to store purchases", err)
	}
	result.RecordsStored = len(stored)
	result.Message = "Monitoring completed successfully"

	m.remember(selected)
	m.publish(ctx, site.Name, stored)

	log.Info().
		Str("run_id", result.RunID).
		Int("records_found", result.RecordsFound).
		Int("records_selected", len(selected)).
		Int("records_stored", result.RecordsStored).
		Msg("Monitoring completed")

	return result, nil
}

// skipRecentlyStored drops purchases the cache says were stored already
func (m *Monitor) skipRecentlyStored(purchases []purchase.Purchase) []purchase.Purchase {
	if m.cache == nil {
		return purchases
	}
	kept := purchases[:0]
	for _, p := range purchases {
		if _, err := m.cache.Get(cache.StoredKey(p.Key())); err == nil {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func (m *Monitor) remember(purchases []purchase.Purchase) {
	if m.cache == nil {
		return
	}
	for _, p := range purchases {
		if err := m.cache.Set(cache.StoredKey(p.Key()), []byte("1"), storedTTL); err != nil {
			logger.ForCache().Warn().Err(err).Msg("Failed to remember stored purchase")
			return
		}
	}
}

// publish sends purchases to the stream. Failures are logged, not returned.
func (m *Monitor) publish(ctx context.Context, site string, purchases []purchase.Purchase) {
	for _, p := range purchases {
		data, err := json.Marshal(p)
		if err != nil {
			logger.LogError("publisher", err, "Failed to encode purchase %s", p.Key())
			continue
		}
		if err := m.publisher.Publish(ctx, publishKey, data); err != nil {
			logger.LogError("publisher", perrors.NewPublisher(site, "failed to publish purchase", err), "Publish failed")
			return
		}
	}
}
