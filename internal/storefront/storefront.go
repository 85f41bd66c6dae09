package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/purchasewatcher/helpers"
	"sjsage522/purchasewatcher/internal/purchase"
	"sjsage522/purchasewatcher/logger"
	"sjsage522/purchasewatcher/services/cache"
	perrors "sjsage522/purchasewatcher/pkg/errors"
)

// RecentPurchaseTitle is the title of the widget holding recent purchases
const RecentPurchaseTitle = "RECENT PURCHASE"

// pageAPIPattern finds the storefront page API referenced from a product page
var pageAPIPattern = regexp.MustCompile(`(?:https?://[^"'\s<>]+)?/api/prashth/page/[^"'\s<>\\]+`)

// Fetcher retrieves the recent purchase widget entities of a product page
type Fetcher interface {
	FetchPurchases(ctx context.Context, productURL string) ([]purchase.Entity, error)
}

// Widget is one widget of a storefront page
type Widget struct {
	Title    string            `json:"title"`
	Entities []purchase.Entity `json:"entities"`
}

// Envelope is the storefront page API response
type Envelope struct {
	Code int `json:"code"`
	Data struct {
		Widgets []Widget `json:"widgets"`
	} `json:"data"`
}

// RecentPurchases returns the entities of the recent purchase widget.
// found is false when the page has no such widget.
func (e *Envelope) RecentPurchases() (entities []purchase.Entity, found bool) {
	for _, w := range e.Data.Widgets {
		if w.Title == RecentPurchaseTitle {
			return w.Entities, true
		}
	}
	return nil, false
}

// Client fetches widgets over HTTP
type Client struct {
	HTTP      *http.Client
	Cache     cache.CacheService
	BlockTime time.Duration
}

// NewClient creates a storefront client. cacheSvc may be nil.
func NewClient(timeout time.Duration, cacheSvc cache.CacheService, blockTime time.Duration) *Client {
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Cache:     cacheSvc,
		BlockTime: blockTime,
	}
}

// FetchPurchases implements Fetcher. The product URL may point at the page API
// itself or at an HTML product page that embeds or references it.
func (c *Client) FetchPurchases(ctx context.Context, productURL string) ([]purchase.Entity, error) {
	u, err := url.Parse(productURL)
	if err != nil || u.Host == "" {
		return nil, perrors.NewValidation(productURL, "invalid product url")
	}

	page, err := c.fetch(ctx, u)
	if err != nil {
		return nil, err
	}

	if isJSON(page) {
		return decodeEnvelope(productURL, page.Body)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, perrors.NewParsing(productURL, "failed to parse product page", err)
	}

	if entities, found := embeddedPurchases(doc); found {
		return entities, nil
	}

	apiURL := findPageAPI(doc, page.Body)
	if apiURL == "" {
		logger.ForSite(u.Host).Debug().Str("url", productURL).Msg("No page API reference found")
		return []purchase.Entity{}, nil
	}

	ref, err := url.Parse(apiURL)
	if err != nil {
		return nil, perrors.NewParsing(productURL, "invalid page api url", err)
	}
	apiPage, err := c.fetch(ctx, u.ResolveReference(ref))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(productURL, apiPage.Body)
}

// fetch GETs u unless its host is blocked; a rate limited answer blocks the host
func (c *Client) fetch(ctx context.Context, u *url.URL) (*helpers.Page, error) {
	key := cache.BlockKey(u.Host)
	if c.Cache != nil {
		if _, err := c.Cache.Get(key); err == nil {
			return nil, perrors.NewRateLimit(u.Host, c.BlockTime)
		}
	}

	page, err := helpers.Fetch(ctx, c.HTTP, u.String())
	if errors.Is(err, helpers.ErrRateLimited) {
		limited := perrors.NewRateLimit(u.Host, c.BlockTime)
		if c.Cache != nil && c.BlockTime > 0 {
			if cerr := c.Cache.Set(key, []byte(fmt.Sprintf("%d", int(c.BlockTime.Seconds()))), c.BlockTime); cerr != nil {
				limited.Err = perrors.NewCache(u.Host, "failed to store rate limit block", cerr)
				logger.ForCache().Warn().Err(limited.Err).Str("host", u.Host).Msg("Host not blocked")
			}
		}
		return nil, limited
	}
	if err != nil {
		return nil, perrors.NewNetwork(u.Host, "failed to fetch "+u.String(), err)
	}
	return page, nil
}

func isJSON(page *helpers.Page) bool {
	if strings.Contains(page.ContentType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(page.Body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func decodeEnvelope(site string, body []byte) ([]purchase.Entity, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, perrors.NewParsing(site, "failed to decode page api response", err)
	}
	if env.Code != http.StatusOK {
		return nil, perrors.NewParsing(site, fmt.Sprintf("page api returned code %d", env.Code), nil)
	}

	entities, _ := env.RecentPurchases()
	if entities == nil {
		entities = []purchase.Entity{}
	}
	return entities, nil
}

// embeddedPurchases looks for the widget inside JSON script blocks
func embeddedPurchases(doc *goquery.Document) ([]purchase.Entity, bool) {
	var (
		entities []purchase.Entity
		found    bool
	)
	doc.Find(`script[type="application/json"], script#__NEXT_DATA__`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		entities, found = findWidget(data)
		return !found
	})
	return entities, found
}

// findWidget walks decoded JSON for an object titled RecentPurchaseTitle.
// Object keys are visited in sorted order so the first match is stable.
func findWidget(node any) ([]purchase.Entity, bool) {
	switch v := node.(type) {
	case map[string]any:
		if v["title"] == RecentPurchaseTitle {
			if raw, ok := v["entities"]; ok {
				data, err := json.Marshal(raw)
				if err != nil {
					return nil, false
				}
				var entities []purchase.Entity
				if err := json.Unmarshal(data, &entities); err != nil {
					return nil, false
				}
				if entities == nil {
					entities = []purchase.Entity{}
				}
				return entities, true
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if entities, ok := findWidget(v[k]); ok {
				return entities, true
			}
		}
	case []any:
		for _, child := range v {
			if entities, ok := findWidget(child); ok {
				return entities, true
			}
		}
	}
	return nil, false
}

// findPageAPI returns the first page API url referenced by the document
func findPageAPI(doc *goquery.Document, body []byte) string {
	var found string
	doc.Find(`link[href*="/api/prashth/page/"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		found, _ = s.Attr("href")
		return found == ""
	})
	if found != "" {
		return found
	}
	return string(pageAPIPattern.Find(body))
}
