package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"golang.org/x/net/html/charset"
)

// ErrRateLimited is returned when the remote answers 429 or 430
var ErrRateLimited = errors.New("rate limited")

// ErrBodyTooLarge is returned when a response body exceeds MaxBodySize
var ErrBodyTooLarge = errors.New("response body too large")

// MaxBodySize caps how many bytes of a response body are read
var MaxBodySize int64 = 10 << 20

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}

	// DefaultClient is the HTTP client with timeout used when none is given
	DefaultClient = &http.Client{
		Timeout: 30 * time.Second,
	}
)

// Page is a fetched response body converted to UTF-8
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Fetch sends a GET request with a random User-Agent, converts the response
// body to UTF-8 (if needed), and returns it.
func Fetch(ctx context.Context, client *http.Client, url string) (*Page, error) {
	if client == nil {
		client = DefaultClient
	}

	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IN,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, fmt.Errorf("%w; retry after %s", ErrRateLimited, resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s unexpected status code: %d", url, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(bodyBytes)) > MaxBodySize {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", url, ErrBodyTooLarge, MaxBodySize)
	}

	page := &Page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        bodyBytes,
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, page.ContentType)
	if name == "utf-8" || name == "UTF-8" {
		return page, nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	page.Body = buf.Bytes()

	return page, nil
}
