// Package datasource fetches the external data the dashboard shows: news
// articles (NewsAPI, Yahoo Finance RSS) and price quotes (Yahoo Finance
// chart API).
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// Source names, also used to namespace the sentiment logs.
const (
	SourceNewsAPI = "newsapi"
	SourceRSS     = "rss"
	// SourceAll selects every registered provider at once.
	SourceAll = "all"
)

// cacheHolder is implemented by sources that keep a response cache.
type cacheHolder interface {
	// Forget drops whatever is cached for query.
	Forget(query string)
	// Cleanup drops expired entries.
	Cleanup()
}

// NewsProvider fetches articles for a ticker, or for general market news
// when query is models.MarketQuery.
type NewsProvider interface {
	// Name returns the source name the provider logs under.
	Name() string
	Fetch(ctx context.Context, query string) ([]models.Article, error)
}

// CompanyResolver looks up a company's display name. It returns "" when
// the name is unknown.
type CompanyResolver interface {
	CompanyName(ctx context.Context, ticker string) string
}

// --- Sentinel errors ---

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrNoAPIKey is returned by providers that need a key when none is set.
var ErrNoAPIKey = errors.New("API key not configured")

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// IsHTTPStatus reports whether err wraps an ErrHTTP with the given code.
func IsHTTPStatus(err error, code int) bool {
	var he *ErrHTTP
	return errors.As(err, &he) && he.StatusCode == code
}

// --- Shared HTTP client helpers ---

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// HTTPClient is a pre-configured HTTP client with reasonable timeouts.
var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// doGet performs a GET request with the given URL and headers, returning the response body.
// The caller is responsible for closing the returned ReadCloser.
func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if client == nil {
		client = HTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	return resp.Body, nil
}
