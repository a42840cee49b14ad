package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/infra"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// Source labels attached to RSS articles.
const (
	RSSTickerLabel = "Yahoo Finance RSS"
	RSSMarketLabel = "Yahoo Finance (^DJI)"
)

// RSS implements NewsProvider over the Yahoo Finance headline feeds.
type RSS struct {
	tickerURL    string // %s is replaced by the ticker
	marketURL    string
	maxItems     int
	lookbackDays int

	cache   *infra.Cache[[]models.Article]
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
	now     utils.Clock
	logger  *slog.Logger
}

// RSSOption configures an RSS provider.
type RSSOption func(*RSS)

// WithRSSClient sets the HTTP client the feed parser uses.
func WithRSSClient(c *http.Client) RSSOption {
	return func(r *RSS) { r.parser.Client = c }
}

// WithRSSClock pins "now" for the lookback window and the cache.
func WithRSSClock(now utils.Clock) RSSOption {
	return func(r *RSS) {
		r.now = now
		r.cache.WithClock(now)
	}
}

// WithRSSLogger sets the logger.
func WithRSSLogger(l *slog.Logger) RSSOption {
	return func(r *RSS) { r.logger = l }
}

// NewRSS creates an RSS provider from the news config.
func NewRSS(cfg config.NewsConfig, opts ...RSSOption) *RSS {
	parser := gofeed.NewParser()
	parser.UserAgent = DefaultUserAgent
	r := &RSS{
		tickerURL:    cfg.RSSTickerURL,
		marketURL:    cfg.RSSMarketURL,
		maxItems:     cfg.RSSMaxItems,
		lookbackDays: cfg.LookbackDays,
		cache:        infra.NewCache[[]models.Article](time.Duration(cfg.CacheTTL) * time.Second),
		limiter:      infra.NewRateLimiter(float64(cfg.RatePerSecond), 1),
		parser:       parser,
		now:          utils.SystemClock,
		logger:       slog.Default(),
	}
	if r.maxItems <= 0 {
		r.maxItems = 10
	}
	if r.lookbackDays <= 0 {
		r.lookbackDays = 7
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the source name.
func (r *RSS) Name() string { return SourceRSS }

// Forget drops the cached market feed when query is models.MarketQuery.
// Ticker feeds are never cached.
func (r *RSS) Forget(query string) {
	if strings.EqualFold(strings.TrimSpace(query), models.MarketQuery) {
		r.cache.Invalidate(models.MarketQuery)
	}
}

// Cleanup drops expired cache entries.
func (r *RSS) Cleanup() { r.cache.Cleanup() }

// Fetch returns at most maxItems recent headlines for a ticker, or for the
// Dow Jones feed when query is models.MarketQuery. Market results are cached.
func (r *RSS) Fetch(ctx context.Context, query string) ([]models.Article, error) {
	if strings.EqualFold(strings.TrimSpace(query), models.MarketQuery) {
		if cached, ok := r.cache.Get(models.MarketQuery); ok {
			return cached, nil
		}
		articles, err := r.fetchFeed(ctx, r.marketURL, RSSMarketLabel)
		if err != nil {
			return nil, err
		}
		r.cache.Set(models.MarketQuery, articles)
		return articles, nil
	}

	ticker := utils.NormalizeTicker(query)
	feedURL := r.tickerURL
	if strings.Contains(feedURL, "%s") {
		feedURL = fmt.Sprintf(feedURL, url.QueryEscape(ticker))
	}
	return r.fetchFeed(ctx, feedURL, RSSTickerLabel)
}

// fetchFeed parses a feed and keeps dated items inside the lookback.
func (r *RSS) fetchFeed(ctx context.Context, feedURL, label string) ([]models.Article, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", label, err)
	}

	now := r.now()
	articles := make([]models.Article, 0, r.maxItems)
	for _, item := range feed.Items {
		if item.PublishedParsed == nil {
			continue
		}
		published := item.PublishedParsed.UTC()
		if !utils.WithinLookback(published, now, r.lookbackDays) {
			continue
		}
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		articles = append(articles, models.Article{
			Title:       item.Title,
			URL:         item.Link,
			Description: cleanHTML(desc),
			PublishedAt: published,
			Source:      label,
		})
		if len(articles) == r.maxItems {
			break
		}
	}
	r.logger.Debug("rss fetch", "feed", label, "items", len(feed.Items), "kept", len(articles))
	return articles, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
