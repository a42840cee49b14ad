package datasource

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// Aggregator holds the news providers by source name plus the quote source.
type Aggregator struct {
	news   map[string]NewsProvider
	quotes *YFinance
	logger *slog.Logger
}

// NewAggregator creates the default sources from config: NewsAPI (with
// company names resolved through Yahoo Finance) and the Yahoo RSS feeds.
func NewAggregator(cfg *config.Config, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	quotes := NewYFinance(cfg.Quote, WithYFinanceLogger(logger))
	return NewAggregatorWith(quotes, logger,
		NewNewsAPI(cfg.News, WithCompanyResolver(quotes), WithNewsAPILogger(logger)),
		NewRSS(cfg.News, WithRSSLogger(logger)),
	)
}

// NewAggregatorWith registers the given providers under their names.
// quotes may be nil.
func NewAggregatorWith(quotes *YFinance, logger *slog.Logger, providers ...NewsProvider) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		news:   make(map[string]NewsProvider, len(providers)),
		quotes: quotes,
		logger: logger,
	}
	for _, p := range providers {
		a.news[utils.NormalizeSource(p.Name())] = p
	}
	return a
}

// News returns the provider registered under source.
func (a *Aggregator) News(source string) (NewsProvider, bool) {
	p, ok := a.news[utils.NormalizeSource(source)]
	return p, ok
}

// Sources returns the registered source names, sorted.
func (a *Aggregator) Sources() []string {
	names := make([]string, 0, len(a.news))
	for name := range a.news {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Quotes returns the quote source, or nil if none is configured.
func (a *Aggregator) Quotes() *YFinance { return a.quotes }

// Forget drops what any source has cached for query, so the next fetch
// goes upstream.
func (a *Aggregator) Forget(query string) {
	for _, c := range a.caches() {
		c.Forget(query)
	}
}

// Cleanup drops expired entries from every source cache.
func (a *Aggregator) Cleanup() {
	for _, c := range a.caches() {
		c.Cleanup()
	}
}

func (a *Aggregator) caches() []cacheHolder {
	var out []cacheHolder
	if a.quotes != nil {
		out = append(out, a.quotes)
	}
	for _, name := range a.Sources() {
		if c, ok := a.news[name].(cacheHolder); ok {
			out = append(out, c)
		}
	}
	return out
}

// FetchResult is one provider's answer to FetchAll.
type FetchResult struct {
	Source   string
	Articles []models.Article
	Err      error
}

// FetchAll fetches query from every provider concurrently. Results are
// ordered by source name; a failed provider reports its error and no
// articles.
func (a *Aggregator) FetchAll(ctx context.Context, query string) []FetchResult {
	names := a.Sources()
	results := make([]FetchResult, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			articles, err := a.news[name].Fetch(gctx, query)
			if err != nil {
				a.logger.Warn("news fetch failed", "source", name, "query", query, "error", err)
			}
			results[i] = FetchResult{Source: name, Articles: articles, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
