package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/pkg/models"
)

var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// ── doGet ──

func TestDoGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := doGet(context.Background(), srv.Client(), srv.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var he *ErrHTTP
	if !errors.As(err, &he) {
		t.Fatalf("expected *ErrHTTP, got %T", err)
	}
	if he.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", he.StatusCode)
	}
	if !IsHTTPStatus(err, http.StatusTooManyRequests) {
		t.Error("IsHTTPStatus should match")
	}
	if IsHTTPStatus(errors.New("x"), 500) {
		t.Error("IsHTTPStatus should not match plain errors")
	}
}

func TestDoGetSetsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != DefaultUserAgent {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		if r.Header.Get("X-Test") != "1" {
			t.Error("custom header missing")
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	body, err := doGet(context.Background(), srv.Client(), srv.URL, map[string]string{"X-Test": "1"})
	if err != nil {
		t.Fatalf("doGet: %v", err)
	}
	body.Close()
}

// ── NewsAPI ──

type staticResolver string

func (s staticResolver) CompanyName(context.Context, string) string { return string(s) }

const newsAPIBody = `{
  "status": "ok",
  "articles": [
    {"source": {"name": "Reuters"}, "title": "Tesla deliveries beat estimates", "description": "Strong quarter.", "url": "https://ex.com/1", "publishedAt": "2025-06-09T10:00:00Z"},
    {"source": {"name": "CNBC"}, "title": "TSLA stock rallies", "description": null, "url": "https://ex.com/2", "publishedAt": "2025-06-08T10:00:00Z"},
    {"source": {"name": "Blog"}, "title": "Teslas in the wild", "description": "Unrelated car spotting.", "url": "https://ex.com/3", "publishedAt": "2025-06-08T10:00:00Z"},
    {"source": {"name": "Blog"}, "title": "EV makers", "description": "Rivals chase Tesla Inc on price.", "url": "https://ex.com/4", "publishedAt": "bad"}
  ]
}`

func newsAPITestServer(t *testing.T, status int, body string, seen *url.Values) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = r.URL.Query()
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testNewsConfig(endpoint string) config.NewsConfig {
	return config.NewsConfig{
		NewsAPIKey:     "k-123",
		NewsAPIURL:     endpoint,
		PageSize:       6,
		ExcludeDomains: "yahoo.com",
		LookbackDays:   7,
		RSSMaxItems:    10,
		CacheTTL:       3600,
	}
}

func TestNewsAPITickerQuery(t *testing.T) {
	var q url.Values
	srv := newsAPITestServer(t, http.StatusOK, newsAPIBody, &q)

	n := NewNewsAPI(testNewsConfig(srv.URL),
		WithNewsAPIClient(srv.Client()),
		WithNewsAPIClock(clock),
		WithCompanyResolver(staticResolver("Tesla Inc")),
	)
	articles, err := n.Fetch(context.Background(), "tsla")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	want := map[string]string{
		"q":              `"TSLA stock" OR "Tesla Inc"`,
		"apiKey":         "k-123",
		"from":           "2025-06-03",
		"sortBy":         "publishedAt",
		"language":       "en",
		"pageSize":       "6",
		"excludeDomains": "yahoo.com",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}

	// "Tesla deliveries" names neither the ticker nor "Tesla Inc".
	if len(articles) != 2 {
		t.Fatalf("expected 2 relevant articles, got %d: %+v", len(articles), articles)
	}
	if articles[0].URL != "https://ex.com/2" || articles[1].URL != "https://ex.com/4" {
		t.Errorf("unexpected articles: %+v", articles)
	}
	if !articles[1].PublishedAt.IsZero() {
		t.Error("unparseable publishedAt should be zero")
	}
	if articles[0].Source != "CNBC" {
		t.Errorf("source = %q", articles[0].Source)
	}
}

func TestNewsAPIMarketQueryUnfiltered(t *testing.T) {
	var q url.Values
	srv := newsAPITestServer(t, http.StatusOK, newsAPIBody, &q)

	n := NewNewsAPI(testNewsConfig(srv.URL), WithNewsAPIClient(srv.Client()), WithNewsAPIClock(clock))
	articles, err := n.Fetch(context.Background(), models.MarketQuery)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if q.Get("q") != MarketNewsQuery {
		t.Errorf("q = %q", q.Get("q"))
	}
	if len(articles) != 4 {
		t.Errorf("market news should not be filtered, got %d", len(articles))
	}
	if articles[0].PublishedAt != time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC) {
		t.Errorf("published = %v", articles[0].PublishedAt)
	}
}

func TestNewsAPINon200(t *testing.T) {
	srv := newsAPITestServer(t, http.StatusUnauthorized, `{"status":"error","code":"apiKeyInvalid"}`, nil)
	n := NewNewsAPI(testNewsConfig(srv.URL), WithNewsAPIClient(srv.Client()))
	articles, err := n.Fetch(context.Background(), "TSLA")
	if !IsHTTPStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected HTTP 401 error, got %v", err)
	}
	if articles != nil {
		t.Error("expected no articles")
	}
}

func TestNewsAPINoKey(t *testing.T) {
	cfg := testNewsConfig("http://127.0.0.1:0")
	cfg.NewsAPIKey = ""
	_, err := NewNewsAPI(cfg).Fetch(context.Background(), "TSLA")
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestTickerQuery(t *testing.T) {
	tests := []struct {
		ticker, company, want string
	}{
		{"TSLA", "", `"TSLA stock"`},
		{"TSLA", "Tesla, Inc.", `"TSLA stock" OR "Tesla, Inc."`},
		{"OKLO", "oklo", `"OKLO stock"`},
	}
	for _, tt := range tests {
		if got := TickerQuery(tt.ticker, tt.company); got != tt.want {
			t.Errorf("TickerQuery(%q, %q) = %q, want %q", tt.ticker, tt.company, got, tt.want)
		}
	}
}

func TestRelevanceRegexp(t *testing.T) {
	re := RelevanceRegexp("HOOD", "Robinhood Markets")
	tests := []struct {
		text string
		want bool
	}{
		{"HOOD jumps 5%", true},
		{"hood shares", true},
		{"Robinhood Markets reports", true},
		{"Robinhood app outage", false},
		{"neighbourhood watch", false},
	}
	for _, tt := range tests {
		if got := re.MatchString(tt.text); got != tt.want {
			t.Errorf("match %q = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParsePublished(t *testing.T) {
	want := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)
	for _, s := range []string{"2025-06-09T10:00:00Z", "2025-06-09T10:00:00", "Mon, 09 Jun 2025 10:00:00 +0000", "Mon, 09 Jun 2025 10:00:00 GMT"} {
		if got := parsePublished(s); !got.Equal(want) {
			t.Errorf("parsePublished(%q) = %v", s, got)
		}
	}
	if !parsePublished("yesterday").IsZero() {
		t.Error("expected zero time")
	}
}

// ── RSS ──

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Yahoo</title>
<item><title>Fresh one</title><link>https://ex.com/a</link><description>&lt;p&gt;Shares &lt;b&gt;surge&lt;/b&gt;&lt;/p&gt;</description><pubDate>Mon, 09 Jun 2025 10:00:00 GMT</pubDate></item>
<item><title>No date</title><link>https://ex.com/b</link><description>x</description></item>
<item><title>Too old</title><link>https://ex.com/c</link><description>x</description><pubDate>Sat, 31 May 2025 10:00:00 GMT</pubDate></item>
<item><title>Fresh two</title><link>https://ex.com/d</link><description>plain</description><pubDate>Sun, 08 Jun 2025 10:00:00 GMT</pubDate></item>
<item><title>Fresh three</title><link>https://ex.com/e</link><description>plain</description><pubDate>Sun, 08 Jun 2025 09:00:00 GMT</pubDate></item>
</channel></rss>`

func rssTestServer(t *testing.T, hits *int32, paths *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if paths != nil {
			*paths = append(*paths, r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRSSTickerFeed(t *testing.T) {
	var hits int32
	var queries []string
	srv := rssTestServer(t, &hits, &queries)

	cfg := testNewsConfig("")
	cfg.RSSTickerURL = srv.URL + "/rss?s=%s&region=US"
	r := NewRSS(cfg, WithRSSClient(srv.Client()), WithRSSClock(clock))

	articles, err := r.Fetch(context.Background(), "pltr")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(queries) != 1 || !strings.HasPrefix(queries[0], "s=PLTR") {
		t.Errorf("feed queries = %v", queries)
	}
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles inside lookback, got %d", len(articles))
	}
	a := articles[0]
	if a.Title != "Fresh one" || a.URL != "https://ex.com/a" {
		t.Errorf("unexpected first article %+v", a)
	}
	if a.Description != "Shares surge" {
		t.Errorf("description not cleaned: %q", a.Description)
	}
	if a.Source != RSSTickerLabel {
		t.Errorf("source = %q", a.Source)
	}
}

func TestRSSMaxItems(t *testing.T) {
	var hits int32
	srv := rssTestServer(t, &hits, nil)

	cfg := testNewsConfig("")
	cfg.RSSTickerURL = srv.URL + "/rss?s=%s"
	cfg.RSSMaxItems = 2
	articles, err := NewRSS(cfg, WithRSSClient(srv.Client()), WithRSSClock(clock)).Fetch(context.Background(), "TSLA")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(articles) != 2 {
		t.Errorf("expected 2 articles, got %d", len(articles))
	}
}

func TestRSSMarketFeedCached(t *testing.T) {
	var hits int32
	srv := rssTestServer(t, &hits, nil)

	cfg := testNewsConfig("")
	cfg.RSSMarketURL = srv.URL + "/market"
	r := NewRSS(cfg, WithRSSClient(srv.Client()), WithRSSClock(clock))

	for i := 0; i < 3; i++ {
		articles, err := r.Fetch(context.Background(), "Market")
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(articles) != 3 || articles[0].Source != RSSMarketLabel {
			t.Fatalf("unexpected market articles: %+v", articles)
		}
	}
	if hits != 1 {
		t.Errorf("expected 1 upstream hit, got %d", hits)
	}
}

func TestRSSBadFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "not xml at all")
	}))
	defer srv.Close()

	cfg := testNewsConfig("")
	cfg.RSSTickerURL = srv.URL + "?s=%s"
	if _, err := NewRSS(cfg, WithRSSClient(srv.Client())).Fetch(context.Background(), "TSLA"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCleanHTML(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"plain text", "plain text"},
		{"<p>Hello <a href='x'>world</a></p>\n<p>again</p>", "Hello world again"},
	}
	for _, tt := range tests {
		if got := cleanHTML(tt.in); got != tt.want {
			t.Errorf("cleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ── Aggregator ──

type fakeNews struct {
	name     string
	articles []models.Article
	err      error
}

func (f fakeNews) Name() string { return f.name }
func (f fakeNews) Fetch(context.Context, string) ([]models.Article, error) {
	return f.articles, f.err
}

func TestAggregatorRegistry(t *testing.T) {
	a := NewAggregatorWith(nil, nil,
		fakeNews{name: "RSS", articles: []models.Article{{URL: "u1"}}},
		fakeNews{name: "newsapi", err: errors.New("down")},
	)

	if got := a.Sources(); len(got) != 2 || got[0] != "newsapi" || got[1] != "rss" {
		t.Errorf("Sources = %v", got)
	}
	if _, ok := a.News("Rss"); !ok {
		t.Error("lookup should be case-insensitive")
	}
	if _, ok := a.News("sheets"); ok {
		t.Error("unknown source should not resolve")
	}

	all := a.FetchAll(context.Background(), "TSLA")
	if len(all) != 2 || all[0].Source != "newsapi" || all[1].Source != "rss" {
		t.Fatalf("results = %+v", all)
	}
	if all[0].Err == nil || all[0].Articles != nil {
		t.Errorf("failed provider should report its error and no articles, got %+v", all[0])
	}
	if all[1].Err != nil || len(all[1].Articles) != 1 {
		t.Errorf("rss = %+v", all[1])
	}
}

func TestAggregatorForgetAndCleanup(t *testing.T) {
	var feedHits, chartHits int32
	feed := rssTestServer(t, &feedHits, nil)
	chart := chartServer(t, http.StatusOK, chartBody, &chartHits)

	now := fixedNow
	tick := func() time.Time { return now }
	cfg := testNewsConfig("")
	cfg.RSSMarketURL = feed.URL + "/market"
	rss := NewRSS(cfg, WithRSSClient(feed.Client()), WithRSSClock(tick))
	quotes := NewYFinance(config.QuoteConfig{ChartURL: chart.URL, CacheTTL: 60}, WithYFinanceClient(chart.Client()))
	a := NewAggregatorWith(quotes, nil, rss)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := rss.Fetch(ctx, models.MarketQuery); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if _, err := quotes.GetQuote(ctx, "TSLA"); err != nil {
			t.Fatalf("GetQuote: %v", err)
		}
	}
	if feedHits != 1 || chartHits != 1 {
		t.Fatalf("expected cached calls, got feed=%d chart=%d", feedHits, chartHits)
	}

	a.Forget(models.MarketQuery)
	a.Forget("tsla")
	if _, err := rss.Fetch(ctx, models.MarketQuery); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if _, err := quotes.GetQuote(ctx, "TSLA"); err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if feedHits != 2 || chartHits != 2 {
		t.Errorf("Forget should force upstream calls, got feed=%d chart=%d", feedHits, chartHits)
	}

	if rss.cache.Len() != 1 {
		t.Fatalf("market feed should be cached, len=%d", rss.cache.Len())
	}
	now = now.Add(2 * time.Hour)
	a.Cleanup()
	if rss.cache.Len() != 0 {
		t.Errorf("expired feed entry survived Cleanup, len=%d", rss.cache.Len())
	}
}

func TestNewAggregatorFromConfig(t *testing.T) {
	cfg := &config.Config{News: testNewsConfig(""), Quote: config.QuoteConfig{CacheTTL: 60}}
	a := NewAggregator(cfg, nil)
	if a.Quotes() == nil {
		t.Fatal("quote source missing")
	}
	for _, name := range []string{SourceNewsAPI, SourceRSS} {
		if _, ok := a.News(name); !ok {
			t.Errorf("source %s not registered", name)
		}
	}
}
