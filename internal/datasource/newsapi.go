package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/infra"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// MarketNewsQuery is the broad NewsAPI query used for general market news.
const MarketNewsQuery = "stock market OR S&P OR earnings OR investors OR markets"

// NewsAPI implements NewsProvider against the newsapi.org /v2/everything
// endpoint.
type NewsAPI struct {
	apiKey         string
	endpoint       string
	pageSize       int
	excludeDomains string
	lookbackDays   int

	client   *http.Client
	limiter  *infra.RateLimiter
	resolver CompanyResolver
	now      utils.Clock
	logger   *slog.Logger
}

// NewsAPIOption configures a NewsAPI provider.
type NewsAPIOption func(*NewsAPI)

// WithCompanyResolver widens ticker queries with the company name.
func WithCompanyResolver(r CompanyResolver) NewsAPIOption {
	return func(n *NewsAPI) { n.resolver = r }
}

// WithNewsAPIClient sets a custom HTTP client.
func WithNewsAPIClient(c *http.Client) NewsAPIOption {
	return func(n *NewsAPI) { n.client = c }
}

// WithNewsAPIClock pins "now" for the lookback window.
func WithNewsAPIClock(now utils.Clock) NewsAPIOption {
	return func(n *NewsAPI) { n.now = now }
}

// WithNewsAPILogger sets the logger.
func WithNewsAPILogger(l *slog.Logger) NewsAPIOption {
	return func(n *NewsAPI) { n.logger = l }
}

// NewNewsAPI creates a NewsAPI provider from the news config.
func NewNewsAPI(cfg config.NewsConfig, opts ...NewsAPIOption) *NewsAPI {
	n := &NewsAPI{
		apiKey:         cfg.NewsAPIKey,
		endpoint:       cfg.NewsAPIURL,
		pageSize:       cfg.PageSize,
		excludeDomains: cfg.ExcludeDomains,
		lookbackDays:   cfg.LookbackDays,
		client:         HTTPClient,
		limiter:        infra.NewRateLimiter(float64(cfg.RatePerSecond), 1),
		now:            utils.SystemClock,
		logger:         slog.Default(),
	}
	if n.endpoint == "" {
		n.endpoint = "https://newsapi.org/v2/everything"
	}
	if n.pageSize <= 0 {
		n.pageSize = 6
	}
	if n.lookbackDays <= 0 {
		n.lookbackDays = 7
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Name returns the source name.
func (n *NewsAPI) Name() string { return SourceNewsAPI }

// --- NewsAPI response types ---

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// Fetch returns recent articles for a ticker, or general market news when
// query is models.MarketQuery. Ticker results only keep articles whose
// title or description names the ticker or company as a whole word.
func (n *NewsAPI) Fetch(ctx context.Context, query string) ([]models.Article, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("newsapi: %w", ErrNoAPIKey)
	}

	market := strings.EqualFold(strings.TrimSpace(query), models.MarketQuery)
	var ticker, company string
	q := MarketNewsQuery
	if !market {
		ticker = utils.NormalizeTicker(query)
		if n.resolver != nil {
			company = strings.TrimSpace(n.resolver.CompanyName(ctx, ticker))
		}
		q = TickerQuery(ticker, company)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := doGet(ctx, n.client, n.buildURL(q), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("newsapi %q: %w", q, err)
	}
	defer body.Close()

	var resp newsAPIResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse newsapi response: %w", err)
	}
	if resp.Status == "error" {
		return nil, fmt.Errorf("newsapi error %s: %s", resp.Code, resp.Message)
	}

	articles := make([]models.Article, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		desc := item.Description
		if desc == "" {
			desc = item.Content
		}
		articles = append(articles, models.Article{
			Title:       item.Title,
			URL:         item.URL,
			Description: desc,
			PublishedAt: parsePublished(item.PublishedAt),
			Source:      item.Source.Name,
		})
	}
	if market {
		return articles, nil
	}

	re := RelevanceRegexp(ticker, company)
	relevant := articles[:0]
	for _, a := range articles {
		if re.MatchString(a.Text()) {
			relevant = append(relevant, a)
		}
	}
	n.logger.Debug("newsapi fetch", "ticker", ticker, "received", len(articles), "relevant", len(relevant))
	return relevant, nil
}

// TickerQuery builds the search query for a ticker: `"<T> stock"`, widened
// with `OR "<company>"` when the company name is known and is not just the
// ticker.
func TickerQuery(ticker, company string) string {
	q := fmt.Sprintf("%q", ticker+" stock")
	if company != "" && !strings.EqualFold(company, ticker) {
		q += fmt.Sprintf(" OR %q", company)
	}
	return q
}

// RelevanceRegexp matches the ticker or company as a whole word, ignoring case.
func RelevanceRegexp(ticker, company string) *regexp.Regexp {
	parts := []string{regexp.QuoteMeta(ticker)}
	if company != "" {
		parts = append(parts, regexp.QuoteMeta(company))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func (n *NewsAPI) buildURL(q string) string {
	from := utils.DaysAgo(n.now(), n.lookbackDays)
	v := url.Values{}
	v.Set("q", q)
	v.Set("apiKey", n.apiKey)
	v.Set("from", utils.FormatDate(from))
	v.Set("sortBy", "publishedAt")
	v.Set("language", "en")
	v.Set("pageSize", strconv.Itoa(n.pageSize))
	if n.excludeDomains != "" {
		v.Set("excludeDomains", n.excludeDomains)
	}
	return n.endpoint + "?" + v.Encode()
}

// parsePublished accepts the ISO-8601 and RFC-822 shapes news feeds use.
// Unparseable values yield the zero time.
func parsePublished(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
