package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/infra"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// YFinance fetches quotes from the Yahoo Finance v8 chart API.
type YFinance struct {
	chartURL string
	client   *http.Client
	cache    *infra.Cache[*models.Quote]
	limiter  *infra.RateLimiter
	logger   *slog.Logger
}

// YFinanceOption configures a YFinance source.
type YFinanceOption func(*YFinance)

// WithYFinanceClient sets a custom HTTP client.
func WithYFinanceClient(c *http.Client) YFinanceOption {
	return func(y *YFinance) { y.client = c }
}

// WithYFinanceLogger sets the logger.
func WithYFinanceLogger(l *slog.Logger) YFinanceOption {
	return func(y *YFinance) { y.logger = l }
}

// NewYFinance creates a Yahoo Finance quote source.
func NewYFinance(cfg config.QuoteConfig, opts ...YFinanceOption) *YFinance {
	y := &YFinance{
		chartURL: strings.TrimRight(cfg.ChartURL, "/"),
		client:   HTTPClient,
		cache:    infra.NewCache[*models.Quote](time.Duration(cfg.CacheTTL) * time.Second),
		limiter:  infra.NewRateLimiter(5, 5),
		logger:   slog.Default(),
	}
	if y.chartURL == "" {
		y.chartURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// --- Yahoo Finance v8 API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol             string  `json:"symbol"`
	Currency           string  `json:"currency"`
	LongName           string  `json:"longName"`
	ShortName          string  `json:"shortName"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	RegularMarketTime  int64   `json:"regularMarketTime"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	PreviousClose      float64 `json:"previousClose"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Close []*float64 `json:"close"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// GetQuote returns the latest price for ticker: the last non-null close of
// today's chart, falling back to the regular market price.
func (y *YFinance) GetQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	symbol := utils.NormalizeTicker(ticker)
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrTickerNotFound)
	}

	cacheKey := "quote:" + symbol
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached, nil
	}

	if err := y.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s?range=1d&interval=5m", y.chartURL, url.PathEscape(symbol))
	body, err := doGet(ctx, y.client, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		if IsHTTPStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
		}
		return nil, fmt.Errorf("yfinance chart %s: %w", symbol, err)
	}
	defer body.Close()

	var resp yfChartResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("parse yfinance chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrTickerNotFound, symbol, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, symbol)
	}

	quote := parseChartQuote(symbol, resp.Chart.Result[0])
	if quote.Price.IsZero() {
		return nil, fmt.Errorf("%w: %s has no price", ErrTickerNotFound, symbol)
	}

	y.cache.Set(cacheKey, quote)
	return quote, nil
}

// Forget drops the cached quote for ticker.
func (y *YFinance) Forget(ticker string) {
	y.cache.Invalidate("quote:" + utils.NormalizeTicker(ticker))
}

// Cleanup drops expired cache entries.
func (y *YFinance) Cleanup() { y.cache.Cleanup() }

// CompanyName implements CompanyResolver. Lookup failures yield "".
func (y *YFinance) CompanyName(ctx context.Context, ticker string) string {
	q, err := y.GetQuote(ctx, ticker)
	if err != nil {
		y.logger.Debug("company name lookup failed", "ticker", ticker, "error", err)
		return ""
	}
	return q.Name
}

// --- Helpers ---

func parseChartQuote(symbol string, r yfChartResult) *models.Quote {
	price := r.Meta.RegularMarketPrice
	if len(r.Indicators.Quote) > 0 {
		if last, ok := lastClose(r.Indicators.Quote[0].Close); ok {
			price = last
		}
	}
	prev := r.Meta.ChartPreviousClose
	if prev == 0 {
		prev = r.Meta.PreviousClose
	}

	ts := time.Unix(r.Meta.RegularMarketTime, 0).UTC()
	if n := len(r.Timestamp); n > 0 {
		ts = time.Unix(r.Timestamp[n-1], 0).UTC()
	}

	return &models.Quote{
		Ticker:    coalesce(r.Meta.Symbol, symbol),
		Name:      coalesce(r.Meta.LongName, r.Meta.ShortName),
		Price:     decimal.NewFromFloat(price),
		PrevClose: decimal.NewFromFloat(prev),
		Currency:  r.Meta.Currency,
		Timestamp: ts,
	}
}

// lastClose returns the last non-null value of a close series.
func lastClose(closes []*float64) (float64, bool) {
	for i := len(closes) - 1; i >= 0; i-- {
		if closes[i] != nil {
			return *closes[i], true
		}
	}
	return 0, false
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
