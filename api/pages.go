package api

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/datasource"
	"github.com/seenimoa/marketpulse/internal/pipeline"
	"github.com/seenimoa/marketpulse/internal/report"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// ============================================================
// Page data
// ============================================================

type pageBase struct {
	Title   string
	Active  string
	Tickers []string
	Sources []string
}

type sentimentCard struct {
	Sentiment models.Sentiment
	Count     int
}

type tickerPage struct {
	pageBase
	Ticker     string
	Source     string
	Keyword    string
	Selected   []string
	Quote      *models.Quote
	QuoteError string
	Report     *pipeline.Report
	Results    []pipeline.ArticleResult
	Cards      []sentimentCard
	Events     []models.CalendarEvent
}

type marketPage struct {
	pageBase
	Source   string
	Keyword  string
	Selected []string
	Report   *pipeline.Report
	Results  []pipeline.ArticleResult
	Cards    []sentimentCard
}

type dashboardPage struct {
	pageBase
	SelectedSources []string
	SelectedTickers []string
	Window          int
	Dashboard       *DashboardData
	Chart           template.HTML
	Error           string
}

// ============================================================
// Page handlers
// ============================================================

// handleTickerPage shows the quote, the scanned news and the calendar for
// one ticker.
func (s *Server) handleTickerPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseSentiments(q["sentiment"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tickers := s.tickers()
	ticker := strings.TrimSpace(q.Get("ticker"))
	if ticker == "" && len(tickers) > 0 {
		ticker = tickers[0]
	}
	if ticker == "" {
		http.Error(w, "no ticker configured", http.StatusBadRequest)
		return
	}
	ticker = utils.NormalizeTicker(ticker)

	page := tickerPage{
		pageBase: s.base(ticker, "ticker"),
		Ticker:   ticker,
		Source:   queryOr(q.Get("source"), datasource.SourceNewsAPI),
		Keyword:  q.Get("keyword"),
		Selected: sentimentStrings(filter),
		Events:   s.calendar(),
	}
	if err := s.checkSources(page.Source); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page.Quote, page.QuoteError = s.pageQuote(r.Context(), ticker)

	page.Report = s.scan(r.Context(), pipeline.Request{Ticker: ticker, Source: page.Source, Keyword: page.Keyword})
	page.Results = page.Report.Filter(filter...)
	page.Cards = cards(page.Results)

	s.render(w, "ticker", page)
}

// handleMarketPage shows general market news.
func (s *Server) handleMarketPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := parseSentiments(q["sentiment"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := marketPage{
		pageBase: s.base("Market News", "market"),
		Source:   queryOr(q.Get("source"), datasource.SourceRSS),
		Keyword:  q.Get("keyword"),
		Selected: sentimentStrings(filter),
	}
	if err := s.checkSources(page.Source); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page.Report = s.scan(r.Context(), pipeline.Request{Ticker: models.MarketQuery, Source: page.Source, Keyword: page.Keyword})
	page.Results = page.Report.Filter(filter...)
	page.Cards = cards(page.Results)

	s.render(w, "market", page)
}

// handleDashboardPage shows the sentiment distribution across sources.
func (s *Server) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	sources, tickers, window, err := s.dashboardParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := dashboardPage{
		pageBase:        s.base("Sentiment Dashboard", "dashboard"),
		SelectedSources: sources,
		SelectedTickers: tickers,
		Window:          window,
	}

	data, err := s.dashboard(sources, tickers, window)
	if err != nil {
		s.logger.Warn("dashboard load failed", "error", err)
		page.Error = "Sentiment logs could not be read."
		s.render(w, "dashboard", page)
		return
	}
	page.Dashboard = data
	page.Tickers = data.Tickers
	if len(page.SelectedTickers) == 0 {
		page.SelectedTickers = data.Tickers
	}

	cfg := report.DefaultChartConfig()
	cfg.Title = "Sentiment distribution by ticker and source"
	// Chart output escapes every label.
	page.Chart = template.HTML(report.DistributionChart(data.Distribution, cfg))

	s.render(w, "dashboard", page)
}

// ============================================================
// Page helpers
// ============================================================

func (s *Server) base(title, active string) pageBase {
	return pageBase{
		Title:   title,
		Active:  active,
		Tickers: s.tickers(),
		Sources: s.sources.Sources(),
	}
}

// pageQuote fetches the quote for display; failures become a message.
func (s *Server) pageQuote(ctx context.Context, ticker string) (*models.Quote, string) {
	if s.quotes == nil {
		return nil, "Could not fetch stock price."
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	quote, err := s.quotes.GetQuote(ctx, ticker)
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		return nil, "Ticker not found."
	case err != nil:
		s.logger.Warn("quote failed", "ticker", ticker, "error", err)
		return nil, "Could not fetch stock price."
	}
	return quote, ""
}

// render executes a page into a buffer first so template errors never
// produce half a page.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	t, ok := s.pages[name]
	if !ok {
		http.Error(w, "page not found", http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page", "page", name, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func cards(results []pipeline.ArticleResult) []sentimentCard {
	counts := pipeline.Counts(results)
	out := make([]sentimentCard, 0, len(models.KnownSentiments))
	for _, s := range models.KnownSentiments {
		out = append(out, sentimentCard{Sentiment: s, Count: counts[s]})
	}
	return out
}

func sentimentStrings(sentiments []models.Sentiment) []string {
	out := make([]string, len(sentiments))
	for i, s := range sentiments {
		out[i] = string(s)
	}
	return out
}
