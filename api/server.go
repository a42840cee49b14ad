// Package api provides the HTTP server for MarketPulse.
//
// It exposes JSON endpoints for quotes, news sentiment scans, trends and the
// dashboard, serves the HTML pages and the embedded static assets, and
// streams logged sentiments over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/datasource"
	"github.com/seenimoa/marketpulse/internal/notify"
	"github.com/seenimoa/marketpulse/internal/pipeline"
	"github.com/seenimoa/marketpulse/internal/report"
	"github.com/seenimoa/marketpulse/internal/sentiment"
	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/internal/trend"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
	"github.com/seenimoa/marketpulse/web"
)

// Version is reported by /health; the CLI overrides it at build time.
var Version = "dev"

// QuoteSource fetches the latest price for a ticker.
type QuoteSource interface {
	GetQuote(ctx context.Context, ticker string) (*models.Quote, error)
}

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	store    store.Store
	sources  *datasource.Aggregator
	quotes   QuoteSource
	pipeline *pipeline.Pipeline
	trends   *trend.Aggregator
	notifier notify.Notifier
	wsHub    *WSHub
	pages    map[string]*template.Template
	logger   *slog.Logger
	now      utils.Clock
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock pins "now" for trend windows and the pipeline lookback.
func WithClock(now utils.Clock) Option {
	return func(s *Server) { s.now = now }
}

// WithNotifier sets where scan digests are delivered.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Server) { s.notifier = n }
}

// WithQuoteSource replaces the quote source taken from the aggregator.
func WithQuoteSource(q QuoteSource) Option {
	return func(s *Server) { s.quotes = q }
}

// NewServer creates a configured server with all routes and middleware.
// The store stays owned by the caller.
func NewServer(cfg *config.Config, st store.Store, sources *datasource.Aggregator, classifier sentiment.Classifier, opts ...Option) (*Server, error) {
	pages, err := web.Pages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		sources:  sources,
		notifier: notify.Discard{},
		wsHub:    NewWSHub(),
		pages:    pages,
		logger:   slog.Default(),
		now:      utils.SystemClock,
	}
	if q := sources.Quotes(); q != nil {
		s.quotes = q
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wsHub.logger = s.logger

	s.pipeline = pipeline.New(sources, classifier, st,
		pipeline.WithNotifier(s.notifier),
		pipeline.WithObserver(s.wsHub),
		pipeline.WithLogger(s.logger),
		pipeline.WithClock(s.now),
		pipeline.WithConcurrency(cfg.Pipeline.Concurrency),
		pipeline.WithLookbackDays(cfg.News.LookbackDays),
	)
	s.trends = trend.New(st, trend.WithClock(s.now), trend.WithLogger(s.logger))
	s.router = s.buildRouter()
	return s, nil
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe starts the HTTP server and shuts it down gracefully on
// SIGINT/SIGTERM or when ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)
	go s.sweepCaches(hubCtx, cacheSweepInterval)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// cacheSweepInterval is how often expired quote and feed entries are dropped.
const cacheSweepInterval = 10 * time.Minute

// sweepCaches drops expired source cache entries every interval until ctx
// ends.
func (s *Server) sweepCaches(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sources.Cleanup()
		}
	}
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/tickers", s.handleTickers)
		r.Get("/quote/{ticker}", s.handleQuote)

		// Scans (run the pipeline)
		r.Get("/news/{ticker}", s.handleNews)
		r.Get("/market", s.handleMarket)

		// Logged sentiment
		r.Get("/trends/{ticker}", s.handleTrend)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/charts/trend/{ticker}", s.handleTrendChart)

		r.Get("/calendar", s.handleCalendar)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	// HTML pages
	r.Get("/", s.handleTickerPage)
	r.Get("/market", s.handleMarketPage)
	r.Get("/dashboard", s.handleDashboardPage)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.StaticFS())))

	return r
}

// ============================================================
// Request / Response Types
// ============================================================

// APIResponse is the standard API response envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ScanResponse is the result of a news or market scan. Results holds only
// the articles passing the sentiment filter; Counts tallies them.
type ScanResponse struct {
	*pipeline.Report
	Results []pipeline.ArticleResult `json:"results"`
	Filter  []models.Sentiment       `json:"filter,omitempty"`
	Shown   map[models.Sentiment]int `json:"shown"`
}

// DashboardData is the cross-source sentiment overview.
type DashboardData struct {
	Sources      []string                `json:"sources"`
	Tickers      []string                `json:"tickers"`
	WindowDays   int                     `json:"window_days"`
	Total        int                     `json:"total"`
	Distribution []trend.DistributionRow `json:"distribution"`
	Summaries    []trend.Summary         `json:"summaries"`
}

// TrendResponse wraps a trend result with its display message.
type TrendResponse struct {
	trend.Result
	Message string `json:"message,omitempty"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":     "ok",
			"version":    Version,
			"sources":    s.sources.Sources(),
			"ws_clients": s.wsHub.ClientCount(),
			"time":       s.now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleTickers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.tickers(),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	if s.quotes == nil {
		writeError(w, http.StatusServiceUnavailable, "no quote source configured")
		return
	}

	ticker = utils.NormalizeTicker(ticker)
	if refresh(r) {
		s.sources.Forget(ticker)
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	quote, err := s.quotes.GetQuote(ctx, ticker)
	switch {
	case errors.Is(err, datasource.ErrTickerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		s.logger.Warn("quote failed", "ticker", ticker, "error", err)
		writeError(w, http.StatusBadGateway, "could not fetch stock price")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    quote,
	})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	ticker := strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}
	s.serveScan(w, r, ticker, datasource.SourceNewsAPI)
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	s.serveScan(w, r, models.MarketQuery, datasource.SourceRSS)
}

// serveScan runs the pipeline for ticker and writes the filtered report.
func (s *Server) serveScan(w http.ResponseWriter, r *http.Request, ticker, defaultSource string) {
	q := r.URL.Query()
	filter, err := parseSentiments(q["sentiment"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	source := queryOr(q.Get("source"), defaultSource)
	if err := s.checkSources(source); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := pipeline.Request{
		Ticker:  ticker,
		Source:  source,
		Keyword: q.Get("keyword"),
	}
	if refresh(r) {
		s.sources.Forget(req.Subject())
	}
	rep := s.scan(r.Context(), req)
	shown := rep.Filter(filter...)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ScanResponse{
			Report:  rep,
			Results: shown,
			Filter:  filter,
			Shown:   pipeline.Counts(shown),
		},
	})
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	source, ticker, window, err := s.trendParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res := s.trends.Aggregate(source, ticker, window)
	resp := TrendResponse{Result: res}
	if !res.OK() {
		resp.Message = res.Message()
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    resp,
	})
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	source, ticker, window, err := s.trendParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := queryOr(r.URL.Query().Get("kind"), "bar")
	if kind != "bar" && kind != "line" {
		writeError(w, http.StatusBadRequest, "kind must be bar or line")
		return
	}

	res := s.trends.Aggregate(source, ticker, window)
	cfg := report.DefaultChartConfig()
	subject := res.Ticker
	if subject == "" {
		subject = "All tickers"
	}
	cfg.Title = fmt.Sprintf("%s sentiment (%s, last %d days)", subject, res.Source, window)

	var svg string
	if kind == "line" {
		svg = report.TrendLineChart(res.Points, cfg)
	} else {
		svg = report.TrendBarChart(res.Points, cfg)
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(svg))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sources, tickers, window, err := s.dashboardParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := s.dashboard(sources, tickers, window)
	if err != nil {
		s.logger.Warn("dashboard load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sentiment logs could not be read")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    s.calendar(),
	})
}

// ============================================================
// Shared logic for handlers and pages
// ============================================================

// tickers returns the configured tickers, normalised.
func (s *Server) tickers() []string {
	out := make([]string, 0, len(s.cfg.Tickers))
	for _, t := range s.cfg.Tickers {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, utils.NormalizeTicker(t))
		}
	}
	return out
}

// scan runs one pipeline pass, sending the digest when the server is
// configured to.
func (s *Server) scan(ctx context.Context, req pipeline.Request) *pipeline.Report {
	req.Notify = s.cfg.Pipeline.Notify
	return s.pipeline.Run(ctx, req)
}

// dashboard merges the logs of sources, keeps tickers (all when empty) and
// the trailing window (everything when window <= 0).
func (s *Server) dashboard(sources, tickers []string, window int) (*DashboardData, error) {
	records, err := s.trends.LoadSources(sources)
	if err != nil {
		return nil, err
	}
	available := trend.Tickers(records)

	records = trend.Window(records, "", window, s.now())
	if len(tickers) > 0 {
		keep := make(map[string]bool, len(tickers))
		for _, t := range tickers {
			keep[strings.ToUpper(strings.TrimSpace(t))] = true
		}
		filtered := records[:0:0]
		for _, rec := range records {
			if keep[strings.ToUpper(rec.Ticker)] {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	return &DashboardData{
		Sources:      sources,
		Tickers:      available,
		WindowDays:   window,
		Total:        len(records),
		Distribution: trend.Distribution(records),
		Summaries:    trend.Summaries(records),
	}, nil
}

// calendar reads the market events file. A missing or malformed file is an
// empty calendar.
func (s *Server) calendar() []models.CalendarEvent {
	events, err := loadCalendar(s.cfg.Calendar.File)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("calendar unreadable", "file", s.cfg.Calendar.File, "error", err)
		}
		return []models.CalendarEvent{}
	}
	return events
}

func loadCalendar(path string) ([]models.CalendarEvent, error) {
	if path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var events []models.CalendarEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return events, nil
}

// trendParams reads source, ticker and window for the trend endpoints.
// The ticker "all" selects every ticker.
func (s *Server) trendParams(r *http.Request) (source, ticker string, window int, err error) {
	ticker = strings.TrimSpace(chi.URLParam(r, "ticker"))
	if ticker == "" {
		return "", "", 0, errors.New("ticker is required")
	}
	if strings.EqualFold(ticker, "all") {
		ticker = ""
	}
	q := r.URL.Query()
	source = queryOr(q.Get("source"), datasource.SourceNewsAPI)
	if err := s.checkSources(source); err != nil {
		return "", "", 0, err
	}
	window, err = parseWindow(q.Get("window"), s.cfg.Pipeline.WindowDays)
	return source, ticker, window, err
}

// dashboardParams reads the sources, tickers and window filters. Both list
// parameters accept repeated keys and comma-separated values.
func (s *Server) dashboardParams(r *http.Request) (sources, tickers []string, window int, err error) {
	q := r.URL.Query()
	sources = splitValues(q["sources"])
	if len(sources) == 0 {
		sources = s.sources.Sources()
	}
	if err := s.checkSources(sources...); err != nil {
		return nil, nil, 0, err
	}
	tickers = splitValues(q["tickers"])
	window, err = parseWindow(q.Get("window"), 0)
	return sources, tickers, window, err
}

// checkSources rejects any source that has no registered news provider.
// Only registered sources name a sentiment log.
func (s *Server) checkSources(sources ...string) error {
	for _, src := range sources {
		if _, ok := s.sources.News(src); !ok {
			return fmt.Errorf("unknown source %q", src)
		}
	}
	return nil
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}

// refresh reports whether the request asks to bypass cached upstream data.
func refresh(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return v
}

func queryOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, utils.SplitList(v)...)
	}
	return out
}

// parseSentiments accepts bullish, bearish and neutral; anything else is a
// client error.
func parseSentiments(values []string) ([]models.Sentiment, error) {
	var out []models.Sentiment
	for _, v := range splitValues(values) {
		s := models.ParseSentiment(v)
		if !s.Known() {
			return nil, fmt.Errorf("unknown sentiment %q", v)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseWindow(v string, def int) (int, error) {
	if v = strings.TrimSpace(v); v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("window must be a non-negative number of days, got %q", v)
	}
	return n, nil
}
