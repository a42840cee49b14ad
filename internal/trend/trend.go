// Package trend turns the accumulated sentiment logs into chart-ready
// counts. Every function here is a batch transform over the log and is
// re-run on each view; nothing is cached.
package trend

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// Status tells the caller why a Result has (or lacks) points.
type Status string

const (
	StatusOK         Status = "ok"
	StatusLogMissing Status = "log_missing"
	StatusLogEmpty   Status = "log_empty"
	StatusNoMatches  Status = "no_matches"
	StatusUnreadable Status = "unreadable"
)

// Result is the outcome of one aggregation.
type Result struct {
	Source     string              `json:"source"`
	Ticker     string              `json:"ticker"`
	WindowDays int                 `json:"window_days"`
	Status     Status              `json:"status"`
	Points     []models.TrendPoint `json:"points"`
	Total      int                 `json:"total"`
}

// OK reports whether the result has points to draw.
func (r Result) OK() bool { return r.Status == StatusOK }

// Message returns the empty-state text for the dashboard.
func (r Result) Message() string {
	switch r.Status {
	case StatusOK:
		return ""
	case StatusLogMissing:
		return "No sentiment log found yet. Run a scan first."
	case StatusLogEmpty:
		return "Sentiment log is empty."
	case StatusNoMatches:
		if r.WindowDays > 0 {
			return fmt.Sprintf("No sentiment data for %s in the last %d days.", r.Ticker, r.WindowDays)
		}
		return fmt.Sprintf("No sentiment data for %s.", r.Ticker)
	default:
		return "Sentiment log could not be read."
	}
}

// Aggregator reads sentiment logs from a store.
type Aggregator struct {
	log    store.SentimentLog
	now    utils.Clock
	logger *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock pins "now" for the trailing window.
func WithClock(now utils.Clock) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger used for unreadable logs.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// New creates an Aggregator over log.
func New(log store.SentimentLog, opts ...Option) *Aggregator {
	a := &Aggregator{log: log, now: utils.SystemClock, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate counts the sentiments logged for ticker under source within the
// trailing window. It never fails; problems are reported through Status.
func (a *Aggregator) Aggregate(source, ticker string, windowDays int) Result {
	res := Result{
		Source:     utils.NormalizeSource(source),
		Ticker:     utils.NormalizeTicker(ticker),
		WindowDays: windowDays,
	}
	if strings.TrimSpace(ticker) == "" {
		res.Ticker = ""
	}

	records, err := a.log.Scan(source)
	switch {
	case errors.Is(err, store.ErrLogMissing):
		res.Status = StatusLogMissing
		return res
	case errors.Is(err, store.ErrLogEmpty):
		res.Status = StatusLogEmpty
		return res
	case err != nil:
		a.logger.Warn("sentiment log unreadable", "source", source, "error", err)
		res.Status = StatusUnreadable
		return res
	}
	if len(records) == 0 {
		res.Status = StatusLogEmpty
		return res
	}

	res.Points = AggregateRecords(records, res.Ticker, windowDays, a.now())
	if len(res.Points) == 0 {
		res.Status = StatusNoMatches
		return res
	}
	res.Status = StatusOK
	for _, p := range res.Points {
		res.Total += p.Count
	}
	return res
}

// LoadSources merges the records of several sources, tagging each with its
// source. Missing or empty logs are skipped; other read errors are returned.
func (a *Aggregator) LoadSources(sources []string) ([]models.SentimentRecord, error) {
	var all []models.SentimentRecord
	for _, src := range sources {
		records, err := a.log.Scan(src)
		if errors.Is(err, store.ErrLogMissing) || errors.Is(err, store.ErrLogEmpty) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("trend: load %s: %w", src, err)
		}
		key := utils.NormalizeSource(src)
		for _, r := range records {
			r.Source = key
			all = append(all, r)
		}
	}
	return all, nil
}

// Window filters records to ticker (empty = all, case-insensitive) and to
// dates on or after today-windowDays. windowDays <= 0 keeps every date.
func Window(records []models.SentimentRecord, ticker string, windowDays int, now time.Time) []models.SentimentRecord {
	cutoff := utils.DaysAgo(now, windowDays)
	var out []models.SentimentRecord
	for _, r := range records {
		if ticker != "" && !strings.EqualFold(r.Ticker, ticker) {
			continue
		}
		if windowDays > 0 && models.Day(r.Date).Before(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// AggregateRecords is the pure transform behind Aggregate: filter by ticker
// and window, drop unknown, count per (date, sentiment). Points are sorted
// by date, then bullish, bearish, neutral.
func AggregateRecords(records []models.SentimentRecord, ticker string, windowDays int, now time.Time) []models.TrendPoint {
	type key struct {
		day       time.Time
		sentiment models.Sentiment
	}
	counts := make(map[key]int)
	for _, r := range Window(records, ticker, windowDays, now) {
		if !r.Sentiment.Known() {
			continue
		}
		counts[key{models.Day(r.Date), r.Sentiment}]++
	}

	points := make([]models.TrendPoint, 0, len(counts))
	for k, n := range counts {
		points = append(points, models.TrendPoint{Date: k.day, Sentiment: k.sentiment, Count: n})
	}
	sort.Slice(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Sentiment.Rank() < points[j].Sentiment.Rank()
	})
	return points
}

// Tickers returns the sorted unique tickers present in records.
func Tickers(records []models.SentimentRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		t := strings.ToUpper(strings.TrimSpace(r.Ticker))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
