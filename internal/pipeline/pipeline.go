// Package pipeline runs one scan: fetch news for a subject, classify each
// article, log new sentiments exactly once per (url, source) and send the
// digest.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/marketpulse/internal/datasource"
	"github.com/seenimoa/marketpulse/internal/metrics"
	"github.com/seenimoa/marketpulse/internal/notify"
	"github.com/seenimoa/marketpulse/internal/sentiment"
	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// Sources resolves a news provider by source name.
type Sources interface {
	News(source string) (datasource.NewsProvider, bool)
}

// Observer is told about every sentiment the pipeline logs.
type Observer interface {
	SentimentLogged(ev Event)
}

// Event describes one logged sentiment.
type Event struct {
	RunID     string           `json:"run_id"`
	Ticker    string           `json:"ticker"`
	Source    string           `json:"source"`
	URL       string           `json:"url"`
	Title     string           `json:"title"`
	Sentiment models.Sentiment `json:"sentiment"`
	Date      string           `json:"date"`
}

// Pipeline holds the collaborators of a scan.
type Pipeline struct {
	sources     Sources
	classifier  sentiment.Classifier
	extractor   sentiment.Extractor
	store       store.Store
	notifier    notify.Notifier
	observer    Observer
	logger      *slog.Logger
	now         utils.Clock
	concurrency int
	lookback    int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithNotifier sets where digests go. The default discards them.
func WithNotifier(n notify.Notifier) Option {
	return func(p *Pipeline) { p.notifier = n }
}

// WithObserver registers an observer for logged sentiments.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithExtractor replaces the keyword extractor.
func WithExtractor(e sentiment.Extractor) Option {
	return func(p *Pipeline) { p.extractor = e }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock pins "now" for the lookback filter and default dates.
func WithClock(now utils.Clock) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithConcurrency bounds the number of concurrent classifier calls.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLookbackDays drops articles published before now minus days.
// Zero disables the filter.
func WithLookbackDays(days int) Option {
	return func(p *Pipeline) { p.lookback = days }
}

// New creates a Pipeline.
func New(sources Sources, classifier sentiment.Classifier, st store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:     sources,
		classifier:  classifier,
		extractor:   sentiment.KeywordExtractor{},
		store:       st,
		notifier:    notify.Discard{},
		logger:      slog.Default(),
		now:         utils.SystemClock,
		concurrency: 4,
		lookback:    7,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request selects what to scan.
type Request struct {
	// Ticker is the subject; empty or "market" scans general market news.
	Ticker string
	// Source names the news provider, e.g. "newsapi" or "rss".
	Source string
	// Keyword keeps only articles whose title or description contains it.
	Keyword string
	// Notify sends the digest when it is not empty.
	Notify bool
}

// Subject returns the normalised ticker, or "market".
func (r Request) Subject() string {
	t := strings.TrimSpace(r.Ticker)
	if t == "" || strings.EqualFold(t, models.MarketQuery) {
		return models.MarketQuery
	}
	return utils.NormalizeTicker(t)
}

// Fanout fetches one query from every registered source at once.
type Fanout interface {
	FetchAll(ctx context.Context, query string) []datasource.FetchResult
}

type fetchFunc func(ctx context.Context, query string) ([]models.Article, error)

// Run executes one scan. It never fails: upstream errors leave an empty
// report with Error set, and per-article problems show up in each result's
// Status.
func (p *Pipeline) Run(ctx context.Context, req Request) *Report {
	source := utils.NormalizeSource(req.Source)
	var fetch fetchFunc
	if provider, ok := p.sources.News(source); ok {
		fetch = provider.Fetch
	}
	return p.execute(ctx, req, source, fetch)
}

// RunAll fetches the subject from every source concurrently, then records
// each source's articles under that source. Reports come back in source
// order. req.Source is ignored.
func (p *Pipeline) RunAll(ctx context.Context, req Request) []*Report {
	fan, ok := p.sources.(Fanout)
	if !ok {
		rep := newReport(uuid.NewString(), req.Subject(), datasource.SourceAll, p.now())
		rep.Error = "sources cannot be fetched together"
		return []*Report{rep}
	}

	results := fan.FetchAll(ctx, req.Subject())
	reports := make([]*Report, 0, len(results))
	for _, res := range results {
		fetched := res
		reports = append(reports, p.execute(ctx, req, fetched.Source, func(context.Context, string) ([]models.Article, error) {
			return fetched.Articles, fetched.Err
		}))
	}
	return reports
}

// execute runs one scan against source with fetch; a nil fetch means the
// source is not registered.
func (p *Pipeline) execute(ctx context.Context, req Request, source string, fetch fetchFunc) *Report {
	start := time.Now()
	subject := req.Subject()
	rep := newReport(uuid.NewString(), subject, source, p.now())
	log := p.logger.With("run_id", rep.RunID, "subject", subject, "source", source)
	defer func() {
		rep.Duration = time.Since(start)
		metrics.ObserveRun(source, rep.Duration.Seconds())
	}()

	if fetch == nil {
		rep.Error = fmt.Sprintf("unknown news source %q", req.Source)
		log.Warn("scan skipped", "error", rep.Error)
		return rep
	}

	articles, err := fetch(ctx, subject)
	if err != nil {
		metrics.RecordFetchError(source)
		rep.Error = "news fetch failed"
		log.Warn("news fetch failed", "error", err)
		return rep
	}
	rep.Fetched = len(articles)
	articles = p.filter(articles, req.Keyword)

	summaries, err := p.classify(ctx, articles, subject)
	if err != nil {
		rep.Error = "scan cancelled"
		log.Warn("classification interrupted", "error", err)
		return rep
	}

	digest := notify.NewDigest(subject)
	for i, a := range articles {
		res := p.record(a, summaries[i], subject, source, rep.RunID, log)
		rep.add(res)
		digest.Add(a.Title, res.Summary)
	}

	if req.Notify && !digest.Empty() {
		p.notifier.Send(ctx, digest.String())
		rep.Notified = true
	}

	log.Info("scan complete",
		"fetched", rep.Fetched,
		"logged", rep.Counts[StatusLogged],
		"duplicate", rep.Counts[StatusDuplicate],
		"failed", rep.Counts[StatusFailed],
	)
	return rep
}

// filter drops stale articles and, with a keyword, unrelated ones.
func (p *Pipeline) filter(articles []models.Article, keyword string) []models.Article {
	now := p.now()
	kw := strings.ToLower(strings.TrimSpace(keyword))
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if p.lookback > 0 && (a.PublishedAt.IsZero() || !utils.WithinLookback(a.PublishedAt, now, p.lookback)) {
			continue
		}
		if kw != "" && !strings.Contains(strings.ToLower(a.Title+a.Description), kw) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// classify runs the classifier over every article with bounded
// concurrency. summaries[i] belongs to articles[i].
func (p *Pipeline) classify(ctx context.Context, articles []models.Article, subject string) ([]string, error) {
	summaries := make([]string, len(articles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, a := range articles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			summaries[i] = p.classifier.Classify(gctx, a.Description, subject)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// record turns one classified article into a result, logging it when new.
func (p *Pipeline) record(a models.Article, summary, subject, source, runID string, log *slog.Logger) ArticleResult {
	res := ArticleResult{Article: a, Summary: summary}
	res.SentimentText, res.Action = sentiment.ParseSummary(summary)

	if sentiment.IsClassifierError(summary) {
		res.Status = StatusFailed
		res.Sentiment = models.Unknown
		metrics.RecordClassifierFailure()
		metrics.RecordArticle(source, string(res.Status))
		return res
	}
	res.Sentiment = p.extractor.Extract(summary)

	if a.URL == "" {
		res.Status = StatusSkipped
		metrics.RecordArticle(source, string(res.Status))
		return res
	}

	date := a.PublishedAt
	if date.IsZero() {
		date = p.now()
	}
	rec := models.SentimentRecord{
		Date:      models.Day(date),
		Ticker:    subject,
		Sentiment: res.Sentiment,
		Source:    source,
	}
	written, err := p.store.LogOnce(a.URL, rec)
	switch {
	case err != nil:
		log.Warn("sentiment log write failed", "url", a.URL, "error", err)
		res.Status = StatusFailed
	case !written:
		res.Status = StatusDuplicate
	default:
		res.Status = StatusLogged
		metrics.RecordLogged(source, string(res.Sentiment))
		if p.observer != nil {
			p.observer.SentimentLogged(Event{
				RunID:     runID,
				Ticker:    subject,
				Source:    source,
				URL:       a.URL,
				Title:     a.Title,
				Sentiment: res.Sentiment,
				Date:      rec.Date.Format(models.DateLayout),
			})
		}
	}
	metrics.RecordArticle(source, string(res.Status))
	return res
}
