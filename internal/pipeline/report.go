package pipeline

import (
	"time"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// Status is what happened to one article.
type Status string

const (
	// StatusFailed: the classifier (or the log write) failed; nothing was stored.
	StatusFailed Status = "failed"
	// StatusSkipped: the article had no URL to deduplicate on.
	StatusSkipped Status = "skipped"
	// StatusDuplicate: the URL was already logged for this source.
	StatusDuplicate Status = "duplicate"
	// StatusLogged: the sentiment was appended and the URL marked.
	StatusLogged Status = "logged"
)

// ArticleResult is the outcome for one article.
type ArticleResult struct {
	Article       models.Article   `json:"article"`
	Summary       string           `json:"summary"`
	SentimentText string           `json:"sentiment_text"`
	Action        string           `json:"action"`
	Sentiment     models.Sentiment `json:"sentiment"`
	Status        Status           `json:"status"`
}

// Report summarises one scan.
type Report struct {
	RunID      string                   `json:"run_id"`
	Subject    string                   `json:"subject"`
	Source     string                   `json:"source"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
	Fetched    int                      `json:"fetched"`
	Results    []ArticleResult          `json:"results"`
	Counts     map[Status]int           `json:"counts"`
	Sentiments map[models.Sentiment]int `json:"sentiments"`
	Notified   bool                     `json:"notified"`
	Error      string                   `json:"error,omitempty"`
}

func newReport(runID, subject, source string, now time.Time) *Report {
	return &Report{
		RunID:      runID,
		Subject:    subject,
		Source:     source,
		StartedAt:  now,
		Results:    []ArticleResult{},
		Counts:     make(map[Status]int),
		Sentiments: make(map[models.Sentiment]int),
	}
}

func (r *Report) add(res ArticleResult) {
	r.Results = append(r.Results, res)
	r.Counts[res.Status]++
	if res.Status != StatusFailed {
		r.Sentiments[res.Sentiment]++
	}
}

// Filter returns the results whose sentiment is one of sentiments. With no
// sentiments every result is kept.
func (r *Report) Filter(sentiments ...models.Sentiment) []ArticleResult {
	if len(sentiments) == 0 {
		return r.Results
	}
	keep := make(map[models.Sentiment]bool, len(sentiments))
	for _, s := range sentiments {
		keep[s] = true
	}
	out := []ArticleResult{}
	for _, res := range r.Results {
		if keep[res.Sentiment] {
			out = append(out, res)
		}
	}
	return out
}

// Counts tallies sentiments over a result set, for the metric cards.
func Counts(results []ArticleResult) map[models.Sentiment]int {
	out := make(map[models.Sentiment]int, len(models.KnownSentiments))
	for _, s := range models.KnownSentiments {
		out[s] = 0
	}
	for _, res := range results {
		if res.Sentiment.Known() {
			out[res.Sentiment]++
		}
	}
	return out
}
