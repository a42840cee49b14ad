package trend

import (
	"math"
	"sort"
	"strings"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// DistributionRow is the count of one sentiment for one ticker and source.
type DistributionRow struct {
	Ticker    string           `json:"ticker"`
	Source    string           `json:"source"`
	Sentiment models.Sentiment `json:"sentiment"`
	Count     int              `json:"count"`
}

// Distribution counts records per (ticker, source, sentiment). Every
// combination of the tickers, sources and sentiments present in records is
// emitted, zero-filled, so grouped bars line up.
func Distribution(records []models.SentimentRecord) []DistributionRow {
	type key struct {
		ticker, source string
		sentiment      models.Sentiment
	}
	counts := make(map[key]int)
	tickers := map[string]bool{}
	sources := map[string]bool{}
	sentiments := map[models.Sentiment]bool{}
	for _, r := range records {
		t := strings.ToUpper(r.Ticker)
		counts[key{t, r.Source, r.Sentiment}]++
		tickers[t] = true
		sources[r.Source] = true
		sentiments[r.Sentiment] = true
	}

	var rows []DistributionRow
	for _, t := range sortedKeys(tickers) {
		for _, src := range sortedKeys(sources) {
			for _, s := range sortedSentiments(sentiments) {
				rows = append(rows, DistributionRow{
					Ticker:    t,
					Source:    src,
					Sentiment: s,
					Count:     counts[key{t, src, s}],
				})
			}
		}
	}
	return rows
}

// Summary is the per-ticker breakdown shown on metric cards.
type Summary struct {
	Ticker     string  `json:"ticker"`
	Bullish    int     `json:"bullish"`
	Bearish    int     `json:"bearish"`
	Neutral    int     `json:"neutral"`
	Total      int     `json:"total"`
	BullishPct float64 `json:"bullish_pct"`
	BearishPct float64 `json:"bearish_pct"`
	NeutralPct float64 `json:"neutral_pct"`
}

// Dominant returns the most frequent sentiment, bullish winning ties over
// bearish and bearish over neutral. An empty summary is Unknown.
func (s Summary) Dominant() models.Sentiment {
	if s.Total == 0 {
		return models.Unknown
	}
	best, n := models.Bullish, s.Bullish
	if s.Bearish > n {
		best, n = models.Bearish, s.Bearish
	}
	if s.Neutral > n {
		best = models.Neutral
	}
	return best
}

// Summaries returns one Summary per ticker, sorted by ticker. Unknown
// records are not counted.
func Summaries(records []models.SentimentRecord) []Summary {
	byTicker := make(map[string]*Summary)
	for _, r := range records {
		if !r.Sentiment.Known() {
			continue
		}
		t := strings.ToUpper(r.Ticker)
		s, ok := byTicker[t]
		if !ok {
			s = &Summary{Ticker: t}
			byTicker[t] = s
		}
		switch r.Sentiment {
		case models.Bullish:
			s.Bullish++
		case models.Bearish:
			s.Bearish++
		case models.Neutral:
			s.Neutral++
		}
		s.Total++
	}

	out := make([]Summary, 0, len(byTicker))
	for _, s := range byTicker {
		s.BullishPct = pct(s.Bullish, s.Total)
		s.BearishPct = pct(s.Bearish, s.Total)
		s.NeutralPct = pct(s.Neutral, s.Total)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSentiments(m map[models.Sentiment]bool) []models.Sentiment {
	out := make([]models.Sentiment, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank() < out[j].Rank() })
	return out
}
