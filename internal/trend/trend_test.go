package trend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/pkg/models"
)

var fixedNow = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func day(daysAgo int) time.Time {
	return models.Day(fixedNow).AddDate(0, 0, -daysAgo)
}

func rec(daysAgo int, ticker string, s models.Sentiment) models.SentimentRecord {
	return models.SentimentRecord{Date: day(daysAgo), Ticker: ticker, Sentiment: s, Source: "newsapi"}
}

// ── AggregateRecords ──

func TestAggregateRecordsWindow(t *testing.T) {
	records := []models.SentimentRecord{
		rec(0, "TSLA", models.Bullish),
		rec(6, "TSLA", models.Bearish),
		rec(8, "TSLA", models.Bullish),
	}
	points := AggregateRecords(records, "TSLA", 7, fixedNow)
	require.Len(t, points, 2)
	assert.Equal(t, models.TrendPoint{Date: day(6), Sentiment: models.Bearish, Count: 1}, points[0])
	assert.Equal(t, models.TrendPoint{Date: day(0), Sentiment: models.Bullish, Count: 1}, points[1])
}

func TestAggregateRecordsWindowBoundary(t *testing.T) {
	records := []models.SentimentRecord{rec(7, "TSLA", models.Neutral)}
	assert.Len(t, AggregateRecords(records, "TSLA", 7, fixedNow), 1, "today-7 is inside the window")
	assert.Empty(t, AggregateRecords(records, "TSLA", 6, fixedNow))
}

func TestAggregateRecordsExcludesUnknownAndOtherTickers(t *testing.T) {
	records := []models.SentimentRecord{
		rec(1, "TSLA", models.Unknown),
		rec(1, "PLTR", models.Bullish),
		rec(1, "tsla", models.Neutral),
	}
	points := AggregateRecords(records, "TSLA", 7, fixedNow)
	require.Len(t, points, 1)
	assert.Equal(t, models.Neutral, points[0].Sentiment)
}

func TestAggregateRecordsGroupingAndOrder(t *testing.T) {
	records := []models.SentimentRecord{
		rec(1, "HOOD", models.Neutral),
		rec(1, "HOOD", models.Bullish),
		rec(2, "HOOD", models.Bearish),
		rec(1, "HOOD", models.Bullish),
		rec(1, "HOOD", models.Bearish),
	}
	points := AggregateRecords(records, "HOOD", 7, fixedNow)
	want := []models.TrendPoint{
		{Date: day(2), Sentiment: models.Bearish, Count: 1},
		{Date: day(1), Sentiment: models.Bullish, Count: 2},
		{Date: day(1), Sentiment: models.Bearish, Count: 1},
		{Date: day(1), Sentiment: models.Neutral, Count: 1},
	}
	assert.Equal(t, want, points)
}

func TestAggregateRecordsRoundTrip(t *testing.T) {
	labels := []models.Sentiment{models.Bullish, models.Unknown, models.Bearish, models.Neutral, models.Unknown, models.Bullish}
	s := store.NewMemoryStore()
	for i, l := range labels {
		require.NoError(t, s.Append(models.SentimentRecord{Date: day(i * 100), Ticker: "OKLO", Sentiment: l, Source: "rss"}))
	}
	records, err := s.Scan("rss")
	require.NoError(t, err)

	total := 0
	for _, p := range AggregateRecords(records, "OKLO", 0, fixedNow) {
		total += p.Count
	}
	assert.Equal(t, len(labels)-2, total)
}

func TestAggregateRecordsAllTickers(t *testing.T) {
	records := []models.SentimentRecord{rec(0, "TSLA", models.Bullish), rec(0, "PLTR", models.Bullish)}
	points := AggregateRecords(records, "", 7, fixedNow)
	require.Len(t, points, 1)
	assert.Equal(t, 2, points[0].Count)
}

// ── Aggregate (status) ──

type failingLog struct{}

func (failingLog) Append(models.SentimentRecord) error { return nil }
func (failingLog) Scan(string) ([]models.SentimentRecord, error) {
	return nil, errors.New("permission denied")
}

func TestAggregateStatuses(t *testing.T) {
	dir := t.TempDir()
	csv, err := store.NewCSVStore(dir)
	require.NoError(t, err)

	// empty file under one source
	require.NoError(t, os.WriteFile(csv.LogPath("rss"), nil, 0o644))
	// populated log under another
	require.NoError(t, csv.Append(rec(0, "TSLA", models.Bullish)))
	require.NoError(t, csv.Append(rec(30, "PLTR", models.Bearish)))

	a := New(csv, WithClock(clock))

	tests := []struct {
		name   string
		source string
		ticker string
		want   Status
	}{
		{"missing", "sheets", "TSLA", StatusLogMissing},
		{"empty", "rss", "TSLA", StatusLogEmpty},
		{"no matches", "newsapi", "HOOD", StatusNoMatches},
		{"outside window", "newsapi", "PLTR", StatusNoMatches},
		{"ok", "newsapi", "tsla", StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := a.Aggregate(tt.source, tt.ticker, 7)
			assert.Equal(t, tt.want, res.Status)
			if tt.want == StatusOK {
				assert.Empty(t, res.Message())
				assert.Equal(t, 1, res.Total)
				assert.Equal(t, "TSLA", res.Ticker)
			} else {
				assert.NotEmpty(t, res.Message())
				assert.Empty(t, res.Points)
			}
		})
	}

	// The three empty states carry distinct messages.
	msgs := map[string]bool{
		a.Aggregate("sheets", "TSLA", 7).Message():  true,
		a.Aggregate("rss", "TSLA", 7).Message():     true,
		a.Aggregate("newsapi", "HOOD", 7).Message(): true,
	}
	assert.Len(t, msgs, 3)
}

func TestAggregateHeaderOnlyIsEmpty(t *testing.T) {
	dir := t.TempDir()
	csv, err := store.NewCSVStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sentiment_log_newsapi.csv"), []byte("date,ticker,sentiment\n"), 0o644))

	res := New(csv, WithClock(clock)).Aggregate("NewsAPI", "TSLA", 7)
	assert.Equal(t, StatusLogEmpty, res.Status)
}

func TestAggregateUnreadable(t *testing.T) {
	res := New(failingLog{}, WithClock(clock)).Aggregate("newsapi", "TSLA", 7)
	assert.Equal(t, StatusUnreadable, res.Status)
	assert.False(t, res.OK())
}

// ── LoadSources / Tickers ──

func TestLoadSources(t *testing.T) {
	s := store.NewMemoryStore()
	require.NoError(t, s.Append(models.SentimentRecord{Date: day(0), Ticker: "TSLA", Sentiment: models.Bullish, Source: "NewsAPI"}))
	require.NoError(t, s.Append(models.SentimentRecord{Date: day(0), Ticker: "PLTR", Sentiment: models.Bearish, Source: "RSS"}))

	records, err := New(s).LoadSources([]string{"NewsAPI", "RSS", "missing"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "newsapi", records[0].Source)
	assert.Equal(t, "rss", records[1].Source)

	_, err = New(failingLog{}).LoadSources([]string{"newsapi"})
	assert.Error(t, err)
}

func TestTickers(t *testing.T) {
	records := []models.SentimentRecord{
		rec(0, "tsla", models.Bullish),
		rec(0, "PLTR", models.Bullish),
		rec(0, "TSLA", models.Bearish),
		rec(0, "", models.Bearish),
	}
	assert.Equal(t, []string{"PLTR", "TSLA"}, Tickers(records))
}
