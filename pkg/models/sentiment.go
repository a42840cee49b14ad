package models

import (
	"strings"
	"time"
)

// Sentiment is the closed label set every classifier reply is reduced to.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
	Unknown Sentiment = "unknown"
)

// KnownSentiments lists the labels that carry a direction, in scan order.
var KnownSentiments = []Sentiment{Bullish, Bearish, Neutral}

// ParseSentiment maps a label to a Sentiment, case-insensitively.
// Anything unrecognised becomes Unknown.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case Bullish:
		return Bullish
	case Bearish:
		return Bearish
	case Neutral:
		return Neutral
	default:
		return Unknown
	}
}

// Known reports whether s is bullish, bearish or neutral.
func (s Sentiment) Known() bool {
	return s == Bullish || s == Bearish || s == Neutral
}

// Title returns the capitalised label, e.g. "Bullish".
func (s Sentiment) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Rank orders sentiments for stable output: bullish, bearish, neutral, unknown.
func (s Sentiment) Rank() int {
	switch s {
	case Bullish:
		return 0
	case Bearish:
		return 1
	case Neutral:
		return 2
	default:
		return 3
	}
}

// DateLayout is the ISO-8601 day format used by every persisted log.
const DateLayout = "2006-01-02"

// Day truncates t to midnight of its calendar day in UTC. Stored dates and
// trend windows both count days in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses an ISO-8601 day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// ProcessedRecord marks a URL as already logged for a source.
type ProcessedRecord struct {
	URL    string    `json:"url"`
	Source string    `json:"source"`
	Date   time.Time `json:"date"`
}

// SentimentRecord is one row of a per-source sentiment log.
type SentimentRecord struct {
	Date      time.Time `json:"date"`
	Ticker    string    `json:"ticker"`
	Sentiment Sentiment `json:"sentiment"`
	Source    string    `json:"source"`
}

// TrendPoint is the count of one sentiment on one day.
type TrendPoint struct {
	Date      time.Time `json:"date"`
	Sentiment Sentiment `json:"sentiment"`
	Count     int       `json:"count"`
}
