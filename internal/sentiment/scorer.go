package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// ------------------------------------------------------------------
// Keyword-based sentiment scorer (offline, no LLM needed).
// Used when no LLM backend is configured; replies in the same format
// the LLM prompt asks for so extraction works unchanged.
// ------------------------------------------------------------------

// bullish / bearish keyword dictionaries (lowercase).
var bullishWords = map[string]float64{
	"bullish": 0.7, "rally": 0.6, "surge": 0.7, "soar": 0.7, "upbeat": 0.5,
	"positive": 0.4, "growth": 0.4, "upgrade": 0.6, "outperform": 0.6,
	"buy": 0.5, "strong": 0.4, "recovery": 0.5, "breakout": 0.6,
	"record high": 0.7, "all-time high": 0.7, "beat": 0.5, "jump": 0.5,
	"exceeds": 0.5, "expansion": 0.4, "gain": 0.4,
	"profit": 0.3, "dividend": 0.4, "partnership": 0.3, "approval": 0.5,
}

var bearishWords = map[string]float64{
	"bearish": 0.7, "crash": 0.8, "plunge": 0.7, "slump": 0.6, "tumble": 0.6,
	"negative": 0.4, "downgrade": 0.6, "underperform": 0.6,
	"sell": 0.5, "weak": 0.4, "decline": 0.5, "loss": 0.4,
	"selloff": 0.7, "fall": 0.4, "drop": 0.4, "correction": 0.5,
	"default": 0.7, "fraud": 0.8, "lawsuit": 0.6, "investigation": 0.5,
	"recall": 0.5, "miss": 0.5, "warning": 0.5, "concern": 0.3, "layoff": 0.5,
}

// ScoreHeadline returns a sentiment score for a piece of text.
// Score ranges from -1.0 (very bearish) to +1.0 (very bullish).
func ScoreHeadline(headline string) (score float64, confidence float64) {
	lower := strings.ToLower(headline)

	bullScore := 0.0
	bearScore := 0.0
	matches := 0

	for word, weight := range bullishWords {
		if strings.Contains(lower, word) {
			bullScore += weight
			matches++
		}
	}

	for word, weight := range bearishWords {
		if strings.Contains(lower, word) {
			bearScore += weight
			matches++
		}
	}

	total := bullScore + bearScore
	if matches == 0 || total == 0 {
		return 0, 0.1 // no signal
	}

	// Net score normalized to -1..+1.
	score = (bullScore - bearScore) / total

	// Confidence based on number of keyword matches.
	confidence = math.Min(float64(matches)*0.15+0.2, 0.85)

	return score, confidence
}

// Label maps a score to a sentiment label.
func Label(score float64) models.Sentiment {
	switch {
	case score > 0.1:
		return models.Bullish
	case score < -0.1:
		return models.Bearish
	default:
		return models.Neutral
	}
}

// suggestedActions is the canned advice per label.
var suggestedActions = map[models.Sentiment]string{
	models.Bullish: "Consider accumulating on dips while momentum holds.",
	models.Bearish: "Consider trimming exposure or tightening stop-losses.",
	models.Neutral: "Hold and wait for a clearer signal.",
}

// OfflineClassifier scores text against the keyword dictionaries.
type OfflineClassifier struct{}

// Classify implements Classifier.
func (OfflineClassifier) Classify(ctx context.Context, text, subject string) string {
	if err := ctx.Err(); err != nil {
		return ErrorMarker + ": " + err.Error()
	}
	if strings.TrimSpace(text) == "" {
		text = NoSummary
	}
	score, _ := ScoreHeadline(text)
	label := Label(score)
	return "Sentiment: " + label.Title() + "\nSuggested Action: " + suggestedActions[label]
}
