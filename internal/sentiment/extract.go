// Package sentiment turns news text into one of the fixed sentiment labels.
// Classifiers produce a free-form reply; the Extractor reduces that reply to
// a label. Keeping the two apart means a prompt change only has to keep the
// extractor tests passing.
package sentiment

import (
	"regexp"
	"strings"

	"github.com/seenimoa/marketpulse/pkg/models"
)

// ErrorMarker prefixes every classifier reply that stands for a failure.
const ErrorMarker = "Error summarizing"

// Extractor maps a classifier reply to a sentiment label.
type Extractor interface {
	Extract(text string) models.Sentiment
}

// KeywordExtractor is the substring-scan Extractor.
type KeywordExtractor struct{}

// Extract implements Extractor.
func (KeywordExtractor) Extract(text string) models.Sentiment {
	return ExtractKeyword(text)
}

// ExtractKeyword scans text case-insensitively for "bullish", "bearish" and
// "neutral", in that order, and returns the first one found. Text holding
// none of them is Unknown.
func ExtractKeyword(text string) models.Sentiment {
	lower := strings.ToLower(text)
	for _, s := range models.KnownSentiments {
		if strings.Contains(lower, string(s)) {
			return s
		}
	}
	return models.Unknown
}

// IsClassifierError reports whether a classifier reply is the error sentinel.
func IsClassifierError(s string) bool {
	return strings.HasPrefix(s, ErrorMarker)
}

var actionSplit = regexp.MustCompile(`(?i)suggested action:`)

// ParseSummary splits a classifier reply into its sentiment part and its
// suggested-action part for display. It splits on the first ";" when there
// is one, otherwise before "Suggested action:" (any case), keeping that
// prefix on the action. Replies with neither are all sentiment.
func ParseSummary(summary string) (sentimentText, actionText string) {
	if before, after, ok := strings.Cut(summary, ";"); ok {
		return strings.TrimSpace(before), strings.TrimSpace(after)
	}
	if loc := actionSplit.FindStringIndex(summary); loc != nil {
		return strings.TrimSpace(summary[:loc[0]]), strings.TrimSpace(summary[loc[0]:])
	}
	return strings.TrimSpace(summary), ""
}
