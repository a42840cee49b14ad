package utils

import (
	"strings"
)

// Common index aliases, mapped to their Yahoo Finance symbols.
var indexTickers = map[string]string{
	"DOW":    "^DJI",
	"DJI":    "^DJI",
	"DJIA":   "^DJI",
	"SPX":    "^GSPC",
	"S&P":    "^GSPC",
	"SP500":  "^GSPC",
	"S&P500": "^GSPC",
	"NASDAQ": "^IXIC",
	"IXIC":   "^IXIC",
	"VIX":    "^VIX",
}

// NormalizeTicker normalizes user input to an upper-case ticker symbol.
// It strips whitespace and the "$" cashtag prefix, and resolves index aliases.
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in chat and digests)
	ticker = strings.TrimPrefix(ticker, "$")

	if idx, ok := indexTickers[ticker]; ok {
		return idx
	}
	return ticker
}

// IsIndex checks if the ticker is a Yahoo index symbol.
func IsIndex(ticker string) bool {
	return strings.HasPrefix(NormalizeTicker(ticker), "^")
}

// NormalizeSource lower-cases a source name for use in log file names.
func NormalizeSource(source string) string {
	return strings.ToLower(strings.TrimSpace(source))
}

// SplitList splits a comma-separated query value, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
