package utils

import (
	"testing"
	"time"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"TSLA", "TSLA"},
		{"tsla", "TSLA"},
		{" pltr ", "PLTR"},
		{"$HOOD", "HOOD"},
		{"dow", "^DJI"},
		{"S&P", "^GSPC"},
		{"UNKNOWNSTOCK", "UNKNOWNSTOCK"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := NormalizeTicker(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizeTicker(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestIsIndex(t *testing.T) {
	if !IsIndex("nasdaq") {
		t.Error("nasdaq should be an index")
	}
	if !IsIndex("^DJI") {
		t.Error("^DJI should be an index")
	}
	if IsIndex("OKLO") {
		t.Error("OKLO should not be an index")
	}
}

func TestNormalizeSource(t *testing.T) {
	if got := NormalizeSource(" NewsAPI "); got != "newsapi" {
		t.Errorf("NormalizeSource: got %q", got)
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("bullish, ,bearish,")
	if len(got) != 2 || got[0] != "bullish" || got[1] != "bearish" {
		t.Errorf("SplitList: got %v", got)
	}
	if SplitList("") != nil {
		t.Error("SplitList of empty string should be nil")
	}
}

func TestDaysAgo(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)
	got := DaysAgo(now, 7)
	want := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DaysAgo: got %v, want %v", got, want)
	}
}

func TestWithinLookback(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ts   time.Time
		days int
		want bool
	}{
		{"fresh", now.Add(-time.Hour), 7, true},
		{"six days", now.AddDate(0, 0, -6), 7, true},
		{"eight days", now.AddDate(0, 0, -8), 7, false},
		{"unrestricted", now.AddDate(-1, 0, 0), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinLookback(tt.ts, now, tt.days); got != tt.want {
				t.Errorf("WithinLookback = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2025, 1, 2, 23, 0, 0, 0, time.UTC)); got != "2025-01-02" {
		t.Errorf("FormatDate: got %q", got)
	}
}
