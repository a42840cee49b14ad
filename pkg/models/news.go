package models

import "time"

// MarketQuery is the pseudo-ticker used for general market news.
const MarketQuery = "market"

// Article represents a single news article returned by a news provider.
type Article struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Source      string    `json:"source"` // publisher, e.g. "Reuters"
}

// Text returns title and description joined, used for relevance matching.
func (a Article) Text() string {
	if a.Description == "" {
		return a.Title
	}
	return a.Title + " " + a.Description
}

// CalendarEvent is an upcoming market event shown on the ticker page.
type CalendarEvent struct {
	Date   string `json:"date"`
	Event  string `json:"event"`
	Impact string `json:"impact"`
}
