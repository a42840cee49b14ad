// Package models defines the core data structures used throughout MarketPulse.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote represents the latest known price for a ticker.
type Quote struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// Change returns the absolute move against the previous close.
func (q *Quote) Change() decimal.Decimal {
	if q.PrevClose.IsZero() {
		return decimal.Zero
	}
	return q.Price.Sub(q.PrevClose)
}

// ChangePct returns the move against the previous close, in percent.
func (q *Quote) ChangePct() decimal.Decimal {
	if q.PrevClose.IsZero() {
		return decimal.Zero
	}
	return q.Change().Div(q.PrevClose).Mul(decimal.NewFromInt(100)).Round(2)
}

// DisplayPrice formats the price the way the dashboard shows it, e.g. "$182.40".
func (q *Quote) DisplayPrice() string {
	prefix := "$"
	if q.Currency != "" && q.Currency != "USD" {
		prefix = q.Currency + " "
	}
	return prefix + q.Price.StringFixed(2)
}
