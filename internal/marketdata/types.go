package marketdata

import (
	"context"
	"time"
)

// Quote is the canonical quote shape callers see, regardless of provider.
type Quote struct {
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	PrevClose     float64 `json:"prev_close"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
}

// Candle is one day's closing price in a historical series.
type Candle struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Price float64 `json:"price"`
}

// SearchResult is a single ranked symbol-search hit.
type SearchResult struct {
	Ticker    string   `json:"ticker"`
	Name      string   `json:"name"`
	Type      string   `json:"type"` // "Stock" | "ETF"
	Exchange  string   `json:"exchange"`
	LastPrice *float64 `json:"last_price"` // nil when the search endpoint has no price
}

// CandleSource is anything that can produce a daily close series for a
// ticker over a date range. Both provider clients satisfy it, which is what
// lets the failover controller treat them interchangeably.
type CandleSource interface {
	GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error)
}
