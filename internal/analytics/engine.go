package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfolio/marketdata/internal/marketdata"
)

// MarketData is the slice of the market-data service the analytics engine
// consumes. Candle batches arrive in input order with empty slices for
// unresolved tickers.
type MarketData interface {
	GetQuote(ctx context.Context, ticker string) (marketdata.Quote, error)
	GetQuotes(ctx context.Context, tickers []string) map[string]marketdata.Quote
	GetCandlesBatch(ctx context.Context, tickers []string, from, to time.Time) [][]marketdata.Candle
}

// PerformanceLabels are the standard lookback windows, shortest first.
var PerformanceLabels = []string{"1D", "1W", "1M", "3M", "6M", "YTD", "1Y"}

// rangeDays maps a lookback label to calendar days. YTD is resolved against
// the clock instead.
var rangeDays = map[string]int{
	"1D": 1,
	"1W": 7,
	"1M": 30,
	"3M": 90,
	"6M": 180,
	"1Y": 365,
}

const (
	// sortinoSentinel is reported when there is no downside deviation at
	// all and excess return is positive: "very good" without dividing by
	// zero.
	sortinoSentinel = 999.0
)

// Engine computes weighted portfolio returns and risk metrics from candle
// series fetched through the failover-protected batch path.
type Engine struct {
	data         MarketData
	riskFreeRate float64
	tradingDays  int
	now          func() time.Time
}

func NewEngine(data MarketData, riskFreeRate float64, tradingDays int) *Engine {
	if riskFreeRate <= 0 {
		riskFreeRate = 0.04
	}
	if tradingDays <= 0 {
		tradingDays = 252
	}
	return &Engine{
		data:         data,
		riskFreeRate: riskFreeRate,
		tradingDays:  tradingDays,
		now:          time.Now,
	}
}

// SetClock overrides the engine's clock; tests use it to pin windows.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// window resolves a range label into a [from, to] calendar window.
func (e *Engine) window(label string) (time.Time, time.Time, error) {
	to := e.now()
	if label == "YTD" {
		from := time.Date(to.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return from, to, nil
	}
	days, ok := rangeDays[label]
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("unknown range label %q", label)
	}
	return to.AddDate(0, 0, -days), to, nil
}

// holdingSeries is one holding's candle series indexed for date lookups.
type holdingSeries struct {
	weight float64
	start  float64
	byDate map[string]float64
	dates  []string
}

func indexSeries(weight float64, candles []marketdata.Candle) *holdingSeries {
	if len(candles) == 0 || candles[0].Price == 0 {
		return nil
	}
	hs := &holdingSeries{
		weight: weight,
		start:  candles[0].Price,
		byDate: make(map[string]float64, len(candles)),
		dates:  make([]string, 0, len(candles)),
	}
	for _, c := range candles {
		hs.byDate[c.Date] = c.Price
		hs.dates = append(hs.dates, c.Date)
	}
	return hs
}

// priceAt returns the holding's price on a date, falling back to its own
// start price when the date is missing so the holding contributes zero
// return instead of corrupting the series.
func (hs *holdingSeries) priceAt(date string) float64 {
	if p, ok := hs.byDate[date]; ok {
		return p
	}
	return hs.start
}

// firstOnOrAfter finds the earliest trading date at or after target, along
// with its price. YYYY-MM-DD strings compare lexicographically.
func (hs *holdingSeries) firstOnOrAfter(target string) (string, float64, bool) {
	for _, d := range hs.dates {
		if d >= target {
			return d, hs.byDate[d], true
		}
	}
	return "", 0, false
}

func (hs *holdingSeries) last() (string, float64) {
	d := hs.dates[len(hs.dates)-1]
	return d, hs.byDate[d]
}
