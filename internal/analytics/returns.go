package analytics

import (
	"context"

	"github.com/quantfolio/marketdata/internal/marketdata"
	"github.com/quantfolio/marketdata/internal/portfolio"
)

// PortfolioPoint is one date's cumulative percent return for the portfolio
// and its benchmark, measured from the window's first trading date.
type PortfolioPoint struct {
	Date         string  `json:"date"`
	PortfolioPct float64 `json:"portfolio_pct"`
	BenchmarkPct float64 `json:"benchmark_pct"`
}

// PerformanceReport maps each lookback label to a percent return, nil when
// that horizon could not be resolved. Degraded is set when no historical
// series was obtainable and the 1D figure came from quote vs previous close.
type PerformanceReport struct {
	Portfolio map[string]*float64 `json:"portfolio"`
	Benchmark map[string]*float64 `json:"benchmark"`
	Degraded  bool                `json:"degraded"`
}

// GetPortfolioReturn computes the weight-normalized cumulative percent
// return of the portfolio for every trading date in the window, plus the
// benchmark's return on the same basis. Holdings with no resolvable series
// are excluded and the surviving weights rescaled to 100%.
func (e *Engine) GetPortfolioReturn(ctx context.Context, holdings []portfolio.Holding, benchmarkTicker, rangeLabel string) ([]PortfolioPoint, error) {
	from, to, err := e.window(rangeLabel)
	if err != nil {
		return nil, err
	}

	tickers := append(portfolio.Tickers(holdings), benchmarkTicker)
	batch := e.data.GetCandlesBatch(ctx, tickers, from, to)

	resolved := make([]*holdingSeries, 0, len(holdings))
	for i, h := range holdings {
		if hs := indexSeries(h.WeightPercent, batch[i]); hs != nil {
			resolved = append(resolved, hs)
		}
	}
	if len(resolved) == 0 {
		return nil, marketdata.ErrNoHistory
	}
	bench := indexSeries(0, batch[len(batch)-1])

	weightSum := 0.0
	for _, hs := range resolved {
		weightSum += hs.weight
	}

	// The longest series supplies the date axis.
	var axis []string
	for _, hs := range resolved {
		if len(hs.dates) > len(axis) {
			axis = hs.dates
		}
	}
	if bench != nil && len(bench.dates) > len(axis) {
		axis = bench.dates
	}

	points := make([]PortfolioPoint, 0, len(axis))
	for _, date := range axis {
		port := 0.0
		for _, hs := range resolved {
			ret := hs.priceAt(date)/hs.start - 1
			port += hs.weight / weightSum * ret
		}
		p := PortfolioPoint{Date: date, PortfolioPct: port * 100}
		if bench != nil {
			p.BenchmarkPct = (bench.priceAt(date)/bench.start - 1) * 100
		}
		points = append(points, p)
	}
	return points, nil
}

// GetPerformanceReturns computes percent returns over the standard lookback
// labels. Each label diffs the latest trading date against the earliest one
// at or after "now minus N calendar days"; holdings whose series cannot
// resolve a label are dropped and the remaining weights rescaled. When no
// historical series exists at all, the report degrades to a quote-based
// one-day return with every longer horizon nil.
func (e *Engine) GetPerformanceReturns(ctx context.Context, holdings []portfolio.Holding, benchmarkTicker string) (*PerformanceReport, error) {
	// One fetch covers the longest horizon; per-label slicing happens on
	// the cached series.
	to := e.now()
	from := to.AddDate(0, 0, -370)

	tickers := append(portfolio.Tickers(holdings), benchmarkTicker)
	batch := e.data.GetCandlesBatch(ctx, tickers, from, to)

	series := make([]*holdingSeries, len(holdings))
	anyHistory := false
	for i, h := range holdings {
		series[i] = indexSeries(h.WeightPercent, batch[i])
		if series[i] != nil {
			anyHistory = true
		}
	}
	bench := indexSeries(0, batch[len(batch)-1])

	if !anyHistory {
		return e.quoteBasedReturns(ctx, holdings, benchmarkTicker)
	}

	report := &PerformanceReport{
		Portfolio: make(map[string]*float64, len(PerformanceLabels)),
		Benchmark: make(map[string]*float64, len(PerformanceLabels)),
	}
	for _, label := range PerformanceLabels {
		labelFrom, _, err := e.window(label)
		if err != nil {
			return nil, err
		}
		target := labelFrom.UTC().Format("2006-01-02")

		report.Portfolio[label] = combinedReturn(series, target)
		if bench != nil {
			report.Benchmark[label] = singleReturn(bench, target)
		} else {
			report.Benchmark[label] = nil
		}
	}
	return report, nil
}

// combinedReturn blends per-holding returns for one lookback target,
// rescaling surviving weights to 100%. Returns nil when nothing resolves.
func combinedReturn(series []*holdingSeries, target string) *float64 {
	weightSum := 0.0
	weighted := 0.0
	for _, hs := range series {
		if hs == nil {
			continue
		}
		_, startPrice, ok := hs.firstOnOrAfter(target)
		if !ok || startPrice == 0 {
			continue
		}
		_, lastPrice := hs.last()
		weightSum += hs.weight
		weighted += hs.weight * (lastPrice/startPrice - 1)
	}
	if weightSum == 0 {
		return nil
	}
	pct := weighted / weightSum * 100
	return &pct
}

func singleReturn(hs *holdingSeries, target string) *float64 {
	_, startPrice, ok := hs.firstOnOrAfter(target)
	if !ok || startPrice == 0 {
		return nil
	}
	_, lastPrice := hs.last()
	pct := (lastPrice/startPrice - 1) * 100
	return &pct
}

// quoteBasedReturns is the degraded path: a snapshot one-day return from
// price vs previous close, everything longer explicitly nil. A snapshot is
// strictly better than nothing.
func (e *Engine) quoteBasedReturns(ctx context.Context, holdings []portfolio.Holding, benchmarkTicker string) (*PerformanceReport, error) {
	quotes := e.data.GetQuotes(ctx, portfolio.Tickers(holdings))

	weightSum := 0.0
	weighted := 0.0
	for _, h := range holdings {
		q, ok := quotes[h.Ticker]
		if !ok || q.PrevClose == 0 {
			continue
		}
		weightSum += h.WeightPercent
		weighted += h.WeightPercent * (q.Price/q.PrevClose - 1)
	}
	if weightSum == 0 {
		return nil, marketdata.ErrNoHistory
	}

	report := &PerformanceReport{
		Portfolio: make(map[string]*float64, len(PerformanceLabels)),
		Benchmark: make(map[string]*float64, len(PerformanceLabels)),
		Degraded:  true,
	}
	for _, label := range PerformanceLabels {
		report.Portfolio[label] = nil
		report.Benchmark[label] = nil
	}
	oneDay := weighted / weightSum * 100
	report.Portfolio["1D"] = &oneDay

	if q, err := e.data.GetQuote(ctx, benchmarkTicker); err == nil && q.PrevClose != 0 {
		benchDay := (q.Price/q.PrevClose - 1) * 100
		report.Benchmark["1D"] = &benchDay
	}
	return report, nil
}
