package analytics

import (
	"context"
	"math"

	"github.com/quantfolio/marketdata/internal/marketdata"
	"github.com/quantfolio/marketdata/internal/portfolio"
)

// RiskMetrics are annualized risk figures for one price index.
type RiskMetrics struct {
	VolatilityPct  float64 `json:"volatility_pct"`   // stdev of daily returns, annualized
	MaxDrawdownPct float64 `json:"max_drawdown_pct"` // largest peak-to-trough decline, negative
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
}

// RiskReport carries portfolio metrics plus the benchmark's own, when its
// series resolved.
type RiskReport struct {
	Portfolio RiskMetrics  `json:"portfolio"`
	Benchmark *RiskMetrics `json:"benchmark,omitempty"`
}

// GetRiskMetrics builds one weight-blended portfolio price index over the
// window (each holding normalized to its own start price) and computes
// annualized volatility, max drawdown, Sharpe and Sortino from it.
func (e *Engine) GetRiskMetrics(ctx context.Context, holdings []portfolio.Holding, benchmarkTicker, rangeLabel string) (*RiskReport, error) {
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

	weightSum := 0.0
	var axis []string
	for _, hs := range resolved {
		weightSum += hs.weight
		if len(hs.dates) > len(axis) {
			axis = hs.dates
		}
	}

	index := make([]float64, 0, len(axis))
	for _, date := range axis {
		v := 0.0
		for _, hs := range resolved {
			v += hs.weight / weightSum * (hs.priceAt(date) / hs.start)
		}
		index = append(index, v)
	}

	report := &RiskReport{Portfolio: e.metricsFromIndex(index)}

	if bench := indexSeries(0, batch[len(batch)-1]); bench != nil {
		benchIndex := make([]float64, 0, len(bench.dates))
		for _, d := range bench.dates {
			benchIndex = append(benchIndex, bench.byDate[d]/bench.start)
		}
		m := e.metricsFromIndex(benchIndex)
		report.Benchmark = &m
	}
	return report, nil
}

func (e *Engine) metricsFromIndex(index []float64) RiskMetrics {
	returns := dailyReturns(index)
	n := float64(e.tradingDays)

	vol := stdev(returns) * math.Sqrt(n)
	maxDD := maxDrawdown(index)

	annualized := 0.0
	if len(index) > 1 && index[0] > 0 && len(returns) > 0 {
		total := index[len(index)-1]/index[0] - 1
		years := float64(len(returns)) / n
		if years > 0 && 1+total > 0 {
			annualized = math.Pow(1+total, 1/years) - 1
		}
	}
	excess := annualized - e.riskFreeRate

	sharpe := 0.0
	if vol > 0 {
		sharpe = excess / vol
	}

	dailyRF := e.riskFreeRate / n
	dd := downsideDeviation(returns, dailyRF) * math.Sqrt(n)
	var sortino float64
	switch {
	case dd > 0:
		sortino = excess / dd
	case excess > 0:
		sortino = sortinoSentinel
	default:
		sortino = 0
	}

	return RiskMetrics{
		VolatilityPct:  vol * 100,
		MaxDrawdownPct: maxDD * 100,
		Sharpe:         sharpe,
		Sortino:        sortino,
	}
}

func dailyReturns(index []float64) []float64 {
	if len(index) < 2 {
		return nil
	}
	out := make([]float64, 0, len(index)-1)
	for i := 1; i < len(index); i++ {
		if index[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, index[i]/index[i-1]-1)
	}
	return out
}

// stdev is the population standard deviation.
func stdev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	mean := sum / float64(len(data))
	varianceSum := 0.0
	for _, v := range data {
		varianceSum += (v - mean) * (v - mean)
	}
	return math.Sqrt(varianceSum / float64(len(data)))
}

// maxDrawdown is the largest decline from a running peak, as a negative
// fraction; zero for monotonically rising series.
func maxDrawdown(index []float64) float64 {
	if len(index) == 0 {
		return 0
	}
	peak := index[0]
	maxDD := 0.0
	for _, v := range index {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// downsideDeviation measures dispersion below the daily risk-free hurdle.
func downsideDeviation(returns []float64, hurdle float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range returns {
		if diff := r - hurdle; diff < 0 {
			sum += diff * diff
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}
