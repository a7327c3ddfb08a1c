package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quantfolio/marketdata/internal/analytics"
	"github.com/quantfolio/marketdata/internal/config"
	"github.com/quantfolio/marketdata/internal/marketdata"
	"github.com/quantfolio/marketdata/internal/observ"
	"github.com/quantfolio/marketdata/internal/portfolio"
)

// marketwatch is a debug harness for the market-data layer: fetch quotes,
// candles and risk metrics for a watchlist and print them as JSON lines.
func main() {
	configPath := flag.String("config", "config/base.yaml", "path to YAML config")
	symbolsFlag := flag.String("symbols", "AAPL,MSFT,SPY", "comma-separated watchlist")
	benchmark := flag.String("benchmark", "SPY", "benchmark ticker")
	rangeLabel := flag.String("range", "6M", "lookback range (1W,1M,3M,6M,1Y,YTD)")
	timeout := flag.Duration("timeout", 60*time.Second, "overall deadline")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// A missing config file is fine for quick runs; defaults plus the
		// env credential cover it.
		cfg = config.Root{}
		cfg.ApplyDefaults()
	}
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.Primary.APIKey = key
	}
	if cfg.Primary.APIKey == "" {
		fmt.Fprintln(os.Stderr, "no API key: set primary.api_key or FINNHUB_API_KEY")
		os.Exit(1)
	}

	svc, err := marketdata.NewService(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	symbols := strings.Split(*symbolsFlag, ",")
	for i := range symbols {
		symbols[i] = strings.TrimSpace(symbols[i])
	}

	quotes := svc.GetQuotes(ctx, symbols)
	for _, sym := range symbols {
		q, ok := quotes[sym]
		if !ok {
			observ.Log("quote_unavailable", map[string]any{"symbol": sym})
			continue
		}
		observ.Log("quote", map[string]any{
			"symbol": sym, "price": q.Price, "change_pct": q.ChangePercent,
		})
	}

	// Equal-weight the watchlist so the analytics path gets exercised.
	holdings := make([]portfolio.Holding, len(symbols))
	for i, sym := range symbols {
		holdings[i] = portfolio.Holding{Ticker: sym, WeightPercent: 100.0 / float64(len(symbols))}
	}

	engine := analytics.NewEngine(svc, cfg.Analytics.RiskFreeRate, cfg.Analytics.TradingDaysYear)

	perf, err := engine.GetPerformanceReturns(ctx, holdings, *benchmark)
	if err != nil {
		observ.Log("performance_unavailable", map[string]any{"error": err.Error()})
	} else {
		b, _ := json.Marshal(perf)
		fmt.Println(string(b))
	}

	risk, err := engine.GetRiskMetrics(ctx, holdings, *benchmark, *rangeLabel)
	if err != nil {
		observ.Log("risk_unavailable", map[string]any{"error": err.Error()})
	} else {
		b, _ := json.Marshal(risk)
		fmt.Println(string(b))
	}

	observ.Log("done", map[string]any{
		"candle_provider": svc.ActiveCandleProvider().String(),
	})
}
