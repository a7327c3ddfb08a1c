package marketdata

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quantfolio/marketdata/internal/observ"
)

// Default stagger intervals. The primary provider rate-limits aggressively;
// the secondary has no practical ceiling so requests pack tighter.
const (
	DefaultPrimaryStagger   = 350 * time.Millisecond
	DefaultSecondaryStagger = 120 * time.Millisecond
)

// CandleFetch fetches one ticker's series; the stagger scheduler routes all
// of a batch through it.
type CandleFetch func(ctx context.Context, ticker string) ([]Candle, error)

// FetchAllStaggered runs one fetch per ticker, starting each at least
// `delay` after the previous one started, and returns results in input
// order. A single ticker's failure does not abort the batch; that slot gets
// an empty series and the rest proceed. Context cancellation empties every
// slot not yet started.
func FetchAllStaggered(ctx context.Context, tickers []string, delay time.Duration, fetch CandleFetch) [][]Candle {
	results := make([][]Candle, len(tickers))
	for i := range results {
		results[i] = []Candle{}
	}

	limiter := rate.NewLimiter(rate.Every(delay), 1)
	var wg sync.WaitGroup
	for i, ticker := range tickers {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, ticker string) {
			defer wg.Done()
			series, err := fetch(ctx, ticker)
			if err != nil {
				observ.IncCounter("marketdata_batch_fetch_error_total", map[string]string{"symbol": ticker})
				return
			}
			results[i] = series
		}(i, ticker)
	}
	wg.Wait()
	return results
}
