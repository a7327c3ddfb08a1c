package marketdata

import (
	"context"
	"sync"
	"time"

	"github.com/quantfolio/marketdata/internal/observ"
)

// Provider identifies which candle backend is active.
type Provider int

const (
	ProviderPrimary Provider = iota
	ProviderSecondary
)

func (p Provider) String() string {
	if p == ProviderSecondary {
		return "secondary"
	}
	return "primary"
}

// Failover owns the candle-path provider switch. It starts on the primary
// client and flips to the secondary permanently the first time the primary
// reports a capability denial. Quotes and streaming are unaffected; only
// candle traffic routes through here, and nothing else may call the two
// clients' GetCandles directly.
type Failover struct {
	mu        sync.RWMutex
	active    Provider
	primary   CandleSource
	secondary CandleSource
}

func NewFailover(primary, secondary CandleSource) *Failover {
	return &Failover{
		active:    ProviderPrimary,
		primary:   primary,
		secondary: secondary,
	}
}

// Active reports the provider candle requests currently route to.
func (f *Failover) Active() Provider {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active
}

// GetCandles fetches a daily close series through whichever provider is
// active. On a capability denial from the primary, the same logical call
// retries via the secondary transparently, and the flip sticks for the
// remainder of the process.
func (f *Failover) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	if f.Active() == ProviderPrimary {
		series, err := f.primary.GetCandles(ctx, ticker, from, to)
		if err == nil {
			return series, nil
		}
		if !IsCapability(err) {
			return nil, err
		}
		f.trip(ticker)
	}
	return f.secondary.GetCandles(ctx, ticker, from, to)
}

// trip flips to the secondary provider. One-directional: once flipped,
// never reverts within the session.
func (f *Failover) trip(ticker string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == ProviderSecondary {
		return
	}
	f.active = ProviderSecondary
	observ.Log("candle_provider_failover", map[string]any{
		"from":    ProviderPrimary.String(),
		"to":      ProviderSecondary.String(),
		"trigger": ticker,
		"reason":  "capability_denied",
	})
	observ.IncCounter("marketdata_failover_total", map[string]string{"to": ProviderSecondary.String()})
}
