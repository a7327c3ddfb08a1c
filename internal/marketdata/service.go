package marketdata

import (
	"context"
	"time"

	"github.com/quantfolio/marketdata/internal/config"
	"github.com/quantfolio/marketdata/internal/observ"
)

// Service is the facade UI code talks to: quotes, candles with permanent
// failover, staggered batches, symbol search, live subscriptions, and a
// cache reset for runtime provider changes.
type Service struct {
	norm      *Normalizer
	primary   *PrimaryClient
	secondary *SecondaryClient
	failover  *Failover
	stream    *StreamManager

	primaryStagger   time.Duration
	secondaryStagger time.Duration
}

func NewService(cfg config.Root) (*Service, error) {
	cfg.ApplyDefaults()
	norm := NewNormalizer()

	primary, err := NewPrimaryClient(PrimaryConfig{
		APIKey:    cfg.Primary.APIKey,
		BaseURL:   cfg.Primary.BaseURL,
		TimeoutMs: cfg.Primary.TimeoutMs,
		QuoteTTL:  time.Duration(cfg.Primary.QuoteTTLSeconds) * time.Second,
		CandleTTL: time.Duration(cfg.Primary.CandleTTLSeconds) * time.Second,
		SearchTTL: time.Duration(cfg.Primary.SearchTTLSeconds) * time.Second,
	}, norm)
	if err != nil {
		return nil, err
	}

	secondary, err := NewSecondaryClient(SecondaryConfig{
		ProxyURL:  cfg.Secondary.ProxyURL,
		TimeoutMs: cfg.Secondary.TimeoutMs,
		CandleTTL: time.Duration(cfg.Secondary.CandleTTLSeconds) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	dialer := NewStreamDialer(cfg.Primary.WSURL, cfg.Primary.APIKey)
	stream := NewStreamManager(dialer, norm, time.Duration(cfg.Stream.ReconnectDelayMs)*time.Millisecond)

	return &Service{
		norm:             norm,
		primary:          primary,
		secondary:        secondary,
		failover:         NewFailover(primary, secondary),
		stream:           stream,
		primaryStagger:   time.Duration(cfg.Primary.StaggerMs) * time.Millisecond,
		secondaryStagger: time.Duration(cfg.Secondary.StaggerMs) * time.Millisecond,
	}, nil
}

// GetQuote returns the current quote for a ticker.
func (s *Service) GetQuote(ctx context.Context, ticker string) (Quote, error) {
	return s.primary.GetQuote(ctx, ticker)
}

// GetQuotes fetches several quotes, skipping failures.
func (s *Service) GetQuotes(ctx context.Context, tickers []string) map[string]Quote {
	return s.primary.GetQuotes(ctx, tickers)
}

// GetCandles returns daily closes through the failover-protected path.
func (s *Service) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	return s.failover.GetCandles(ctx, ticker, from, to)
}

// GetCandlesBatch fetches series for many tickers with the inter-request
// stagger that matches the active provider's rate tolerance. Results come
// back in input order; failed tickers hold empty series.
func (s *Service) GetCandlesBatch(ctx context.Context, tickers []string, from, to time.Time) [][]Candle {
	delay := s.primaryStagger
	if s.failover.Active() == ProviderSecondary {
		delay = s.secondaryStagger
	}
	return FetchAllStaggered(ctx, tickers, delay, func(ctx context.Context, ticker string) ([]Candle, error) {
		return s.failover.GetCandles(ctx, ticker, from, to)
	})
}

// SearchSymbols runs advisory symbol search; never errors.
func (s *Service) SearchSymbols(ctx context.Context, query string) []SearchResult {
	return s.primary.SearchSymbols(ctx, query)
}

// Subscribe registers for live trades on the tickers; the returned function
// removes the callback again.
func (s *Service) Subscribe(tickers []string, fn TradeFunc) func() {
	return s.stream.Subscribe(tickers, fn)
}

// ActiveCandleProvider reports which backend candle requests route to.
func (s *Service) ActiveCandleProvider() Provider {
	return s.failover.Active()
}

// ResetCaches empties every cache instance synchronously; for callers that
// mutate provider configuration at runtime.
func (s *Service) ResetCaches() {
	s.primary.ClearCaches()
	s.secondary.ClearCaches()
	observ.Log("marketdata_caches_reset", nil)
}

// Close shuts down the streaming connection.
func (s *Service) Close() {
	s.stream.Close()
}
