package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SecondaryConfig holds configuration for the fallback historical client.
type SecondaryConfig struct {
	// ProxyURL is the same-origin proxy endpoint that forwards to the
	// upstream chart API and returns its JSON unmodified.
	ProxyURL  string
	TimeoutMs int
	CandleTTL time.Duration

	Now func() time.Time
}

// SecondaryClient fetches daily historical closes from the fallback chart
// provider. It accepts conventional tickers directly, index prefixes
// included, so no normalization happens here. Its cache is a separate
// namespace from the primary client's candle cache.
type SecondaryClient struct {
	proxyURL   string
	httpClient *http.Client
	candles    *ttlCache[[]Candle]
}

func NewSecondaryClient(cfg SecondaryConfig) (*SecondaryClient, error) {
	if cfg.ProxyURL == "" {
		return nil, fmt.Errorf("secondary provider proxy URL is required")
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}
	if cfg.CandleTTL <= 0 {
		cfg.CandleTTL = DefaultCandleTTL
	}
	return &SecondaryClient{
		proxyURL: strings.TrimRight(cfg.ProxyURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		candles: newTTLCache[[]Candle]("candles_secondary", cfg.CandleTTL, cfg.Now),
	}, nil
}

// chartResponse mirrors the upstream chart endpoint's JSON. Close values are
// pointers because the upstream emits nulls for non-trading slots.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetCandles returns the daily close series for [from, to]. A well-formed
// "unknown symbol" answer yields an empty series; malformed or errored
// responses return an error.
func (s *SecondaryClient) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	key := candleKey(ticker, from, to)
	if cached, ok := s.candles.Get(key); ok {
		return cached, nil
	}

	params := url.Values{
		"ticker": {ticker},
		"from":   {fmt.Sprintf("%d", from.Unix())},
		"to":     {fmt.Sprintf("%d", to.Unix())},
	}
	reqURL := s.proxyURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{Status: resp.StatusCode, URL: s.proxyURL}
	}

	var raw chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding chart response for %s: %w", ticker, err)
	}

	series := []Candle{}
	switch {
	case raw.Chart.Error != nil:
		// Unknown symbol is the provider's only well-formed error shape;
		// treat it as "no data", not a failure.
	case len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0:
		// Empty result set, same terminal outcome.
	default:
		result := raw.Chart.Result[0]
		closes := result.Indicators.Quote[0].Close
		for i, ts := range result.Timestamp {
			if i >= len(closes) || closes[i] == nil {
				continue
			}
			series = append(series, Candle{
				Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
				Price: *closes[i],
			})
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.candles.Set(key, series)
	return series, nil
}

// ClearCaches drops the secondary candle cache.
func (s *SecondaryClient) ClearCaches() {
	s.candles.Clear()
}
