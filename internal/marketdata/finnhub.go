package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/quantfolio/marketdata/internal/observ"
)

// PrimaryConfig holds configuration for the primary (Finnhub) client.
type PrimaryConfig struct {
	APIKey    string
	BaseURL   string
	TimeoutMs int
	QuoteTTL  time.Duration
	CandleTTL time.Duration
	SearchTTL time.Duration

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

// PrimaryClient talks to the primary REST provider for quotes, daily
// candles and symbol search. Every request goes through the normalizer
// first; results are cached under the caller's original ticker so repeat
// lookups hit cache even though the wire call used the mapped symbol.
type PrimaryClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	norm       *Normalizer

	quotes  *ttlCache[Quote]
	candles *ttlCache[[]Candle]
	search  *ttlCache[[]SearchResult]
}

func NewPrimaryClient(cfg PrimaryConfig, norm *Normalizer) (*PrimaryClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("primary provider API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://finnhub.io/api/v1"
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 10000
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if cfg.CandleTTL <= 0 {
		cfg.CandleTTL = DefaultCandleTTL
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = DefaultSearchTTL
	}
	if norm == nil {
		norm = NewNormalizer()
	}
	return &PrimaryClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		},
		norm:    norm,
		quotes:  newTTLCache[Quote]("quotes", cfg.QuoteTTL, cfg.Now),
		candles: newTTLCache[[]Candle]("candles_primary", cfg.CandleTTL, cfg.Now),
		search:  newTTLCache[[]SearchResult]("search", cfg.SearchTTL, cfg.Now),
	}, nil
}

// finnhubQuote is the raw quote shape: current, change, percent change,
// high, low, open, previous close.
type finnhubQuote struct {
	C  float64 `json:"c"`
	D  float64 `json:"d"`
	DP float64 `json:"dp"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	O  float64 `json:"o"`
	PC float64 `json:"pc"`
}

type finnhubCandles struct {
	S string    `json:"s"` // "ok" | "no_data"
	T []int64   `json:"t"`
	C []float64 `json:"c"`
}

type finnhubSearch struct {
	Count  int `json:"count"`
	Result []struct {
		Symbol        string `json:"symbol"`
		DisplaySymbol string `json:"displaySymbol"`
		Description   string `json:"description"`
		Type          string `json:"type"`
	} `json:"result"`
}

// GetQuote returns the current quote for a ticker, from cache when fresh.
// A well-formed response with a zero current price means the provider does
// not know the symbol and surfaces as NoDataError.
func (p *PrimaryClient) GetQuote(ctx context.Context, ticker string) (Quote, error) {
	if cached, ok := p.quotes.Get(ticker); ok {
		return cached, nil
	}

	symbol := p.norm.Normalize(ticker)
	var raw finnhubQuote
	if err := p.getJSON(ctx, "/quote", url.Values{"symbol": {symbol}}, &raw); err != nil {
		return Quote{}, err
	}
	if raw.C == 0 {
		return Quote{}, &NoDataError{Symbol: symbol}
	}

	q := Quote{
		Price:         raw.C,
		Change:        raw.D,
		ChangePercent: raw.DP,
		PrevClose:     raw.PC,
		High:          raw.H,
		Low:           raw.L,
		Open:          raw.O,
	}
	if ctx.Err() != nil {
		return Quote{}, ctx.Err()
	}
	p.quotes.Set(ticker, q)
	return q, nil
}

// GetQuotes fetches quotes for several tickers, skipping the ones that
// fail; a missing key in the result means the fetch did not resolve.
func (p *PrimaryClient) GetQuotes(ctx context.Context, tickers []string) map[string]Quote {
	results := make(map[string]Quote, len(tickers))
	for _, t := range tickers {
		q, err := p.GetQuote(ctx, t)
		if err != nil {
			observ.IncCounter("marketdata_quote_error_total", map[string]string{"symbol": t})
			continue
		}
		results[t] = q
	}
	return results
}

// GetCandles returns daily closes for [from, to]. "no_data" is a valid
// terminal outcome and returns an empty series; HTTP 403 is a capability
// failure reported as CapabilityError so the failover controller can react.
func (p *PrimaryClient) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	key := candleKey(ticker, from, to)
	if cached, ok := p.candles.Get(key); ok {
		return cached, nil
	}

	symbol := p.norm.Normalize(ticker)
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {"D"},
		"from":       {fmt.Sprintf("%d", from.Unix())},
		"to":         {fmt.Sprintf("%d", to.Unix())},
	}
	var raw finnhubCandles
	if err := p.getJSON(ctx, "/stock/candle", params, &raw); err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusForbidden {
			return nil, &CapabilityError{Symbol: symbol}
		}
		return nil, err
	}

	series := []Candle{}
	if raw.S == "ok" {
		series = make([]Candle, 0, len(raw.T))
		for i, ts := range raw.T {
			if i >= len(raw.C) {
				break
			}
			series = append(series, Candle{
				Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
				Price: raw.C[i],
			})
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	p.candles.Set(key, series)
	return series, nil
}

// usSymbolPattern keeps search results to plain single-exchange listings;
// foreign or multi-class tickers (dots, dashes, digits) are dropped.
var usSymbolPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// SearchSymbols queries the provider's symbol search, filtered to equities
// and ETFs, capped at 10 results. Search is advisory: any failure degrades
// to an empty list rather than an error.
func (p *PrimaryClient) SearchSymbols(ctx context.Context, query string) []SearchResult {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	if cached, ok := p.search.Get(q); ok {
		return cached
	}

	var raw finnhubSearch
	if err := p.getJSON(ctx, "/search", url.Values{"q": {q}}, &raw); err != nil {
		observ.IncCounter("marketdata_search_error_total", nil)
		return nil
	}

	results := make([]SearchResult, 0, 10)
	for _, r := range raw.Result {
		kind, ok := searchResultType(r.Type)
		if !ok {
			continue
		}
		if !usSymbolPattern.MatchString(r.Symbol) {
			continue
		}
		results = append(results, SearchResult{
			Ticker:   r.Symbol,
			Name:     r.Description,
			Type:     kind,
			Exchange: "US",
		})
		if len(results) == 10 {
			break
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	p.search.Set(q, results)
	return results
}

func searchResultType(providerType string) (string, bool) {
	switch providerType {
	case "Common Stock":
		return "Stock", true
	case "ETP", "ETF":
		return "ETF", true
	default:
		return "", false
	}
}

// ClearCaches drops every cache this client owns.
func (p *PrimaryClient) ClearCaches() {
	p.quotes.Clear()
	p.candles.Clear()
	p.search.Clear()
}

func (p *PrimaryClient) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("token", p.apiKey)
	reqURL := p.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	observ.RecordDuration("marketdata_primary_request", time.Since(start), map[string]string{"path": path})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &HTTPError{Status: resp.StatusCode, URL: p.baseURL + path}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func candleKey(ticker string, from, to time.Time) string {
	return fmt.Sprintf("%s|%d|%d", ticker, from.Unix(), to.Unix())
}
