package marketdata

import (
	"errors"
	"fmt"
)

// CapabilityError means the primary provider rejected a request its
// credential tier does not cover (HTTP 403 on the candle endpoint). It is the
// one-and-only trigger for permanent candle failover.
type CapabilityError struct {
	Symbol string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider capability denied for %s (403)", e.Symbol)
}

// NoDataError means the provider answered cleanly but had nothing for the
// symbol: a well-formed empty response, terminal and non-retryable.
type NoDataError struct {
	Symbol string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no data available for %s", e.Symbol)
}

// HTTPError is any other non-2xx provider response.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Status, e.URL)
}

// ErrNoHistory signals that neither provider could produce a historical
// series; the analytics layer degrades to a quote-based snapshot on it.
var ErrNoHistory = errors.New("no historical data from any provider")

func IsCapability(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce)
}

func IsNoData(err error) bool {
	var nde *NoDataError
	return errors.As(err, &nde)
}
