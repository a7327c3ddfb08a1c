package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSecondary(t *testing.T, handler http.HandlerFunc) *SecondaryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewSecondaryClient(SecondaryConfig{ProxyURL: srv.URL})
	require.NoError(t, err)
	return client
}

func TestSecondaryGetCandlesParsesChart(t *testing.T) {
	client := newTestSecondary(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "^GSPC", r.URL.Query().Get("ticker"), "secondary takes conventional tickers unmodified")
		w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1704240000,1704326400,1704412800],
			"indicators":{"quote":[{"close":[4700.5,null,4725.25]}]}
		}],"error":null}}`))
	})

	series, err := client.GetCandles(context.Background(), "^GSPC", time.Unix(1704153600, 0), time.Unix(1704499200, 0))
	require.NoError(t, err)
	require.Len(t, series, 2, "null closes are skipped")
	assert.Equal(t, Candle{Date: "2024-01-03", Price: 4700.5}, series[0])
	assert.Equal(t, Candle{Date: "2024-01-05", Price: 4725.25}, series[1])
}

func TestSecondaryUnknownSymbolIsEmptySeries(t *testing.T) {
	client := newTestSecondary(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})

	series, err := client.GetCandles(context.Background(), "ZZZZ", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Empty(t, series)
}

func TestSecondaryMalformedResponseErrors(t *testing.T) {
	client := newTestSecondary(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway error</html>`))
	})

	_, err := client.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	assert.Error(t, err)
}

func TestSecondaryHTTPErrorPropagates(t *testing.T) {
	client := newTestSecondary(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadGateway, httpErr.Status)
}

func TestSecondaryCachesSeries(t *testing.T) {
	calls := 0
	client := newTestSecondary(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"chart":{"result":[{"timestamp":[1704240000],"indicators":{"quote":[{"close":[100.0]}]}}]}}`))
	})

	from, to := time.Unix(1704153600, 0), time.Unix(1704499200, 0)
	_, err := client.GetCandles(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	_, err = client.GetCandles(context.Background(), "AAPL", from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
