package marketdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource scripts per-ticker outcomes and records the calls it saw.
type fakeSource struct {
	mu     sync.Mutex
	series map[string][]Candle
	errs   map[string]error
	calls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		series: make(map[string][]Candle),
		errs:   make(map[string]error),
	}
}

func (f *fakeSource) GetCandles(ctx context.Context, ticker string, from, to time.Time) ([]Candle, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ticker)
	f.mu.Unlock()
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	return f.series[ticker], nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestFailoverStartsOnPrimary(t *testing.T) {
	primary := newFakeSource()
	primary.series["AAPL"] = []Candle{{Date: "2026-01-02", Price: 100}}
	secondary := newFakeSource()
	f := NewFailover(primary, secondary)

	series, err := f.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, ProviderPrimary, f.Active())
	assert.Equal(t, 0, secondary.callCount())
}

func TestFailoverCapabilityErrorRetriesSecondarySameCall(t *testing.T) {
	primary := newFakeSource()
	primary.errs["AAPL"] = &CapabilityError{Symbol: "AAPL"}
	secondary := newFakeSource()
	secondary.series["AAPL"] = []Candle{{Date: "2026-01-02", Price: 99}}
	f := NewFailover(primary, secondary)

	series, err := f.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 99.0, series[0].Price)
	assert.Equal(t, ProviderSecondary, f.Active())
}

func TestFailoverIsMonotonicForUnseenTickers(t *testing.T) {
	primary := newFakeSource()
	primary.errs["AAPL"] = &CapabilityError{Symbol: "AAPL"}
	secondary := newFakeSource()
	secondary.series["MSFT"] = []Candle{{Date: "2026-01-02", Price: 400}}
	f := NewFailover(primary, secondary)

	_, err := f.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	primaryCalls := primary.callCount()

	// A ticker the primary never saw still routes straight to secondary.
	series, err := f.GetCandles(context.Background(), "MSFT", time.Now().AddDate(0, -1, 0), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 400.0, series[0].Price)
	assert.Equal(t, primaryCalls, primary.callCount(), "primary must not be retried after the flip")
}

func TestFailoverOtherErrorsDoNotTrip(t *testing.T) {
	primary := newFakeSource()
	primary.errs["AAPL"] = &HTTPError{Status: 429}
	secondary := newFakeSource()
	f := NewFailover(primary, secondary)

	_, err := f.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
	assert.Error(t, err)
	assert.Equal(t, ProviderPrimary, f.Active())
	assert.Equal(t, 0, secondary.callCount())
}

func TestFailoverConcurrentReadsSafe(t *testing.T) {
	primary := newFakeSource()
	primary.errs["AAPL"] = &CapabilityError{Symbol: "AAPL"}
	secondary := newFakeSource()
	f := NewFailover(primary, secondary)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.GetCandles(context.Background(), "AAPL", time.Now().AddDate(0, -1, 0), time.Now())
		}()
	}
	wg.Wait()
	assert.Equal(t, ProviderSecondary, f.Active())
}
