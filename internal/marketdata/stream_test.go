package marketdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory wsConn; tests feed inbound frames through a
// channel and inspect the control frames written to it.
type fakeConn struct {
	mu       sync.Mutex
	written  []control
	inbound  chan []byte
	dropOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16)}
}

func (c *fakeConn) WriteJSON(v any) error {
	msg, ok := v.(control)
	if !ok {
		return errors.New("unexpected frame type")
	}
	c.mu.Lock()
	c.written = append(c.written, msg)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbound
	if !ok {
		return 0, nil, errors.New("connection dropped")
	}
	return 1, data, nil
}

func (c *fakeConn) Close() error {
	c.drop()
	return nil
}

// drop simulates the server side killing the connection.
func (c *fakeConn) drop() {
	c.dropOnce.Do(func() { close(c.inbound) })
}

func (c *fakeConn) subscribedSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, msg := range c.written {
		if msg.Type == "subscribe" {
			out = append(out, msg.Symbol)
		}
	}
	return out
}

// fakeDialer hands out a fresh fakeConn per dial attempt.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) dial(ctx context.Context) (wsConn, error) {
	conn := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

type tradeRecorder struct {
	mu     sync.Mutex
	trades []string
}

func (r *tradeRecorder) record(ticker string, price float64) {
	r.mu.Lock()
	r.trades = append(r.trades, ticker)
	r.mu.Unlock()
}

func (r *tradeRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.trades...)
}

func TestStreamSubscribeSendsMappedSymbols(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 10*time.Millisecond)
	defer m.Close()

	m.Subscribe([]string{"SPX", "QQQ"}, func(string, float64) {})

	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 2
	}, "subscribe frames")
	assert.ElementsMatch(t, []string{"SPY", "QQQ"}, d.conn(0).subscribedSymbols())
}

func TestStreamFanOutTranslatesProviderSymbol(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 10*time.Millisecond)
	defer m.Close()

	rec := &tradeRecorder{}
	m.Subscribe([]string{"SPX", "QQQ"}, rec.record)

	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 2
	}, "connection open")

	d.conn(0).inbound <- []byte(`{"type":"trade","data":[{"s":"SPY","p":512.5,"t":1712000000000,"v":100}]}`)

	waitFor(t, func() bool { return len(rec.seen()) > 0 }, "trade callback")
	assert.Equal(t, []string{"SPX"}, rec.seen(), "SPY trade lands on SPX only; QQQ untouched")
}

func TestStreamRedundantSubscribeDoesNotDuplicateWireMessage(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 10*time.Millisecond)
	defer m.Close()

	m.Subscribe([]string{"SPX"}, func(string, float64) {})
	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 1
	}, "first subscribe")

	m.Subscribe([]string{"^GSPC"}, func(string, float64) {})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"SPY"}, d.conn(0).subscribedSymbols(), "SPY already subscribed on the wire")
}

func TestStreamReconnectReplaysSubscriptions(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 5*time.Millisecond)
	defer m.Close()

	rec := &tradeRecorder{}
	m.Subscribe([]string{"SPX"}, rec.record)
	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 1
	}, "initial subscribe")

	d.conn(0).drop()

	waitFor(t, func() bool {
		c := d.conn(1)
		return c != nil && len(c.subscribedSymbols()) == 1
	}, "replay after reconnect")
	assert.Equal(t, []string{"SPY"}, d.conn(1).subscribedSymbols())

	// The replayed subscription still delivers trades.
	d.conn(1).inbound <- []byte(`{"type":"trade","data":[{"s":"SPY","p":500.0}]}`)
	waitFor(t, func() bool { return len(rec.seen()) > 0 }, "trade after reconnect")
}

func TestStreamMalformedFrameIsSwallowed(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 10*time.Millisecond)
	defer m.Close()

	rec := &tradeRecorder{}
	m.Subscribe([]string{"AAPL"}, rec.record)
	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 1
	}, "connection open")

	d.conn(0).inbound <- []byte(`{not json`)
	d.conn(0).inbound <- []byte(`{"type":"ping"}`)
	d.conn(0).inbound <- []byte(`{"type":"trade","data":[{"s":"AAPL","p":190.0}]}`)

	waitFor(t, func() bool { return len(rec.seen()) > 0 }, "listener survives bad frames")
	assert.Equal(t, []string{"AAPL"}, rec.seen())
}

func TestStreamUnsubscribeRemovesCallbackOnly(t *testing.T) {
	d := &fakeDialer{}
	m := NewStreamManager(d.dial, nil, 10*time.Millisecond)
	defer m.Close()

	rec := &tradeRecorder{}
	unsub := m.Subscribe([]string{"AAPL"}, rec.record)
	waitFor(t, func() bool {
		c := d.conn(0)
		return c != nil && len(c.subscribedSymbols()) == 1
	}, "connection open")

	unsub()
	d.conn(0).inbound <- []byte(`{"type":"trade","data":[{"s":"AAPL","p":190.0}]}`)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, rec.seen(), "removed callback gets nothing")

	// No wire-level unsubscribe: the symbol stays in the subscription set.
	c := d.conn(0)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, msg := range c.written {
		require.NotEqual(t, "unsubscribe", msg.Type)
	}
}
