package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantfolio/marketdata/internal/observ"
)

// DefaultReconnectDelay is how long the manager waits after a dropped
// connection before dialing again.
const DefaultReconnectDelay = 3 * time.Second

// TradeFunc receives live price updates keyed by the caller's original
// ticker.
type TradeFunc func(ticker string, price float64)

// wsConn is the slice of *websocket.Conn the manager needs; tests inject
// fakes through it.
type wsConn interface {
	WriteJSON(v any) error
	ReadMessage() (int, []byte, error)
	Close() error
}

// Dialer opens a new streaming connection.
type Dialer func(ctx context.Context) (wsConn, error)

// NewStreamDialer dials the provider's trade feed, authenticating with a
// query-string token.
func NewStreamDialer(wsURL, token string) Dialer {
	return func(ctx context.Context) (wsConn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, fmt.Sprintf("%s?token=%s", wsURL, token), nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

type connState int

const (
	stateClosed connState = iota
	stateConnecting
	stateOpen
)

// control is the wire-level subscribe/unsubscribe frame.
type control struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// tradeMessage is the inbound trade frame: a batch of symbol/price pairs.
type tradeMessage struct {
	Type string `json:"type"`
	Data []struct {
		Symbol string  `json:"s"`
		Price  float64 `json:"p"`
		Ts     int64   `json:"t"`
		Volume float64 `json:"v"`
	} `json:"data"`
}

// listener is one Subscribe registration: a callback plus the reverse map
// from provider symbol to the original tickers that produced it.
type listener struct {
	fn      TradeFunc
	symbols map[string][]string
}

// StreamManager owns the single shared streaming connection, the symbol
// subscription set and the listener registry. The connection lifecycle is an
// explicit Closed -> Connecting -> Open machine with auto-reconnect while
// any symbol is subscribed. Symbols are never unsubscribed on the wire once
// added; Unsubscribe only removes the caller's callback. That leaks
// subscriptions for the session, which is fine for a per-tab cache but
// would need refcounting in a long-lived server process.
type StreamManager struct {
	mu             sync.Mutex
	dial           Dialer
	norm           *Normalizer
	reconnectDelay time.Duration

	state     connState
	conn      wsConn
	subs      map[string]struct{}
	listeners map[int]*listener
	nextID    int
	shutdown  bool
}

func NewStreamManager(dial Dialer, norm *Normalizer, reconnectDelay time.Duration) *StreamManager {
	if norm == nil {
		norm = NewNormalizer()
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &StreamManager{
		dial:           dial,
		norm:           norm,
		reconnectDelay: reconnectDelay,
		state:          stateClosed,
		subs:           make(map[string]struct{}),
		listeners:      make(map[int]*listener),
	}
}

// Subscribe registers a callback for live trades on the given tickers and
// returns a function that removes it again. Redundant subscriptions for an
// already-subscribed symbol do not duplicate the wire message.
func (m *StreamManager) Subscribe(tickers []string, fn TradeFunc) func() {
	l := &listener{fn: fn, symbols: m.norm.ReverseMap(tickers)}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	var pending []string
	for sym := range l.symbols {
		if _, ok := m.subs[sym]; ok {
			continue
		}
		m.subs[sym] = struct{}{}
		pending = append(pending, sym)
	}
	conn := m.conn
	open := m.state == stateOpen
	m.mu.Unlock()

	m.ensureConnection()

	if open && conn != nil {
		for _, sym := range pending {
			m.send(conn, control{Type: "subscribe", Symbol: sym})
		}
	}

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// ensureConnection is an idempotent no-op when a connection is already open
// or being established.
func (m *StreamManager) ensureConnection() {
	m.mu.Lock()
	if m.shutdown || m.state != stateClosed {
		m.mu.Unlock()
		return
	}
	m.state = stateConnecting
	m.mu.Unlock()
	go m.connect()
}

func (m *StreamManager) connect() {
	conn, err := m.dial(context.Background())

	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.state = stateClosed
		retry := len(m.subs) > 0
		m.mu.Unlock()
		observ.IncCounter("marketdata_stream_dial_error_total", nil)
		if retry {
			m.scheduleReconnect()
		}
		return
	}
	m.conn = conn
	m.state = stateOpen
	replay := make([]string, 0, len(m.subs))
	for sym := range m.subs {
		replay = append(replay, sym)
	}
	m.mu.Unlock()

	// Replay the whole subscription set so a reconnect restores every
	// live symbol without callers doing anything.
	for _, sym := range replay {
		m.send(conn, control{Type: "subscribe", Symbol: sym})
	}
	go m.readLoop(conn)
}

func (m *StreamManager) readLoop(conn wsConn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDisconnect(conn)
			return
		}
		m.dispatch(data)
	}
}

// dispatch parses one inbound frame and fans trades out to listeners. A
// malformed frame is counted and dropped; it must never kill the loop.
func (m *StreamManager) dispatch(data []byte) {
	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		observ.IncCounter("marketdata_stream_malformed_total", nil)
		return
	}
	if msg.Type != "trade" {
		return
	}

	m.mu.Lock()
	active := make([]*listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		active = append(active, l)
	}
	m.mu.Unlock()

	for _, trade := range msg.Data {
		for _, l := range active {
			if originals, ok := l.symbols[trade.Symbol]; ok {
				for _, orig := range originals {
					l.fn(orig, trade.Price)
				}
			} else {
				// Unknown symbol for this listener: pass it through raw so
				// direct (unmapped) tickers still get their updates.
				l.fn(trade.Symbol, trade.Price)
			}
		}
	}
}

func (m *StreamManager) handleDisconnect(conn wsConn) {
	m.mu.Lock()
	if m.conn != conn {
		// A newer connection already replaced this one.
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = stateClosed
	retry := len(m.subs) > 0 && !m.shutdown
	m.mu.Unlock()

	conn.Close()
	observ.IncCounter("marketdata_stream_disconnect_total", nil)
	if retry {
		m.scheduleReconnect()
	}
}

func (m *StreamManager) scheduleReconnect() {
	observ.Log("stream_reconnect_scheduled", map[string]any{
		"delay_ms": m.reconnectDelay.Milliseconds(),
	})
	time.AfterFunc(m.reconnectDelay, m.ensureConnection)
}

func (m *StreamManager) send(conn wsConn, msg control) {
	if err := conn.WriteJSON(msg); err != nil {
		observ.IncCounter("marketdata_stream_write_error_total", nil)
	}
}

// Close shuts the manager down for good; no reconnects after this.
func (m *StreamManager) Close() {
	m.mu.Lock()
	m.shutdown = true
	conn := m.conn
	m.conn = nil
	m.state = stateClosed
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
