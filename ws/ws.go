// Package ws provides JSON-RPC 2.0 calls and subscriptions over a websocket
// connection to a node.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banky/go-tomo/rpc"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var errClosed = errors.New("websocket connection closed")

// Manager owns one websocket connection. Responses are matched to calls by
// request id and subscription notifications are routed to callbacks.
type Manager struct {
	endpoint      string
	pingInterval  time.Duration
	logger        *zap.Logger
	conn          *websocket.Conn
	nextID        atomic.Uint64
	pending       map[uint64]chan rpc.Response
	subscriptions map[string]func(json.RawMessage)
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup
	mu            sync.RWMutex
	closed        bool
}

type Config struct {
	// Endpoint is the node URL. http and https are rewritten to ws and wss.
	Endpoint string
	// PingInterval defaults to 50 seconds
	PingInterval time.Duration
	Logger       *zap.Logger
}

var _ rpc.Caller = (*Manager)(nil)

// New creates a new WebSocket manager
func New(c Config) *Manager {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pingInterval := c.PingInterval
	if pingInterval == 0 {
		pingInterval = 50 * time.Second
	}

	return &Manager{
		endpoint:      c.Endpoint,
		pingInterval:  pingInterval,
		logger:        logger,
		pending:       make(map[uint64]chan rpc.Response),
		subscriptions: make(map[string]func(json.RawMessage)),
		stopChan:      make(chan struct{}),
	}
}

// Start dials the endpoint and starts the read and ping loops
func (m *Manager) Start(ctx context.Context) error {
	wsURL, err := websocketURL(m.endpoint)
	if err != nil {
		return err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return &rpc.TransportError{
			Method: "dial",
			Err:    fmt.Errorf("failed to connect to websocket: %w", err),
		}
	}
	// order book trees can be large
	conn.SetReadLimit(32 << 20)

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.wg.Add(2)
	go m.readLoop()
	go m.pingLoop()

	m.logger.Debug("websocket connected", zap.String("url", wsURL))
	return nil
}

// Stop closes the WebSocket connection and cleans up
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "closing")
		}

		m.wg.Wait()
		m.failPending()
	})
}

// Call sends a JSON-RPC request and waits for the matching response
func (m *Manager) Call(
	ctx context.Context,
	result any,
	method string,
	params ...any,
) error {
	req := rpc.NewRequest(m.nextID.Add(1), method, params)
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	ch := make(chan rpc.Response, 1)

	m.mu.Lock()
	if m.closed || m.conn == nil {
		m.mu.Unlock()
		return &rpc.TransportError{Method: method, Err: errClosed}
	}
	m.pending[req.ID] = ch
	conn := m.conn
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, req.ID)
		m.mu.Unlock()
	}()

	m.logger.Debug("ws call", zap.String("method", method), zap.Uint64("id", req.ID))

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &rpc.TransportError{Method: method, Err: err}
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return &rpc.TransportError{Method: method, Err: errClosed}
		}
		return resp.Decode(method, result)
	case <-ctx.Done():
		return &rpc.TransportError{Method: method, Err: ctx.Err()}
	}
}

// readLoop handles incoming messages from the WebSocket
func (m *Manager) readLoop() {
	defer m.wg.Done()
	defer m.failPending()

	for {
		select {
		case <-m.stopChan:
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			return
		}

		// a read deadline would close the connection, so block until a
		// message arrives or Stop closes it
		_, data, err := conn.Read(context.Background())
		if err != nil {
			// Normal closure - exit gracefully
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				m.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		m.handleMessage(data)
	}
}

// pingLoop sends periodic pings to keep the connection alive
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := conn.Ping(ctx)
			cancel()

			if err != nil {
				m.logger.Warn("websocket ping error", zap.Error(err))
				return
			}
		}
	}
}

// inbound is either a response to a call or a subscription notification
type inbound struct {
	ID     *uint64          `json:"id"`
	Method string           `json:"method"`
	Params *notification    `json:"params"`
	Result json.RawMessage  `json:"result"`
	Error  *rpc.ErrorObject `json:"error"`
}

type notification struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// handleMessage routes a response to its pending call or a notification to
// its subscription callback.
func (m *Manager) handleMessage(data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		m.logger.Warn("failed to unmarshal ws message", zap.Error(err))
		return
	}

	if msg.Method == "eth_subscription" && msg.Params != nil {
		m.routeNotification(*msg.Params)
		return
	}

	if msg.ID == nil {
		m.logger.Debug("websocket message without id", zap.ByteString("data", data))
		return
	}

	m.mu.RLock()
	ch, ok := m.pending[*msg.ID]
	m.mu.RUnlock()

	if !ok {
		m.logger.Debug("websocket response for unknown id", zap.Uint64("id", *msg.ID))
		return
	}

	ch <- rpc.Response{
		JSONRPC: "2.0",
		ID:      *msg.ID,
		Result:  msg.Result,
		Error:   msg.Error,
	}
}

// failPending wakes every waiting call once the connection is gone
func (m *Manager) failPending() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true

	for id, ch := range m.pending {
		close(ch)
		delete(m.pending, id)
	}
}

func websocketURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	return u.String(), nil
}
