// Package rpc provides JSON-RPC 2.0 calls to a node endpoint over HTTP
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/banky/go-tomo/constants"
	"github.com/go-resty/resty/v2"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Caller defines the contract for JSON-RPC calls. Both the HTTP client and
// the websocket client satisfy it.
type Caller interface {
	Call(ctx context.Context, result any, method string, params ...any) error
}

type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the error member of a JSON-RPC response
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewRequest builds a request envelope. Nil params are sent as an empty
// array since some nodes reject a null params member.
func NewRequest(id uint64, method string, params []any) Request {
	if params == nil {
		params = []any{}
	}
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Decode unpacks a response into result, mapping a JSON-RPC error object to
// an RPCError.
func (r Response) Decode(method string, result any) error {
	if r.Error != nil {
		return &RPCError{
			Method:  method,
			Code:    r.Error.Code,
			Message: r.Error.Message,
			Data:    string(r.Error.Data),
		}
	}

	if result == nil || len(r.Result) == 0 {
		return nil
	}

	if err := json.Unmarshal(r.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}

	return nil
}

type Client struct {
	endpoint string
	timeout  mo.Option[uint]
	http     *resty.Client
	logger   *zap.Logger
	nextID   atomic.Uint64
}

type Config struct {
	// Endpoint is the node JSON-RPC URL
	// If none is provided, the mainnet url will be used
	Endpoint string
	// Timeout is the timeout for network requests in seconds
	// If none is provided, no timeout will be enforced
	Timeout uint
	// Logger receives debug output for every call
	// If none is provided, nothing is logged
	Logger *zap.Logger
}

var _ Caller = (*Client)(nil)

// New creates a new client instance with the
// provided configuration.
func New(c Config) *Client {
	endpoint := c.Endpoint
	var timeout mo.Option[uint]

	if endpoint == "" {
		endpoint = constants.MAINNET_RPC_URL
	}
	if c.Timeout != 0 {
		timeout = mo.Some(c.Timeout)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint: endpoint,
		timeout:  timeout,
		http: resty.
			New().
			SetJSONMarshaler(json.Marshal).
			SetJSONUnmarshaler(json.Unmarshal),
		logger: logger,
	}
}

// Endpoint returns the URL the client posts to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call posts a JSON-RPC request and decodes the result member into result.
// Network failures are returned as *TransportError, non-2xx responses and
// JSON-RPC error objects as *RPCError.
func (c *Client) Call(
	ctx context.Context,
	result any,
	method string,
	params ...any,
) error {
	// Apply timeout to context if specified
	if timeout, ok := c.timeout.Get(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}

	req := NewRequest(c.nextID.Add(1), method, params)
	c.logger.Debug("rpc call", zap.String("method", method), zap.Uint64("id", req.ID))

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.endpoint)

	if err != nil {
		return &TransportError{Method: method, Err: err}
	}

	if err := handleException(method, resp); err != nil {
		return err
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	return out.Decode(method, result)
}
