package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/banky/go-tomo/errs"
	"github.com/go-resty/resty/v2"
)

// TransportError is a failure to reach the endpoint at all
type TransportError struct {
	Method string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error calling %s: %v", e.Method, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == errs.ErrTransport
}

// RPCError is returned when the endpoint answered with a non-2xx status or a
// JSON-RPC error object. StatusCode is zero for the latter.
type RPCError struct {
	Method     string
	StatusCode int
	Code       int
	Message    string
	Data       string
}

func (e *RPCError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf(
			"rpc error calling %s (status %d): %s",
			e.Method,
			e.StatusCode,
			e.Message,
		)
	}
	return fmt.Sprintf("rpc error calling %s (code %d): %s", e.Method, e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	return target == errs.ErrRPC
}

func handleException(method string, resp *resty.Response) error {
	statusCode := resp.StatusCode()

	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	rpcErr := &RPCError{
		Method:     method,
		StatusCode: statusCode,
		Message:    string(resp.Body()),
	}

	// some nodes wrap the failure in a JSON-RPC envelope as well
	var body Response
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != nil {
		rpcErr.Code = body.Error.Code
		rpcErr.Message = body.Error.Message
		rpcErr.Data = string(body.Error.Data)
	}

	return rpcErr
}
