package chain

import (
	"context"
	"fmt"

	"github.com/banky/go-tomo/errs"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract is a read binding for one deployed contract
type Contract struct {
	address common.Address
	abi     abi.ABI
	backend Backend
	// sender is the msg.sender of reads, zero unless bound
	sender common.Address
}

func NewContract(address common.Address, contractABI abi.ABI, backend Backend) *Contract {
	return &Contract{
		address: address,
		abi:     contractABI,
		backend: backend,
	}
}

func (c *Contract) Address() common.Address {
	return c.address
}

// WithSender returns a copy of c whose reads run as sender. Methods that
// look up state by msg.sender need it.
func (c *Contract) WithSender(sender common.Address) *Contract {
	bound := *c
	bound.sender = sender
	return &bound
}

func (c *Contract) Sender() common.Address {
	return c.sender
}

// Pack ABI-encodes a method call
func (c *Contract) Pack(method string, args ...any) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errs.ContractCall(method, fmt.Errorf("failed to pack: %w", err))
	}
	return data, nil
}

// Call runs a read-only method at the latest block and returns its decoded
// outputs in declaration order.
func (c *Contract) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	to := c.address
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{
		From: c.sender,
		To:   &to,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errs.ContractCall(method, classify("eth_call", err))
	}

	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, errs.ContractCall(method, fmt.Errorf("failed to unpack: %w", err))
	}

	return out, nil
}

// CallOne runs a single-output method and asserts the result to T
func CallOne[T any](ctx context.Context, c *Contract, method string, args ...any) (T, error) {
	var zero T

	out, err := c.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}

	return Output[T](method, out, 0)
}

// Output asserts the i-th decoded output of method to T
func Output[T any](method string, out []any, i int) (T, error) {
	var zero T

	if i >= len(out) {
		return zero, errs.ContractCall(
			method,
			fmt.Errorf("missing output %d of %d", i, len(out)),
		)
	}

	v, ok := out[i].(T)
	if !ok {
		return zero, errs.ContractCall(
			method,
			fmt.Errorf("unexpected output %d type %T, want %T", i, out[i], zero),
		)
	}

	return v, nil
}
