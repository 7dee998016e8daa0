// Package chain binds the ledger: contract reads through embedded ABIs, and
// signed transaction submission with nonce coordination and optional
// receipt confirmation.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"

	"github.com/banky/go-tomo/rpc"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

// Backend is the subset of the ledger API the clients use.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to a node over http, ws or ipc
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, &rpc.TransportError{
			Method: "dial",
			Err:    fmt.Errorf("failed to connect to RPC: %w", err),
		}
	}
	return client, nil
}

// classify maps ledger client failures onto the rpc error types so callers
// match them the same way as raw JSON-RPC failures.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}

	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		return &rpc.RPCError{
			Method:     method,
			StatusCode: httpErr.StatusCode,
			Message:    string(httpErr.Body),
		}
	}

	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return &rpc.RPCError{
			Method:  method,
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return &rpc.TransportError{Method: method, Err: err}
	}

	return err
}
