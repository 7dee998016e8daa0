// Package chaintest is an in-memory ledger backend for unit tests. Contract
// reads are answered by handlers registered per address and method, and sent
// transactions are recorded with an immediate receipt.
package chaintest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// HandlerFunc answers one contract read with the decoded call arguments
type HandlerFunc func(args []any) ([]any, error)

type contract struct {
	abi      abi.ABI
	handlers map[string]HandlerFunc
}

// Backend implements chain.Backend
type Backend struct {
	mu sync.Mutex

	contracts map[common.Address]*contract
	calls     map[string]int
	senders   map[string][]common.Address
	nonces    map[common.Address]uint64
	balances  map[common.Address]*big.Int
	receipts  map[common.Hash]*types.Receipt
	sent      []*types.Transaction

	chainID *big.Int

	GasPrice *big.Int
	Head     uint64
	// ReceiptStatus is the status of every mined transaction
	ReceiptStatus uint64
	// SendErr fails every SendTransaction when set
	SendErr error
}

func New(chainID int64) *Backend {
	return &Backend{
		contracts:     make(map[common.Address]*contract),
		calls:         make(map[string]int),
		senders:       make(map[string][]common.Address),
		nonces:        make(map[common.Address]uint64),
		balances:      make(map[common.Address]*big.Int),
		receipts:      make(map[common.Hash]*types.Receipt),
		chainID:       big.NewInt(chainID),
		GasPrice:      big.NewInt(250_000_000),
		Head:          1,
		ReceiptStatus: types.ReceiptStatusSuccessful,
	}
}

// Handle registers fn for method on the contract deployed at address
func (b *Backend) Handle(address common.Address, contractABI abi.ABI, method string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.contracts[address]
	if !ok {
		c = &contract{abi: contractABI, handlers: make(map[string]HandlerFunc)}
		b.contracts[address] = c
	}
	c.handlers[method] = fn
}

// Return registers a handler that always answers values
func (b *Backend) Return(address common.Address, contractABI abi.ABI, method string, values ...any) {
	b.Handle(address, contractABI, method, func([]any) ([]any, error) {
		return values, nil
	})
}

// CallCount reports how many times method was read on any contract
func (b *Backend) CallCount(method string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method]
}

// Senders returns the msg.sender of every read of method, in call order
func (b *Backend) Senders(method string) []common.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]common.Address(nil), b.senders[method]...)
}

// SetBalance sets the native balance of account
func (b *Backend) SetBalance(account common.Address, balance *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = balance
}

// SetNonce sets the pending nonce of account
func (b *Backend) SetNonce(account common.Address, n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonces[account] = n
}

// Sent returns the broadcast transactions in order
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// Decode unpacks the method and arguments of a sent transaction
func Decode(tx *types.Transaction, contractABI abi.ABI) (string, []any, error) {
	data := tx.Data()
	if len(data) < 4 {
		return "", nil, fmt.Errorf("no method selector in %d bytes", len(data))
	}

	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}

	return method.Name, args, nil
}

func (b *Backend) CallContract(
	ctx context.Context,
	msg ethereum.CallMsg,
	blockNumber *big.Int,
) ([]byte, error) {
	if msg.To == nil {
		return nil, fmt.Errorf("call without target")
	}
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("no method selector")
	}

	b.mu.Lock()
	c, ok := b.contracts[*msg.To]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: no contract at %s", msg.To.Hex())
	}

	method, err := c.abi.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.calls[method.Name]++
	b.senders[method.Name] = append(b.senders[method.Name], msg.From)
	fn, ok := c.handlers[method.Name]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("execution reverted: %s not handled", method.Name)
	}

	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	out, err := fn(args)
	if err != nil {
		return nil, err
	}

	return method.Outputs.Pack(out...)
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SendErr != nil {
		return b.SendErr
	}

	from, err := types.Sender(types.NewEIP155Signer(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if tx.Nonce() >= b.nonces[from] {
		b.nonces[from] = tx.Nonce() + 1
	}

	b.Head++
	b.sent = append(b.sent, tx)
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      b.ReceiptStatus,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(b.Head),
		GasUsed:     tx.Gas(),
	}

	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) BalanceAt(
	ctx context.Context,
	account common.Address,
	blockNumber *big.Int,
) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if balance, ok := b.balances[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Head, nil
}
