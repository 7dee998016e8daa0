// Package nonce hands out sequence numbers for ledger transactions and
// off-chain orders without letting concurrent callers collide.
//
// Every call seeds from the remote counter and then reserves atomically in a
// Store, so the value returned is max(local, remote) and the local counter
// moves one past it. Failed submissions should Reset the counter so the next
// call reseeds from the remote value.
package nonce

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// Kind selects one of the independent counters an account has
type Kind int

const (
	// Transaction is the ledger account nonce
	Transaction Kind = iota + 1
	// Order is the spot order counter kept by the matching engine
	Order
	// LendingOrder is the lending order counter kept by the matching engine
	LendingOrder
)

func (k Kind) String() string {
	switch k {
	case Transaction:
		return "tx"
	case Order:
		return "order"
	case LendingOrder:
		return "lending"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SourceFunc fetches the remote counter for an account
type SourceFunc func(ctx context.Context, account common.Address) (uint64, error)

// Store keeps the local counters. Implementations must make Reserve atomic.
type Store interface {
	// Reserve returns max(local, remote) and stores that value + 1
	Reserve(ctx context.Context, key string, remote uint64) (uint64, error)
	// Advance raises the local counter to at least next
	Advance(ctx context.Context, key string, next uint64) error
	// Reset forgets the local counter
	Reset(ctx context.Context, key string) error
}

type Coordinator struct {
	store     Store
	sources   map[Kind]SourceFunc
	namespace string
	logger    *zap.Logger
}

type Config struct {
	// Store defaults to a MemoryStore
	Store Store
	// Namespace separates counters of different networks sharing a store,
	// usually the chain id
	Namespace string
	Logger    *zap.Logger

	Transaction  SourceFunc
	Order        SourceFunc
	LendingOrder SourceFunc
}

func New(c Config) *Coordinator {
	store := c.Store
	if store == nil {
		store = NewMemoryStore()
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sources := make(map[Kind]SourceFunc)
	if c.Transaction != nil {
		sources[Transaction] = c.Transaction
	}
	if c.Order != nil {
		sources[Order] = c.Order
	}
	if c.LendingOrder != nil {
		sources[LendingOrder] = c.LendingOrder
	}

	return &Coordinator{
		store:     store,
		sources:   sources,
		namespace: c.Namespace,
		logger:    logger,
	}
}

// Next returns the sequence number to use for the next kind submission by
// account. A present override is returned as is without querying the remote
// counter, and the local counter is moved past it so automatic calls never
// reuse it. Remote failures are returned unchanged.
func (c *Coordinator) Next(
	ctx context.Context,
	kind Kind,
	account common.Address,
	override mo.Option[uint64],
) (uint64, error) {
	key := c.key(kind, account)

	if n, ok := override.Get(); ok {
		if err := c.store.Advance(ctx, key, n+1); err != nil {
			return 0, fmt.Errorf("failed to advance %s nonce: %w", kind, err)
		}
		c.logger.Debug(
			"using nonce override",
			zap.Stringer("kind", kind),
			zap.Stringer("account", account),
			zap.Uint64("nonce", n),
		)
		return n, nil
	}

	source, ok := c.sources[kind]
	if !ok {
		return 0, fmt.Errorf("no remote source for %s nonces", kind)
	}

	remote, err := source(ctx, account)
	if err != nil {
		return 0, err
	}

	n, err := c.store.Reserve(ctx, key, remote)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve %s nonce: %w", kind, err)
	}

	c.logger.Debug(
		"reserved nonce",
		zap.Stringer("kind", kind),
		zap.Stringer("account", account),
		zap.Uint64("remote", remote),
		zap.Uint64("nonce", n),
	)

	return n, nil
}

// Reset drops the local counter so the next call reseeds from the remote one
func (c *Coordinator) Reset(ctx context.Context, kind Kind, account common.Address) error {
	if err := c.store.Reset(ctx, c.key(kind, account)); err != nil {
		return fmt.Errorf("failed to reset %s nonce: %w", kind, err)
	}
	return nil
}

func (c *Coordinator) key(kind Kind, account common.Address) string {
	parts := []string{kind.String(), strings.ToLower(account.Hex())}
	if c.namespace != "" {
		parts = append([]string{c.namespace}, parts...)
	}
	return strings.Join(parts, ":")
}
