package chain

import (
	"context"
	"sync"

	"github.com/banky/go-tomo/constants"
	"github.com/ethereum/go-ethereum/common"
)

// TokenCache remembers TRC21 decimals. The native token is always 18.
type TokenCache struct {
	backend  Backend
	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

func NewTokenCache(backend Backend) *TokenCache {
	return &TokenCache{
		backend:  backend,
		decimals: make(map[common.Address]uint8),
	}
}

// Token returns a TRC21 binding for address
func (c *TokenCache) Token(address common.Address) *Contract {
	return NewContract(address, TRC21ABI, c.backend)
}

// Decimals returns the decimals of token, calling the contract once
func (c *TokenCache) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if token == constants.NATIVE_TOKEN_ADDRESS {
		return constants.NATIVE_DECIMALS, nil
	}

	c.mu.RLock()
	d, ok := c.decimals[token]
	c.mu.RUnlock()
	if ok {
		return d, nil
	}

	d, err := CallOne[uint8](ctx, c.Token(token), "decimals")
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.decimals[token] = d
	c.mu.Unlock()

	return d, nil
}
