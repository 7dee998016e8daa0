package chain

import (
	"math/big"

	"github.com/samber/mo"
)

// TxOption overrides a field of a TxRequest built by a sub-client
type TxOption func(*TxRequest)

// WithNonce sends with nonce n instead of the coordinator's next value
func WithNonce(n uint64) TxOption {
	return func(r *TxRequest) {
		r.Nonce = mo.Some(n)
	}
}

// WithGasPrice sends with a fixed gas price
func WithGasPrice(price *big.Int) TxOption {
	return func(r *TxRequest) {
		r.GasPrice = mo.Some(price)
	}
}

// WithGasLimit replaces the sub-client's default gas limit
func WithGasLimit(limit uint64) TxOption {
	return func(r *TxRequest) {
		r.GasLimit = limit
	}
}

// Apply returns a copy of r with opts applied
func (r TxRequest) Apply(opts ...TxOption) TxRequest {
	for _, opt := range opts {
		opt(&r)
	}
	return r
}
