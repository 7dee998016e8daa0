package nonce

import (
	"context"

	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
)

// PendingNoncer is the ledger subset needed for transaction nonces
type PendingNoncer interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// LedgerSource reads the pending transaction count of an account
func LedgerSource(backend PendingNoncer) SourceFunc {
	return backend.PendingNonceAt
}

// CounterSource reads a matching engine counter such as
// tomox_getOrderCount or tomox_getLendingOrderCount.
func CounterSource(caller rpc.Caller, method string) SourceFunc {
	return func(ctx context.Context, account common.Address) (uint64, error) {
		var count types.Quantity
		if err := caller.Call(ctx, &count, method, account); err != nil {
			return 0, err
		}
		return count.Uint64(), nil
	}
}
