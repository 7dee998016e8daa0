package chaintest

import (
	"testing"
	"time"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/signing"
	"github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey is the hex key every test transactor signs with
const PrivateKey = "0123456789012345678901234567890123456789012345678901234567890123"

// Signer returns a signer for PrivateKey
func Signer(tb testing.TB) *signing.Signer {
	tb.Helper()

	key, err := crypto.HexToECDSA(PrivateKey)
	if err != nil {
		tb.Fatalf("invalid test key: %v", err)
	}
	signer, err := signing.NewSigner(key)
	if err != nil {
		tb.Fatalf("failed to create signer: %v", err)
	}
	return signer
}

// NewTransactor returns a transactor bound to b that polls receipts fast
func NewTransactor(tb testing.TB, b *Backend) *chain.Transactor {
	tb.Helper()

	return chain.NewTransactor(chain.TransactorConfig{
		Backend:        b,
		Signer:         Signer(tb),
		ChainID:        b.chainID.Int64(),
		PollInterval:   time.Millisecond,
		ReceiptTimeout: time.Second,
	})
}
