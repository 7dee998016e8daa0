package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/nonce"
	"github.com/banky/go-tomo/signing"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/mo"
	"go.uber.org/zap"
)

// TxRequest describes a ledger transaction before nonce assignment and
// signing. GasPrice falls back to the node's suggestion, Nonce to the
// coordinator.
type TxRequest struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice mo.Option[*big.Int]
	Nonce    mo.Option[uint64]
}

// Transactor signs and broadcasts transactions for one account
type Transactor struct {
	backend        Backend
	signer         *signing.Signer
	nonces         *nonce.Coordinator
	chainID        *big.Int
	logger         *zap.Logger
	pollInterval   time.Duration
	receiptTimeout time.Duration
}

type TransactorConfig struct {
	Backend Backend
	Signer  *signing.Signer
	// Nonces defaults to an in-memory coordinator seeded from the backend
	Nonces  *nonce.Coordinator
	ChainID int64
	Logger  *zap.Logger

	// Defaults to RECEIPT_POLL_INTERVAL
	PollInterval time.Duration
	// Defaults to RECEIPT_TIMEOUT
	ReceiptTimeout time.Duration
}

func NewTransactor(c TransactorConfig) *Transactor {
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nonces := c.Nonces
	if nonces == nil {
		nonces = nonce.New(nonce.Config{
			Logger:      logger,
			Transaction: nonce.LedgerSource(c.Backend),
		})
	}

	pollInterval := c.PollInterval
	if pollInterval == 0 {
		pollInterval = constants.RECEIPT_POLL_INTERVAL
	}

	receiptTimeout := c.ReceiptTimeout
	if receiptTimeout == 0 {
		receiptTimeout = constants.RECEIPT_TIMEOUT
	}

	return &Transactor{
		backend:        c.Backend,
		signer:         c.Signer,
		nonces:         nonces,
		chainID:        big.NewInt(c.ChainID),
		logger:         logger,
		pollInterval:   pollInterval,
		receiptTimeout: receiptTimeout,
	}
}

// From is the sending account
func (t *Transactor) From() common.Address {
	return t.signer.Address()
}

// Send signs and broadcasts req and returns the transaction hash without
// waiting for it to be mined. A failed broadcast resets the account nonce.
func (t *Transactor) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	from := t.signer.Address()

	n, err := t.nonces.Next(ctx, nonce.Transaction, from, req.Nonce)
	if err != nil {
		return common.Hash{}, classify("eth_getTransactionCount", err)
	}

	gasPrice, ok := req.GasPrice.Get()
	if !ok || gasPrice == nil {
		gasPrice, err = t.backend.SuggestGasPrice(ctx)
		if err != nil {
			t.resetNonce(ctx, from)
			return common.Hash{}, classify("eth_gasPrice", err)
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    n,
		GasPrice: gasPrice,
		Gas:      req.GasLimit,
		To:       &to,
		Value:    value,
		Data:     req.Data,
	})

	signed, err := t.signer.SignTx(tx, t.chainID)
	if err != nil {
		t.resetNonce(ctx, from)
		return common.Hash{}, err
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		t.resetNonce(ctx, from)
		return common.Hash{}, classify("eth_sendRawTransaction", err)
	}

	t.logger.Debug(
		"sent transaction",
		zap.Stringer("hash", signed.Hash()),
		zap.Stringer("to", to),
		zap.Uint64("nonce", n),
	)

	return signed.Hash(), nil
}

// SendAndConfirm sends req and waits for its receipt. A receipt with a non
// successful status is returned alongside an errs.ExecutionFailedError.
func (t *Transactor) SendAndConfirm(ctx context.Context, req TxRequest) (*types.Receipt, error) {
	hash, err := t.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	receipt, err := t.WaitForReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, &errs.ExecutionFailedError{
			TxHash: hash,
			Status: receipt.Status,
		}
	}

	return receipt, nil
}

// WaitForReceipt polls until hash is mined or the receipt timeout passes
func (t *Transactor) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := t.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, classify("eth_getTransactionReceipt", err)
		}

		select {
		case <-ctx.Done():
			return nil, classify(
				"eth_getTransactionReceipt",
				fmt.Errorf("timeout waiting for receipt of %s: %w", hash.Hex(), ctx.Err()),
			)
		case <-ticker.C:
		}
	}
}

func (t *Transactor) resetNonce(ctx context.Context, from common.Address) {
	if err := t.nonces.Reset(ctx, nonce.Transaction, from); err != nil {
		t.logger.Warn("failed to reset nonce", zap.Error(err))
	}
}
