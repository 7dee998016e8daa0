// Package validator stakes, unstakes and proposes masternode candidates on
// the validator contract and moves native TOMO between accounts.
package validator

import (
	"context"
	"fmt"
	"math/big"
	"slices"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/internal/utils"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Validator struct {
	contract      *chain.Contract
	backend       chain.Backend
	tx            *chain.Transactor
	tokens        *chain.TokenCache
	logger        *zap.Logger
	maxConcurrent int
}

type Config struct {
	Backend    chain.Backend
	Transactor *chain.Transactor
	Network    types.Network
	// Tokens resolves TRC21 decimals for TokenBalance. Defaults to a new
	// cache over Backend.
	Tokens *chain.TokenCache
	Logger *zap.Logger
	// MaxConcurrentQueries bounds WithdrawBlockNumbers
	MaxConcurrentQueries int
}

func New(cfg Config) (*Validator, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Transactor == nil {
		return nil, fmt.Errorf("transactor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tokens := cfg.Tokens
	if tokens == nil {
		tokens = chain.NewTokenCache(cfg.Backend)
	}

	maxConcurrent := cfg.MaxConcurrentQueries
	if maxConcurrent <= 0 {
		maxConcurrent = constants.MAX_CONCURRENT_QUERIES
	}

	// getWithdrawBlockNumbers and getWithdrawCap read by msg.sender
	contract := chain.NewContract(cfg.Network.ValidatorAddress, chain.ValidatorABI, cfg.Backend).
		WithSender(cfg.Transactor.From())

	return &Validator{
		contract:      contract,
		backend:       cfg.Backend,
		tx:            cfg.Transactor,
		tokens:        tokens,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}, nil
}

/*//////////////////////////////////////////////////////////////
                            STAKING
//////////////////////////////////////////////////////////////*/

// Stake votes amount TOMO for the candidate node
func (v *Validator) Stake(
	ctx context.Context,
	node common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	value, err := toWei(amount)
	if err != nil {
		return common.Hash{}, err
	}
	return v.send(ctx, value, opts, "vote", node)
}

// Unstake withdraws amount TOMO of votes from node. The funds become
// withdrawable after the lock period, see WithdrawBlockNumbers.
func (v *Validator) Unstake(
	ctx context.Context,
	node common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	value, err := toWei(amount)
	if err != nil {
		return common.Hash{}, err
	}
	return v.send(ctx, nil, opts, "unvote", node, value)
}

// Propose registers node as a masternode candidate with an initial stake of
// at least MIN_CANDIDATE_STAKE TOMO
func (v *Validator) Propose(
	ctx context.Context,
	node common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if amount.LessThan(decimal.NewFromInt(constants.MIN_CANDIDATE_STAKE)) {
		return common.Hash{}, errs.Invalid(
			"amount",
			"the required amount is at least %d TOMO, got %s",
			constants.MIN_CANDIDATE_STAKE,
			amount,
		)
	}

	value, err := toWei(amount)
	if err != nil {
		return common.Hash{}, err
	}
	return v.send(ctx, value, opts, "propose", node)
}

// Resign withdraws the candidacy of node
func (v *Validator) Resign(ctx context.Context, node common.Address, opts ...chain.TxOption) (common.Hash, error) {
	return v.send(ctx, nil, opts, "resign", node)
}

/*//////////////////////////////////////////////////////////////
                          WITHDRAWALS
//////////////////////////////////////////////////////////////*/

// Withdraw claims the stake unlocked at blockNumber. index is the entry
// index returned by WithdrawBlockNumbers.
func (v *Validator) Withdraw(
	ctx context.Context,
	blockNumber *big.Int,
	index int,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if blockNumber == nil || blockNumber.Sign() <= 0 {
		return common.Hash{}, errs.Invalid("blockNumber", "must be positive")
	}
	if index < 0 {
		return common.Hash{}, errs.Invalid("index", "must not be negative, got %d", index)
	}
	return v.send(ctx, nil, opts, "withdraw", blockNumber, big.NewInt(int64(index)))
}

// WithdrawBlockNumbers lists the pending withdrawals of the account. Block
// numbers are de-duplicated, entries with no capacity are dropped and the
// result is ordered by index.
func (v *Validator) WithdrawBlockNumbers(ctx context.Context) ([]types.WithdrawalEntry, error) {
	blocks, err := v.withdrawBlocks(ctx)
	if err != nil {
		return nil, err
	}

	caps := make([]*big.Int, len(blocks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.maxConcurrent)

	for i, block := range blocks {
		g.Go(func() error {
			c, err := chain.CallOne[*big.Int](gctx, v.contract, "getWithdrawCap", block)
			if err != nil {
				return err
			}
			caps[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to get withdraw caps: %w", err)
	}

	entries := make([]types.WithdrawalEntry, 0, len(blocks))
	for i, block := range blocks {
		if caps[i] == nil || caps[i].Sign() == 0 {
			continue
		}
		entries = append(entries, types.WithdrawalEntry{
			Index:       i,
			BlockNumber: block,
			Capacity:    utils.FromBaseUnits(caps[i], constants.NATIVE_DECIMALS),
		})
	}

	return entries, nil
}

// WithdrawAll sends one withdraw per pending block below the current head.
// It stops at the first failure and returns the hashes sent so far.
func (v *Validator) WithdrawAll(ctx context.Context) ([]common.Hash, error) {
	head, err := v.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}

	blocks, err := v.withdrawBlocks(ctx)
	if err != nil {
		return nil, err
	}

	current := new(big.Int).SetUint64(head)
	hashes := make([]common.Hash, 0, len(blocks))

	for i, block := range blocks {
		if block.Cmp(current) >= 0 {
			continue
		}

		hash, err := v.Withdraw(ctx, block, i)
		if err != nil {
			return hashes, err
		}
		hashes = append(hashes, hash)
	}

	return hashes, nil
}

// withdrawBlocks returns the account's withdrawal blocks with duplicates
// removed, keeping first occurrence order
func (v *Validator) withdrawBlocks(ctx context.Context) ([]*big.Int, error) {
	all, err := chain.CallOne[[]*big.Int](ctx, v.contract, "getWithdrawBlockNumbers")
	if err != nil {
		return nil, err
	}

	blocks := make([]*big.Int, 0, len(all))
	for _, block := range all {
		if slices.ContainsFunc(blocks, func(b *big.Int) bool { return b.Cmp(block) == 0 }) {
			continue
		}
		blocks = append(blocks, block)
	}

	return blocks, nil
}

/*//////////////////////////////////////////////////////////////
                           TRANSFERS
//////////////////////////////////////////////////////////////*/

// Send transfers amount TOMO to the recipient at the fixed transfer gas
// price. WithNonce overrides the coordinator.
func (v *Validator) Send(
	ctx context.Context,
	to common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if to == constants.ZERO_ADDRESS {
		return common.Hash{}, errs.Invalid("to", "address is required")
	}

	value, err := toWei(amount)
	if err != nil {
		return common.Hash{}, err
	}

	req := chain.TxRequest{
		To:       to,
		Value:    value,
		GasLimit: constants.TRANSFER_GAS_LIMIT,
		GasPrice: mo.Some(constants.TRANSFER_GAS_PRICE),
	}.Apply(opts...)

	hash, err := v.tx.Send(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send TOMO: %w", err)
	}

	v.logger.Debug("transfer sent", zap.Stringer("to", to), zap.Stringer("hash", hash))

	return hash, nil
}

// Balance returns the native balance of account in TOMO
func (v *Validator) Balance(ctx context.Context, account common.Address) (decimal.Decimal, error) {
	wei, err := v.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}
	return utils.FromBaseUnits(wei, constants.NATIVE_DECIMALS), nil
}

// TokenBalance returns the balance of account in token units. The native
// token address reads the TOMO balance.
func (v *Validator) TokenBalance(
	ctx context.Context,
	token common.Address,
	account common.Address,
) (decimal.Decimal, error) {
	if token == constants.NATIVE_TOKEN_ADDRESS {
		return v.Balance(ctx, account)
	}

	decimals, err := v.tokens.Decimals(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}

	raw, err := chain.CallOne[*big.Int](ctx, v.tokens.Token(token), "balanceOf", account)
	if err != nil {
		return decimal.Zero, err
	}

	return utils.FromBaseUnits(raw, int32(decimals)), nil
}

/*//////////////////////////////////////////////////////////////
                            HELPERS
//////////////////////////////////////////////////////////////*/

func (v *Validator) send(
	ctx context.Context,
	value *big.Int,
	opts []chain.TxOption,
	method string,
	args ...any,
) (common.Hash, error) {
	data, err := v.contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, err
	}

	req := chain.TxRequest{
		To:       v.contract.Address(),
		Value:    value,
		Data:     data,
		GasLimit: constants.VALIDATOR_GAS_LIMIT,
	}.Apply(opts...)

	hash, err := v.tx.Send(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}

	v.logger.Debug("validator transaction sent", zap.String("method", method), zap.Stringer("hash", hash))

	return hash, nil
}

func toWei(amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, errs.Invalid("amount", "must be positive, got %s", amount)
	}
	wei, err := utils.ToBaseUnits(amount, constants.NATIVE_DECIMALS)
	if err != nil {
		return nil, errs.Invalid("amount", "%s", err.Error())
	}
	return wei, nil
}
