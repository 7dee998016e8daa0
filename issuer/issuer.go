// Package issuer drives a TRC21 token through the issuer and listing
// registries. A token starts Unlisted, becomes Applied once its pooling fee
// is deposited with the issuer and Listed once the listing fee is paid.
//
// Status checks and the writes that depend on them are separate calls, so a
// concurrent writer can still win between the two.
package issuer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/banky/go-tomo/chain"
	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/internal/utils"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Issuer struct {
	issuer  *chain.Contract
	listing *chain.Contract
	tokens  *chain.TokenCache
	tx      *chain.Transactor
	logger  *zap.Logger
}

type Config struct {
	Backend    chain.Backend
	Transactor *chain.Transactor
	Network    types.Network
	// Tokens defaults to a new cache over Backend
	Tokens *chain.TokenCache
	Logger *zap.Logger
}

func New(cfg Config) (*Issuer, error) {
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

	return &Issuer{
		issuer:  chain.NewContract(cfg.Network.IssuerAddress, chain.IssuerABI, cfg.Backend),
		listing: chain.NewContract(cfg.Network.ListingAddress, chain.ListingABI, cfg.Backend),
		tokens:  tokens,
		tx:      cfg.Transactor,
		logger:  logger,
	}, nil
}

/*//////////////////////////////////////////////////////////////
                             STATUS
//////////////////////////////////////////////////////////////*/

// IssuerTokens lists every token applied to the issuer
func (i *Issuer) IssuerTokens(ctx context.Context) ([]common.Address, error) {
	return chain.CallOne[[]common.Address](ctx, i.issuer, "tokens")
}

// ListedTokens lists every token applied to the listing registry
func (i *Issuer) ListedTokens(ctx context.Context) ([]common.Address, error) {
	return chain.CallOne[[]common.Address](ctx, i.listing, "tokens")
}

// IsAppliedIssuer reports whether token is in the issuer registry. A failed
// lookup is logged and reported as false.
func (i *Issuer) IsAppliedIssuer(ctx context.Context, token common.Address) bool {
	return i.contains(ctx, "issuer", i.IssuerTokens, token)
}

// IsAppliedListing reports whether token is in the listing registry. A
// failed lookup is logged and reported as false.
func (i *Issuer) IsAppliedListing(ctx context.Context, token common.Address) bool {
	return i.contains(ctx, "listing", i.ListedTokens, token)
}

// TokenStatus places token in the listing state machine
func (i *Issuer) TokenStatus(ctx context.Context, token common.Address) types.TokenStatus {
	if i.IsAppliedListing(ctx, token) {
		return types.TokenListed
	}
	if i.IsAppliedIssuer(ctx, token) {
		return types.TokenApplied
	}
	return types.TokenUnlisted
}

func (i *Issuer) contains(
	ctx context.Context,
	registry string,
	list func(context.Context) ([]common.Address, error),
	token common.Address,
) bool {
	tokens, err := list(ctx)
	if err != nil {
		i.logger.Warn(
			"failed to read registry tokens",
			zap.String("registry", registry),
			zap.Stringer("token", token),
			zap.Error(err),
		)
		return false
	}
	return utils.ContainsAddress(tokens, token)
}

/*//////////////////////////////////////////////////////////////
                          APPLICATIONS
//////////////////////////////////////////////////////////////*/

// ApplyIssuer applies token to the issuer with a pooling fee deposit of at
// least MIN_ISSUER_DEPOSIT TOMO
func (i *Issuer) ApplyIssuer(
	ctx context.Context,
	token common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	value, err := minimumWei(amount, constants.MIN_ISSUER_DEPOSIT, "minimum of depositing is %d TOMO")
	if err != nil {
		return common.Hash{}, err
	}

	if i.IsAppliedIssuer(ctx, token) {
		return common.Hash{}, fmt.Errorf("%w: %s to the issuer", errs.ErrAlreadyApplied, token.Hex())
	}

	return i.send(ctx, i.issuer, value, opts, "apply", token)
}

// ApplyListing applies token to the listing registry, paying at least
// MIN_LISTING_FEE TOMO
func (i *Issuer) ApplyListing(
	ctx context.Context,
	token common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	value, err := minimumWei(amount, constants.MIN_LISTING_FEE, "a listing fee of %d TOMO is required")
	if err != nil {
		return common.Hash{}, err
	}

	if i.IsAppliedListing(ctx, token) {
		return common.Hash{}, fmt.Errorf("%w: %s to the listing", errs.ErrAlreadyApplied, token.Hex())
	}

	return i.send(ctx, i.listing, value, opts, "apply", token)
}

// UpdateFee sets the minimum transfer fee of an applied token, in token
// units. Only the token issuer may call it.
func (i *Issuer) UpdateFee(
	ctx context.Context,
	token common.Address,
	fee decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if fee.IsNegative() {
		return common.Hash{}, errs.Invalid("fee", "must not be negative, got %s", fee)
	}

	if err := i.requireApplied(ctx, token); err != nil {
		return common.Hash{}, err
	}

	contract := i.tokens.Token(token)
	owner, err := chain.CallOne[common.Address](ctx, contract, "issuer")
	if err != nil {
		return common.Hash{}, err
	}
	if owner != i.tx.From() {
		return common.Hash{}, errs.Conflict(token, "only owner of the contract can edit fee")
	}

	raw, err := i.scale(ctx, token, "fee", fee)
	if err != nil {
		return common.Hash{}, err
	}

	return i.send(ctx, contract, nil, opts, "setMinFee", raw)
}

// DepositPoolingFee tops up the pooling fee of an applied token and waits
// for the transaction to be mined
func (i *Issuer) DepositPoolingFee(
	ctx context.Context,
	token common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (*ethtypes.Receipt, error) {
	value, err := minimumWei(amount, 0, "")
	if err != nil {
		return nil, err
	}

	if err := i.requireApplied(ctx, token); err != nil {
		return nil, err
	}

	return i.confirm(ctx, i.issuer, value, opts, "charge", token)
}

/*//////////////////////////////////////////////////////////////
                           TRC21 TOKEN
//////////////////////////////////////////////////////////////*/

// ReissueToken mints amount tokens to the recipient, defaulting to the
// sender, and waits for the transaction to be mined
func (i *Issuer) ReissueToken(
	ctx context.Context,
	token common.Address,
	to mo.Option[common.Address],
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (*ethtypes.Receipt, error) {
	raw, err := i.positive(ctx, token, amount)
	if err != nil {
		return nil, err
	}

	recipient := to.OrElse(i.tx.From())
	return i.confirm(ctx, i.tokens.Token(token), nil, opts, "mint", recipient, raw)
}

// BurnToken burns amount tokens from the sender and waits for the
// transaction to be mined
func (i *Issuer) BurnToken(
	ctx context.Context,
	token common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (*ethtypes.Receipt, error) {
	raw, err := i.positive(ctx, token, amount)
	if err != nil {
		return nil, err
	}
	return i.confirm(ctx, i.tokens.Token(token), nil, opts, "burn", raw)
}

// Transfer sends amount tokens to the recipient at the fixed token transfer
// gas price. WithNonce overrides the coordinator.
func (i *Issuer) Transfer(
	ctx context.Context,
	token common.Address,
	to common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if to == constants.ZERO_ADDRESS {
		return common.Hash{}, errs.Invalid("to", "address is required")
	}

	raw, err := i.positive(ctx, token, amount)
	if err != nil {
		return common.Hash{}, err
	}

	opts = append([]chain.TxOption{chain.WithGasPrice(constants.TOKEN_TRANSFER_GAS_PRICE)}, opts...)
	return i.send(ctx, i.tokens.Token(token), nil, opts, "transfer", to, raw)
}

// TokenInformation reads the TRC21 metadata of token and its registry
// status. Missing name, symbol or decimals are left empty.
func (i *Issuer) TokenInformation(ctx context.Context, token common.Address) (types.TokenInfo, error) {
	if token == constants.NATIVE_TOKEN_ADDRESS {
		return types.TokenInfo{
			Address:     token,
			Name:        constants.NATIVE_TOKEN_NAME,
			Symbol:      constants.NATIVE_TOKEN_SYMBOL,
			Decimals:    constants.NATIVE_DECIMALS,
			TotalSupply: decimal.NewFromInt(constants.NATIVE_TOKEN_SUPPLY),
			Status:      types.TokenUnlisted,
		}, nil
	}

	contract := i.tokens.Token(token)
	info := types.TokenInfo{Address: token}

	decimals, err := i.tokens.Decimals(ctx, token)
	if err != nil {
		i.logger.Debug("token has no decimals", zap.Stringer("token", token), zap.Error(err))
	}
	info.Decimals = decimals

	if info.Name, err = chain.CallOne[string](ctx, contract, "name"); err != nil {
		i.logger.Debug("token has no name", zap.Stringer("token", token), zap.Error(err))
	}
	if info.Symbol, err = chain.CallOne[string](ctx, contract, "symbol"); err != nil {
		i.logger.Debug("token has no symbol", zap.Stringer("token", token), zap.Error(err))
	}

	supply, err := chain.CallOne[*big.Int](ctx, contract, "totalSupply")
	if err != nil {
		return types.TokenInfo{}, err
	}
	info.TotalSupply = utils.FromBaseUnits(supply, int32(info.Decimals))
	info.Status = i.TokenStatus(ctx, token)

	return info, nil
}

/*//////////////////////////////////////////////////////////////
                            HELPERS
//////////////////////////////////////////////////////////////*/

func (i *Issuer) requireApplied(ctx context.Context, token common.Address) error {
	if !i.IsAppliedIssuer(ctx, token) {
		return fmt.Errorf("%w: %s to the issuer", errs.ErrNotApplied, token.Hex())
	}
	return nil
}

func (i *Issuer) request(
	contract *chain.Contract,
	value *big.Int,
	opts []chain.TxOption,
	method string,
	args ...any,
) (chain.TxRequest, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return chain.TxRequest{}, err
	}

	return chain.TxRequest{
		To:       contract.Address(),
		Value:    value,
		Data:     data,
		GasLimit: constants.ISSUER_GAS_LIMIT,
	}.Apply(opts...), nil
}

func (i *Issuer) send(
	ctx context.Context,
	contract *chain.Contract,
	value *big.Int,
	opts []chain.TxOption,
	method string,
	args ...any,
) (common.Hash, error) {
	req, err := i.request(contract, value, opts, method, args...)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := i.tx.Send(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}

	i.logger.Debug("issuer transaction sent", zap.String("method", method), zap.Stringer("hash", hash))

	return hash, nil
}

// confirm sends method and waits for a successful receipt
func (i *Issuer) confirm(
	ctx context.Context,
	contract *chain.Contract,
	value *big.Int,
	opts []chain.TxOption,
	method string,
	args ...any,
) (*ethtypes.Receipt, error) {
	req, err := i.request(contract, value, opts, method, args...)
	if err != nil {
		return nil, err
	}

	receipt, err := i.tx.SendAndConfirm(ctx, req)
	if err != nil {
		return receipt, fmt.Errorf("failed to confirm %s: %w", method, err)
	}

	i.logger.Debug(
		"issuer transaction confirmed",
		zap.String("method", method),
		zap.Stringer("hash", receipt.TxHash),
	)

	return receipt, nil
}

// positive scales a strictly positive token amount
func (i *Issuer) positive(ctx context.Context, token common.Address, amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, errs.Invalid("amount", "must be positive, got %s", amount)
	}
	return i.scale(ctx, token, "amount", amount)
}

func (i *Issuer) scale(ctx context.Context, token common.Address, field string, amount decimal.Decimal) (*big.Int, error) {
	decimals, err := i.tokens.Decimals(ctx, token)
	if err != nil {
		return nil, err
	}

	raw, err := utils.ToBaseUnits(amount, int32(decimals))
	if err != nil {
		return nil, errs.Invalid(field, "%s", err.Error())
	}
	return raw, nil
}

// minimumWei converts a TOMO amount that must be positive and at least
// minimum
func minimumWei(amount decimal.Decimal, minimum int64, format string) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, errs.Invalid("amount", "must be positive, got %s", amount)
	}
	if amount.LessThan(decimal.NewFromInt(minimum)) {
		return nil, errs.Invalid("amount", format, minimum)
	}

	wei, err := utils.ToBaseUnits(amount, constants.NATIVE_DECIMALS)
	if err != nil {
		return nil, errs.Invalid("amount", "%s", err.Error())
	}
	return wei, nil
}
