// Package relayer manages relayer and lending registrations on the exchange
// registration contracts and normalizes their records.
package relayer

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
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	reasonAlreadyRelayer = "already a relayer"
	reasonNotRelayer     = "cannot find node address"
)

// Relayer reads and writes the relayer registration contracts
type Relayer struct {
	registration  *chain.Contract
	lending       *chain.Contract
	tx            *chain.Transactor
	logger        *zap.Logger
	maxConcurrent int
}

type Config struct {
	Backend    chain.Backend
	Transactor *chain.Transactor
	Network    types.Network
	Logger     *zap.Logger
	// MaxConcurrentQueries bounds ListRelayers. Defaults to
	// MAX_CONCURRENT_QUERIES.
	MaxConcurrentQueries int
}

func New(cfg Config) (*Relayer, error) {
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

	maxConcurrent := cfg.MaxConcurrentQueries
	if maxConcurrent <= 0 {
		maxConcurrent = constants.MAX_CONCURRENT_QUERIES
	}

	return &Relayer{
		registration: chain.NewContract(
			cfg.Network.RelayerRegistrationAddress,
			chain.RegistrationABI,
			cfg.Backend,
		),
		lending: chain.NewContract(
			cfg.Network.LendingRegistrationAddress,
			chain.LendingRegistrationABI,
			cfg.Backend,
		),
		tx:            cfg.Transactor,
		logger:        logger,
		maxConcurrent: maxConcurrent,
	}, nil
}

/*//////////////////////////////////////////////////////////////
                            QUERIES
//////////////////////////////////////////////////////////////*/

// GetRelayer returns the registration of node, or None when node is not a
// relayer. The lending section is only present once the relayer has
// configured lending tokens.
func (r *Relayer) GetRelayer(ctx context.Context, node common.Address) (mo.Option[types.Relayer], error) {
	resign, err := chain.CallOne[*big.Int](ctx, r.registration, "RESIGN_REQUESTS", node)
	if err != nil {
		return mo.None[types.Relayer](), err
	}

	relayer, err := r.relayerByCoinbase(ctx, node)
	if err != nil {
		return mo.None[types.Relayer](), err
	}
	if relayer.Owner == constants.ZERO_ADDRESS {
		return mo.None[types.Relayer](), nil
	}
	relayer.Resign = resign

	lending, err := r.lendingByCoinbase(ctx, node)
	if err != nil {
		return mo.None[types.Relayer](), err
	}
	if len(lending.LendingTokens) > 0 {
		relayer.Lending = mo.Some(lending)
	}

	return mo.Some(relayer), nil
}

// ListRelayers returns every registered relayer in registry order. A
// coinbase listed twice is only returned once.
func (r *Relayer) ListRelayers(ctx context.Context) ([]types.Relayer, error) {
	count, err := chain.CallOne[*big.Int](ctx, r.registration, "RelayerCount")
	if err != nil {
		return nil, err
	}
	if !count.IsUint64() {
		return nil, fmt.Errorf("relayer count out of range: %s", count)
	}

	n := int(count.Uint64())
	relayers := make([]types.Relayer, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for i := range n {
		g.Go(func() error {
			coinbase, err := chain.CallOne[common.Address](
				gctx,
				r.registration,
				"RELAYER_COINBASES",
				big.NewInt(int64(i)),
			)
			if err != nil {
				return err
			}

			relayer, err := r.relayerByCoinbase(gctx, coinbase)
			if err != nil {
				return err
			}

			resign, err := chain.CallOne[*big.Int](gctx, r.registration, "RESIGN_REQUESTS", coinbase)
			if err != nil {
				return err
			}
			relayer.Resign = resign

			relayers[i] = relayer
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list relayers: %w", err)
	}

	seen := make(map[common.Address]struct{}, n)
	out := make([]types.Relayer, 0, n)
	for _, relayer := range relayers {
		if _, ok := seen[relayer.Coinbase]; ok {
			continue
		}
		seen[relayer.Coinbase] = struct{}{}
		out = append(out, relayer)
	}

	return out, nil
}

// Stats counts registered, active and resigned relayers
func (r *Relayer) Stats(ctx context.Context) (types.RelayerStats, error) {
	total, err := chain.CallOne[*big.Int](ctx, r.registration, "RelayerCount")
	if err != nil {
		return types.RelayerStats{}, err
	}

	active, err := chain.CallOne[*big.Int](ctx, r.registration, "ActiveRelayerCount")
	if err != nil {
		return types.RelayerStats{}, err
	}

	stats := types.RelayerStats{
		Total:  total.Uint64(),
		Active: active.Uint64(),
	}
	if stats.Total > stats.Active {
		stats.Resigned = stats.Total - stats.Active
	}

	return stats, nil
}

// GetCollateral returns the rates of an ILO collateral token and its price
// against each of lendingTokens
func (r *Relayer) GetCollateral(
	ctx context.Context,
	token common.Address,
	lendingTokens ...common.Address,
) (types.Collateral, error) {
	out, err := r.lending.Call(ctx, "COLLATERAL_LIST", token)
	if err != nil {
		return types.Collateral{}, err
	}

	collateral := types.Collateral{
		Token:  token,
		Prices: make(map[common.Address]types.CollateralPrice, len(lendingTokens)),
	}
	if collateral.DepositRate, err = chain.Output[*big.Int]("COLLATERAL_LIST", out, 0); err != nil {
		return types.Collateral{}, err
	}
	if collateral.LiquidationRate, err = chain.Output[*big.Int]("COLLATERAL_LIST", out, 1); err != nil {
		return types.Collateral{}, err
	}
	if collateral.RecallRate, err = chain.Output[*big.Int]("COLLATERAL_LIST", out, 2); err != nil {
		return types.Collateral{}, err
	}

	for _, lendingToken := range lendingTokens {
		out, err := r.lending.Call(ctx, "getCollateralPrice", token, lendingToken)
		if err != nil {
			return types.Collateral{}, err
		}

		var price types.CollateralPrice
		if price.Price, err = chain.Output[*big.Int]("getCollateralPrice", out, 0); err != nil {
			return types.Collateral{}, err
		}
		if price.BlockNumber, err = chain.Output[*big.Int]("getCollateralPrice", out, 1); err != nil {
			return types.Collateral{}, err
		}
		collateral.Prices[lendingToken] = price
	}

	return collateral, nil
}

func (r *Relayer) relayerByCoinbase(ctx context.Context, coinbase common.Address) (types.Relayer, error) {
	const method = "getRelayerByCoinbase"

	out, err := r.registration.Call(ctx, method, coinbase)
	if err != nil {
		return types.Relayer{}, err
	}

	relayer := types.Relayer{Coinbase: coinbase}
	var fee uint16

	if relayer.Index, err = chain.Output[*big.Int](method, out, 0); err != nil {
		return types.Relayer{}, err
	}
	if relayer.Owner, err = chain.Output[common.Address](method, out, 1); err != nil {
		return types.Relayer{}, err
	}
	if relayer.Deposit, err = chain.Output[*big.Int](method, out, 2); err != nil {
		return types.Relayer{}, err
	}
	if fee, err = chain.Output[uint16](method, out, 3); err != nil {
		return types.Relayer{}, err
	}
	if relayer.FromTokens, err = chain.Output[[]common.Address](method, out, 4); err != nil {
		return types.Relayer{}, err
	}
	if relayer.ToTokens, err = chain.Output[[]common.Address](method, out, 5); err != nil {
		return types.Relayer{}, err
	}
	relayer.TradeFee = utils.FromBasisPoints(big.NewInt(int64(fee)))

	return relayer, nil
}

func (r *Relayer) lendingByCoinbase(ctx context.Context, coinbase common.Address) (types.LendingRelayer, error) {
	const method = "getLendingRelayerByCoinbase"

	out, err := r.lending.Call(ctx, method, coinbase)
	if err != nil {
		return types.LendingRelayer{}, err
	}

	var lending types.LendingRelayer
	var fee uint16

	if fee, err = chain.Output[uint16](method, out, 0); err != nil {
		return types.LendingRelayer{}, err
	}
	if lending.LendingTokens, err = chain.Output[[]common.Address](method, out, 1); err != nil {
		return types.LendingRelayer{}, err
	}
	if lending.Terms, err = chain.Output[[]*big.Int](method, out, 2); err != nil {
		return types.LendingRelayer{}, err
	}
	if lending.CollateralTokens, err = chain.Output[[]common.Address](method, out, 3); err != nil {
		return types.LendingRelayer{}, err
	}
	lending.TradeFee = utils.FromBasisPoints(big.NewInt(int64(fee)))

	return lending, nil
}

/*//////////////////////////////////////////////////////////////
                          REGISTRATION
//////////////////////////////////////////////////////////////*/

// Register registers req.Node with a deposit. Fails with a state conflict
// when the node is already a relayer.
func (r *Relayer) Register(ctx context.Context, req RegisterRequest, opts ...chain.TxOption) (common.Hash, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return common.Hash{}, err
	}
	if err := checkPairs(req.FromTokens, req.ToTokens); err != nil {
		return common.Hash{}, err
	}

	fee, err := tradeFeeBasisPoints(req.TradeFee)
	if err != nil {
		return common.Hash{}, err
	}

	deposit, err := toWei("deposit", req.Deposit)
	if err != nil {
		return common.Hash{}, err
	}

	existing, err := r.GetRelayer(ctx, req.Node)
	if err != nil {
		return common.Hash{}, err
	}
	if existing.IsPresent() {
		return common.Hash{}, errs.Conflict(req.Node, reasonAlreadyRelayer)
	}

	return r.send(ctx, r.registration, deposit, opts, "register", req.Node, fee, req.FromTokens, req.ToTokens)
}

// Update replaces the trade fee and pairs of a registered relayer
func (r *Relayer) Update(ctx context.Context, req UpdateRequest, opts ...chain.TxOption) (common.Hash, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return common.Hash{}, err
	}
	if err := checkPairs(req.FromTokens, req.ToTokens); err != nil {
		return common.Hash{}, err
	}

	fee, err := tradeFeeBasisPoints(req.TradeFee)
	if err != nil {
		return common.Hash{}, err
	}

	if err := r.requireRelayer(ctx, req.Node); err != nil {
		return common.Hash{}, err
	}

	return r.send(ctx, r.registration, nil, opts, "update", req.Node, fee, req.FromTokens, req.ToTokens)
}

// Resign requests resignation of a registered relayer
func (r *Relayer) Resign(ctx context.Context, node common.Address, opts ...chain.TxOption) (common.Hash, error) {
	if err := r.requireRelayer(ctx, node); err != nil {
		return common.Hash{}, err
	}
	return r.send(ctx, r.registration, nil, opts, "resign", node)
}

// Deposit adds amount TOMO to the deposit of a registered relayer
func (r *Relayer) Deposit(
	ctx context.Context,
	node common.Address,
	amount decimal.Decimal,
	opts ...chain.TxOption,
) (common.Hash, error) {
	value, err := toWei("amount", amount)
	if err != nil {
		return common.Hash{}, err
	}

	if err := r.requireRelayer(ctx, node); err != nil {
		return common.Hash{}, err
	}

	return r.send(ctx, r.registration, value, opts, "depositMore", node)
}

// Transfer hands a registration to newOwner. newOwner must differ from node
// and must not be a relayer itself.
func (r *Relayer) Transfer(
	ctx context.Context,
	node common.Address,
	newOwner common.Address,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if newOwner == constants.ZERO_ADDRESS {
		return common.Hash{}, errs.Invalid("newOwner", "address is required")
	}
	if node == newOwner {
		return common.Hash{}, errs.Invalid("newOwner", "must differ from the node address")
	}

	var current, next mo.Option[types.Relayer]
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		current, err = r.GetRelayer(gctx, node)
		return err
	})
	g.Go(func() (err error) {
		next, err = r.GetRelayer(gctx, newOwner)
		return err
	})
	if err := g.Wait(); err != nil {
		return common.Hash{}, err
	}

	if current.IsAbsent() {
		return common.Hash{}, errs.Conflict(node, reasonNotRelayer)
	}
	if next.IsPresent() {
		return common.Hash{}, errs.Conflict(newOwner, "new owner is already a relayer")
	}

	return r.send(ctx, r.registration, nil, opts, "transfer", node, newOwner)
}

// Withdraw refunds the deposit of a resigned relayer once its lock has
// passed. The contract enforces the lock.
func (r *Relayer) Withdraw(ctx context.Context, node common.Address, opts ...chain.TxOption) (common.Hash, error) {
	return r.send(ctx, r.registration, nil, opts, "refund", node)
}

// ListToken adds a trading pair to a registered relayer
func (r *Relayer) ListToken(
	ctx context.Context,
	node common.Address,
	baseToken common.Address,
	quoteToken common.Address,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if err := r.requireRelayer(ctx, node); err != nil {
		return common.Hash{}, err
	}
	return r.send(ctx, r.registration, nil, opts, "listToken", node, baseToken, quoteToken)
}

// DelistToken removes a trading pair from a registered relayer
func (r *Relayer) DelistToken(
	ctx context.Context,
	node common.Address,
	baseToken common.Address,
	quoteToken common.Address,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if err := r.requireRelayer(ctx, node); err != nil {
		return common.Hash{}, err
	}
	return r.send(ctx, r.registration, nil, opts, "deListToken", node, baseToken, quoteToken)
}

/*//////////////////////////////////////////////////////////////
                            LENDING
//////////////////////////////////////////////////////////////*/

// LendingUpdate replaces the lending configuration of a registered relayer
func (r *Relayer) LendingUpdate(ctx context.Context, req LendingUpdateRequest, opts ...chain.TxOption) (common.Hash, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return common.Hash{}, err
	}

	fee, err := tradeFeeBasisPoints(req.TradeFee)
	if err != nil {
		return common.Hash{}, err
	}

	if err := r.requireRelayer(ctx, req.Node); err != nil {
		return common.Hash{}, err
	}

	terms := make([]*big.Int, len(req.Terms))
	for i, term := range req.Terms {
		terms[i] = new(big.Int).SetUint64(term)
	}

	collaterals := req.CollateralTokens
	if collaterals == nil {
		collaterals = []common.Address{}
	}

	return r.send(ctx, r.lending, nil, opts, "update", req.Node, fee, req.LendingTokens, terms, collaterals)
}

// AddILOCollateral registers a collateral token for initial lending
// offerings
func (r *Relayer) AddILOCollateral(ctx context.Context, req CollateralRequest, opts ...chain.TxOption) (common.Hash, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return common.Hash{}, err
	}
	return r.send(
		ctx,
		r.lending,
		nil,
		opts,
		"addILOCollateral",
		req.Token,
		req.DepositRate,
		req.LiquidationRate,
		req.RecallRate,
	)
}

// SetCollateralPrice sets the price of token in lendingToken base units
func (r *Relayer) SetCollateralPrice(
	ctx context.Context,
	token common.Address,
	lendingToken common.Address,
	price *big.Int,
	opts ...chain.TxOption,
) (common.Hash, error) {
	if price == nil || price.Sign() <= 0 {
		return common.Hash{}, errs.Invalid("price", "must be positive")
	}
	return r.send(ctx, r.lending, nil, opts, "setCollateralPrice", token, lendingToken, price)
}

/*//////////////////////////////////////////////////////////////
                            HELPERS
//////////////////////////////////////////////////////////////*/

func (r *Relayer) requireRelayer(ctx context.Context, node common.Address) error {
	existing, err := r.GetRelayer(ctx, node)
	if err != nil {
		return err
	}
	if existing.IsAbsent() {
		return errs.Conflict(node, reasonNotRelayer)
	}
	return nil
}

// send packs method and broadcasts it at the fixed relayer gas price
func (r *Relayer) send(
	ctx context.Context,
	contract *chain.Contract,
	value *big.Int,
	opts []chain.TxOption,
	method string,
	args ...any,
) (common.Hash, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return common.Hash{}, err
	}

	req := chain.TxRequest{
		To:       contract.Address(),
		Value:    value,
		Data:     data,
		GasLimit: constants.RELAYER_GAS_LIMIT,
		GasPrice: mo.Some(constants.RELAYER_GAS_PRICE),
	}.Apply(opts...)

	hash, err := r.tx.Send(ctx, req)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send %s: %w", method, err)
	}

	r.logger.Debug("relayer transaction sent", zap.String("method", method), zap.Stringer("hash", hash))

	return hash, nil
}

// tradeFeeBasisPoints converts a percentage to the uint16 the contracts
// store. The percentage must be between 0 and MAX_TRADE_FEE.
func tradeFeeBasisPoints(percent decimal.Decimal) (uint16, error) {
	bps := utils.ToBasisPoints(percent)
	if percent.IsNegative() || bps > constants.MAX_TRADE_FEE*constants.BASIS_POINTS {
		return 0, errs.Invalid(
			"tradeFee",
			"must be from 0 to %d, got %s",
			constants.MAX_TRADE_FEE,
			percent,
		)
	}
	return uint16(bps), nil
}

func checkPairs(from, to []common.Address) error {
	if len(from) != len(to) {
		return errs.Invalid("toTokens", "got %d quote tokens for %d base tokens", len(to), len(from))
	}
	return nil
}

func toWei(field string, amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, errs.Invalid(field, "must be positive, got %s", amount)
	}
	wei, err := utils.ToBaseUnits(amount, constants.NATIVE_DECIMALS)
	if err != nil {
		return nil, errs.Invalid(field, "%s", err.Error())
	}
	return wei, nil
}
