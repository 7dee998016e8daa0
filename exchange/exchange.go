// Package exchange builds, signs and submits off-chain spot and lending
// messages to the matching engine.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/banky/go-tomo/constants"
	"github.com/banky/go-tomo/errs"
	"github.com/banky/go-tomo/internal/utils"
	"github.com/banky/go-tomo/nonce"
	"github.com/banky/go-tomo/rpc"
	"github.com/banky/go-tomo/signing"
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DecimalsSource resolves the decimals used to scale token amounts
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// Config for initializing the Exchange client
type Config struct {
	Caller rpc.Caller
	Signer *signing.Signer
	// Decimals scales human amounts to base units
	Decimals DecimalsSource
	// Relayer is the coinbase of the relayer matching the orders. Spot
	// orders use it as their exchange address.
	Relayer common.Address
	// Nonces defaults to an in-memory coordinator seeded from the matching
	// engine counters
	Nonces *nonce.Coordinator
	Logger *zap.Logger
}

// Exchange submits signed orders for one account
type Exchange struct {
	rpc      rpc.Caller
	signer   *signing.Signer
	decimals DecimalsSource
	relayer  common.Address
	nonces   *nonce.Coordinator
	logger   *zap.Logger
}

// New creates a new Exchange client
func New(cfg Config) (*Exchange, error) {
	if cfg.Caller == nil {
		return nil, fmt.Errorf("rpc caller is required")
	}
	if cfg.Signer == nil {
		return nil, fmt.Errorf("signer is required")
	}
	if cfg.Decimals == nil {
		return nil, fmt.Errorf("decimals source is required")
	}
	if cfg.Relayer == constants.ZERO_ADDRESS {
		return nil, errs.Invalid("relayer", "address is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	nonces := cfg.Nonces
	if nonces == nil {
		nonces = nonce.New(nonce.Config{
			Logger:       logger,
			Order:        nonce.CounterSource(cfg.Caller, "tomox_getOrderCount"),
			LendingOrder: nonce.CounterSource(cfg.Caller, "tomox_getLendingOrderCount"),
		})
	}

	return &Exchange{
		rpc:      cfg.Caller,
		signer:   cfg.Signer,
		decimals: cfg.Decimals,
		relayer:  cfg.Relayer,
		nonces:   nonces,
		logger:   logger,
	}, nil
}

// Relayer is the relayer coinbase orders are routed to
func (e *Exchange) Relayer() common.Address {
	return e.relayer
}

/*//////////////////////////////////////////////////////////////
                           SPOT ORDERS
//////////////////////////////////////////////////////////////*/

// CreateOrder signs and submits a single spot order
func (e *Exchange) CreateOrder(
	ctx context.Context,
	req OrderRequest,
	opts ...SubmitOption,
) (Submission[types.Order], error) {
	cfg := applySubmitOptions(opts)

	order, err := e.buildOrder(ctx, req)
	if err != nil {
		return Submission[types.Order]{}, err
	}

	n, err := e.nonces.Next(ctx, nonce.Order, e.signer.Address(), cfg.nonce)
	if err != nil {
		return Submission[types.Order]{}, fmt.Errorf("failed to get order nonce: %w", err)
	}
	order.Nonce = n

	result, err := e.send(ctx, nonce.Order, "tomox_sendOrder", order, func() any {
		return toOrderWire(order)
	})
	if err != nil {
		return Submission[types.Order]{}, err
	}

	return Submission[types.Order]{Record: order, Result: result}, nil
}

// CreateManyOrders submits orders one after another with consecutive
// nonces starting at the coordinator's next value, or at WithNonce. It
// stops at the first failure and returns the submissions made so far.
func (e *Exchange) CreateManyOrders(
	ctx context.Context,
	reqs []OrderRequest,
	opts ...SubmitOption,
) ([]Submission[types.Order], error) {
	if len(reqs) == 0 {
		return nil, errs.Invalid("orders", "at least one order is required")
	}

	cfg := applySubmitOptions(opts)

	orders := make([]*types.Order, len(reqs))
	for i, req := range reqs {
		order, err := e.buildOrder(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to build order %d: %w", i, err)
		}
		orders[i] = order
	}

	first, err := e.nonces.Next(ctx, nonce.Order, e.signer.Address(), cfg.nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to get order nonce: %w", err)
	}

	submissions := make([]Submission[types.Order], 0, len(orders))
	for i, order := range orders {
		n := first + uint64(i)
		if i > 0 {
			// keep the coordinator ahead of the manual increments
			if _, err := e.nonces.Next(ctx, nonce.Order, e.signer.Address(), mo.Some(n)); err != nil {
				return submissions, fmt.Errorf("failed to advance order nonce: %w", err)
			}
		}
		order.Nonce = n

		result, err := e.send(ctx, nonce.Order, "tomox_sendOrder", order, func() any {
			return toOrderWire(order)
		})
		if err != nil {
			return submissions, fmt.Errorf("failed to submit order %d: %w", i, err)
		}

		submissions = append(submissions, Submission[types.Order]{Record: order, Result: result})
	}

	return submissions, nil
}

func (e *Exchange) buildOrder(ctx context.Context, req OrderRequest) (*types.Order, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if !req.Quantity.IsPositive() {
		return nil, errs.Invalid("quantity", "must be positive, got %s", req.Quantity)
	}

	quantity, err := e.scale(ctx, "quantity", req.Quantity, req.BaseToken)
	if err != nil {
		return nil, err
	}

	var price *big.Int
	if req.Type == types.OrderTypeLimit {
		if !req.Price.IsPositive() {
			return nil, errs.Invalid("price", "must be positive, got %s", req.Price)
		}
		price, err = e.scale(ctx, "price", req.Price, req.QuoteToken)
		if err != nil {
			return nil, err
		}
	}

	return &types.Order{
		ExchangeAddress: e.relayer,
		UserAddress:     e.signer.Address(),
		BaseToken:       req.BaseToken,
		QuoteToken:      req.QuoteToken,
		Side:            req.Side,
		Type:            req.Type,
		Status:          types.StatusNew,
		Quantity:        quantity,
		Price:           price,
	}, nil
}

/*//////////////////////////////////////////////////////////////
                         LENDING ORDERS
//////////////////////////////////////////////////////////////*/

// CreateLendingOrder signs and submits a borrow or invest order
func (e *Exchange) CreateLendingOrder(
	ctx context.Context,
	req LendingOrderRequest,
	opts ...SubmitOption,
) (Submission[types.LendingOrder], error) {
	order, err := e.buildLendingOrder(ctx, req)
	if err != nil {
		return Submission[types.LendingOrder]{}, err
	}

	n, err := e.nextLendingNonce(ctx, opts)
	if err != nil {
		return Submission[types.LendingOrder]{}, err
	}
	order.Nonce = n

	result, err := e.send(ctx, nonce.LendingOrder, "tomox_sendLending", order, func() any {
		return toLendingOrderWire(order)
	})
	if err != nil {
		return Submission[types.LendingOrder]{}, err
	}

	return Submission[types.LendingOrder]{Record: order, Result: result}, nil
}

func (e *Exchange) buildLendingOrder(ctx context.Context, req LendingOrderRequest) (*types.LendingOrder, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	order := &types.LendingOrder{
		RelayerAddress: e.relayer,
		UserAddress:    e.signer.Address(),
		LendingToken:   req.LendingToken,
		Side:           req.Side,
		Type:           req.Type,
		Status:         types.StatusNew,
		Term:           req.Term,
	}

	if req.Side == types.LendingSideBorrow {
		order.CollateralToken = req.CollateralToken
		order.AutoTopUp = req.AutoTopUp
	}

	quantity, ok := req.Quantity.Get()
	switch {
	case ok:
		if !quantity.IsPositive() {
			return nil, errs.Invalid("quantity", "must be positive, got %s", quantity)
		}
		scaled, err := e.scale(ctx, "quantity", quantity, req.LendingToken)
		if err != nil {
			return nil, err
		}
		order.Quantity = scaled
	case req.Type == types.OrderTypeMarket && req.Side == types.LendingSideBorrow:
		// left to the engine
	default:
		return nil, errs.Invalid("quantity", "is required")
	}

	if req.Type == types.OrderTypeLimit {
		if !req.Interest.IsPositive() {
			return nil, errs.Invalid("interest", "must be positive, got %s", req.Interest)
		}
		interest, err := utils.ToBaseUnits(req.Interest, constants.LENDING_INTEREST_DECIMALS)
		if err != nil {
			return nil, errs.Invalid("interest", "%s", err.Error())
		}
		order.Interest = interest
	}

	return order, nil
}

// CancelLendingOrder cancels an open lending order
func (e *Exchange) CancelLendingOrder(
	ctx context.Context,
	req CancelLendingRequest,
	opts ...SubmitOption,
) (Submission[types.LendingCancel], error) {
	if err := utils.ValidateStruct(req); err != nil {
		return Submission[types.LendingCancel]{}, err
	}

	n, err := e.nextLendingNonce(ctx, opts)
	if err != nil {
		return Submission[types.LendingCancel]{}, err
	}

	cancel := &types.LendingCancel{
		RelayerAddress: e.relayer,
		UserAddress:    e.signer.Address(),
		LendingToken:   req.LendingToken,
		Term:           req.Term,
		LendingID:      req.LendingID,
		Status:         types.StatusCancelled,
		Nonce:          n,
	}

	result, err := e.send(ctx, nonce.LendingOrder, "tomox_sendLending", cancel, func() any {
		return toCancelWire(cancel)
	})
	if err != nil {
		return Submission[types.LendingCancel]{}, err
	}

	return Submission[types.LendingCancel]{Record: cancel, Result: result}, nil
}

// TopUpLendingTrade adds collateral to an open lending trade
func (e *Exchange) TopUpLendingTrade(
	ctx context.Context,
	req TopUpRequest,
	opts ...SubmitOption,
) (Submission[types.LendingTopUp], error) {
	if err := utils.ValidateStruct(req); err != nil {
		return Submission[types.LendingTopUp]{}, err
	}
	if !req.Quantity.IsPositive() {
		return Submission[types.LendingTopUp]{}, errs.Invalid("quantity", "must be positive, got %s", req.Quantity)
	}

	quantity, err := e.scale(ctx, "quantity", req.Quantity, req.CollateralToken)
	if err != nil {
		return Submission[types.LendingTopUp]{}, err
	}

	n, err := e.nextLendingNonce(ctx, opts)
	if err != nil {
		return Submission[types.LendingTopUp]{}, err
	}

	topUp := &types.LendingTopUp{
		RelayerAddress: e.relayer,
		UserAddress:    e.signer.Address(),
		LendingToken:   req.LendingToken,
		Term:           req.Term,
		TradeID:        req.TradeID,
		Quantity:       quantity,
		Status:         types.StatusNew,
		Type:           types.LendingActionTopUp,
		Nonce:          n,
	}

	result, err := e.send(ctx, nonce.LendingOrder, "tomox_sendLending", topUp, func() any {
		return toTopUpWire(topUp)
	})
	if err != nil {
		return Submission[types.LendingTopUp]{}, err
	}

	return Submission[types.LendingTopUp]{Record: topUp, Result: result}, nil
}

// RepayLendingTrade repays an open lending trade
func (e *Exchange) RepayLendingTrade(
	ctx context.Context,
	req RepayRequest,
	opts ...SubmitOption,
) (Submission[types.LendingRepay], error) {
	if err := utils.ValidateStruct(req); err != nil {
		return Submission[types.LendingRepay]{}, err
	}

	n, err := e.nextLendingNonce(ctx, opts)
	if err != nil {
		return Submission[types.LendingRepay]{}, err
	}

	repay := &types.LendingRepay{
		RelayerAddress: e.relayer,
		UserAddress:    e.signer.Address(),
		LendingToken:   req.LendingToken,
		Term:           req.Term,
		TradeID:        req.TradeID,
		Status:         types.StatusNew,
		Type:           types.LendingActionRepay,
		Nonce:          n,
	}

	result, err := e.send(ctx, nonce.LendingOrder, "tomox_sendLending", repay, func() any {
		return toRepayWire(repay)
	})
	if err != nil {
		return Submission[types.LendingRepay]{}, err
	}

	return Submission[types.LendingRepay]{Record: repay, Result: result}, nil
}

/*//////////////////////////////////////////////////////////////
                            HELPERS
//////////////////////////////////////////////////////////////*/

func (e *Exchange) nextLendingNonce(ctx context.Context, opts []SubmitOption) (uint64, error) {
	cfg := applySubmitOptions(opts)
	n, err := e.nonces.Next(ctx, nonce.LendingOrder, e.signer.Address(), cfg.nonce)
	if err != nil {
		return 0, fmt.Errorf("failed to get lending nonce: %w", err)
	}
	return n, nil
}

// send signs record, posts its wire form and resets the counter of kind
// when either step fails. wire is evaluated after signing.
func (e *Exchange) send(
	ctx context.Context,
	kind nonce.Kind,
	method string,
	record types.Signable,
	wire func() any,
) (json.RawMessage, error) {
	hash, _, err := e.signer.Sign(record)
	if err != nil {
		e.resetNonce(ctx, kind)
		return nil, fmt.Errorf("failed to sign %s payload: %w", method, err)
	}

	var result json.RawMessage
	if err := e.rpc.Call(ctx, &result, method, wire()); err != nil {
		e.resetNonce(ctx, kind)
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	e.logger.Debug(
		"submitted",
		zap.String("method", method),
		zap.Stringer("kind", kind),
		zap.Stringer("hash", hash),
	)

	return result, nil
}

func (e *Exchange) resetNonce(ctx context.Context, kind nonce.Kind) {
	if err := e.nonces.Reset(ctx, kind, e.signer.Address()); err != nil {
		e.logger.Warn("failed to reset nonce", zap.Stringer("kind", kind), zap.Error(err))
	}
}

// scale converts a human amount of token into base units
func (e *Exchange) scale(
	ctx context.Context,
	field string,
	amount decimal.Decimal,
	token common.Address,
) (*big.Int, error) {
	d, err := e.decimals.Decimals(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get decimals of %s: %w", token.Hex(), err)
	}

	scaled, err := utils.ToBaseUnits(amount, int32(d))
	if err != nil {
		return nil, errs.Invalid(field, "%s", err.Error())
	}

	return scaled, nil
}
