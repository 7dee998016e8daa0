package exchange

import (
	"github.com/banky/go-tomo/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

/*//////////////////////////////////////////////////////////////
                            REQUESTS
//////////////////////////////////////////////////////////////*/

// OrderRequest is a spot order in human units. Price is ignored for market
// orders.
type OrderRequest struct {
	BaseToken  common.Address  `validate:"required"`
	QuoteToken common.Address  `validate:"required"`
	Side       types.Side      `validate:"oneof=BUY SELL"`
	Type       types.OrderType `validate:"oneof=LO MO"`
	Quantity   decimal.Decimal
	Price      decimal.Decimal
}

// LendingOrderRequest is a borrow or invest order in human units. Interest
// is a yearly percentage and Term is in seconds. CollateralToken and
// AutoTopUp only apply to BORROW.
type LendingOrderRequest struct {
	LendingToken    common.Address    `validate:"required"`
	CollateralToken common.Address    `validate:"required_if=Side BORROW"`
	Side            types.LendingSide `validate:"oneof=BORROW INVEST"`
	Type            types.OrderType   `validate:"oneof=LO MO"`
	Term            uint64            `validate:"gt=0"`
	Quantity        mo.Option[decimal.Decimal]
	Interest        decimal.Decimal
	AutoTopUp       bool
}

// CancelLendingRequest cancels an open lending order
type CancelLendingRequest struct {
	LendingToken common.Address `validate:"required"`
	Term         uint64         `validate:"gt=0"`
	LendingID    uint64         `validate:"gt=0"`
}

// TopUpRequest adds Quantity of CollateralToken to an open lending trade
type TopUpRequest struct {
	LendingToken    common.Address `validate:"required"`
	CollateralToken common.Address `validate:"required"`
	Term            uint64         `validate:"gt=0"`
	TradeID         uint64         `validate:"gt=0"`
	Quantity        decimal.Decimal
}

// RepayRequest repays an open lending trade
type RepayRequest struct {
	LendingToken common.Address `validate:"required"`
	Term         uint64         `validate:"gt=0"`
	TradeID      uint64         `validate:"gt=0"`
}

/*//////////////////////////////////////////////////////////////
                              WIRE
//////////////////////////////////////////////////////////////*/

// OrderWire is the tomox_sendOrder payload
type OrderWire struct {
	Nonce           hexutil.Uint64 `json:"nonce"`
	Quantity        *hexutil.Big   `json:"quantity,omitempty"`
	Price           *hexutil.Big   `json:"price,omitempty"`
	ExchangeAddress common.Address `json:"exchangeAddress"`
	UserAddress     common.Address `json:"userAddress"`
	BaseToken       common.Address `json:"baseToken"`
	QuoteToken      common.Address `json:"quoteToken"`
	Status          string         `json:"status"`
	Side            string         `json:"side"`
	Type            string         `json:"type"`
	Hash            common.Hash    `json:"hash"`
	V               hexutil.Uint64 `json:"v"`
	R               common.Hash    `json:"r"`
	S               common.Hash    `json:"s"`
}

// LendingWire is the tomox_sendLending payload shared by lending orders,
// cancels, top ups and repays
type LendingWire struct {
	Nonce           hexutil.Uint64  `json:"nonce"`
	Quantity        *hexutil.Big    `json:"quantity,omitempty"`
	Interest        *hexutil.Big    `json:"interest,omitempty"`
	RelayerAddress  common.Address  `json:"relayerAddress"`
	UserAddress     common.Address  `json:"userAddress"`
	CollateralToken *common.Address `json:"collateralToken,omitempty"`
	LendingToken    common.Address  `json:"lendingToken"`
	Term            hexutil.Uint64  `json:"term"`
	AutoTopUp       bool            `json:"autoTopUp"`
	Status          string          `json:"status"`
	Side            string          `json:"side,omitempty"`
	Type            string          `json:"type"`
	LendingID       hexutil.Uint64  `json:"lendingId,omitempty"`
	LendingTradeID  hexutil.Uint64  `json:"tradeId,omitempty"`
	Hash            common.Hash     `json:"hash"`
	V               hexutil.Uint64  `json:"v"`
	R               common.Hash     `json:"r"`
	S               common.Hash     `json:"s"`
}

func toOrderWire(o *types.Order) OrderWire {
	w := OrderWire{
		Nonce:           hexutil.Uint64(o.Nonce),
		Quantity:        (*hexutil.Big)(o.Quantity),
		ExchangeAddress: o.ExchangeAddress,
		UserAddress:     o.UserAddress,
		BaseToken:       o.BaseToken,
		QuoteToken:      o.QuoteToken,
		Status:          string(o.Status),
		Side:            string(o.Side),
		Type:            string(o.Type),
		Hash:            o.Hash,
		V:               hexutil.Uint64(o.Signature.V),
		R:               o.Signature.R,
		S:               o.Signature.S,
	}
	if o.Price != nil {
		w.Price = (*hexutil.Big)(o.Price)
	}
	return w
}

func toLendingOrderWire(o *types.LendingOrder) LendingWire {
	w := LendingWire{
		Nonce:          hexutil.Uint64(o.Nonce),
		Quantity:       (*hexutil.Big)(o.Quantity),
		Interest:       (*hexutil.Big)(o.Interest),
		RelayerAddress: o.RelayerAddress,
		UserAddress:    o.UserAddress,
		LendingToken:   o.LendingToken,
		Term:           hexutil.Uint64(o.Term),
		AutoTopUp:      o.AutoTopUp,
		Status:         string(o.Status),
		Side:           string(o.Side),
		Type:           string(o.Type),
		Hash:           o.Hash,
		V:              hexutil.Uint64(o.Signature.V),
		R:              o.Signature.R,
		S:              o.Signature.S,
	}
	if o.Side == types.LendingSideBorrow {
		collateral := o.CollateralToken
		w.CollateralToken = &collateral
	}
	return w
}

func toCancelWire(c *types.LendingCancel) LendingWire {
	return LendingWire{
		Nonce:          hexutil.Uint64(c.Nonce),
		RelayerAddress: c.RelayerAddress,
		UserAddress:    c.UserAddress,
		LendingToken:   c.LendingToken,
		Term:           hexutil.Uint64(c.Term),
		Status:         string(c.Status),
		Type:           string(types.OrderTypeLimit),
		LendingID:      hexutil.Uint64(c.LendingID),
		Hash:           c.Hash,
		V:              hexutil.Uint64(c.Signature.V),
		R:              c.Signature.R,
		S:              c.Signature.S,
	}
}

func toTopUpWire(t *types.LendingTopUp) LendingWire {
	return LendingWire{
		Nonce:          hexutil.Uint64(t.Nonce),
		Quantity:       (*hexutil.Big)(t.Quantity),
		RelayerAddress: t.RelayerAddress,
		UserAddress:    t.UserAddress,
		LendingToken:   t.LendingToken,
		Term:           hexutil.Uint64(t.Term),
		Status:         string(t.Status),
		Type:           string(t.Type),
		LendingTradeID: hexutil.Uint64(t.TradeID),
		Hash:           t.Hash,
		V:              hexutil.Uint64(t.Signature.V),
		R:              t.Signature.R,
		S:              t.Signature.S,
	}
}

func toRepayWire(r *types.LendingRepay) LendingWire {
	return LendingWire{
		Nonce:          hexutil.Uint64(r.Nonce),
		RelayerAddress: r.RelayerAddress,
		UserAddress:    r.UserAddress,
		LendingToken:   r.LendingToken,
		Term:           hexutil.Uint64(r.Term),
		Status:         string(r.Status),
		Type:           string(r.Type),
		LendingTradeID: hexutil.Uint64(r.TradeID),
		Hash:           r.Hash,
		V:              hexutil.Uint64(r.Signature.V),
		R:              r.Signature.R,
		S:              r.Signature.S,
	}
}
