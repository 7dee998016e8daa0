package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LO"
	OrderTypeMarket OrderType = "MO"
)

type LendingSide string

const (
	LendingSideBorrow LendingSide = "BORROW"
	LendingSideInvest LendingSide = "INVEST"
)

type Status string

const (
	StatusNew       Status = "NEW"
	StatusCancelled Status = "CANCELLED"
)

// LendingActionType labels the lifecycle actions on an open lending trade
type LendingActionType string

const (
	LendingActionTopUp LendingActionType = "TOPUP"
	LendingActionRepay LendingActionType = "REPAY"
)

/*//////////////////////////////////////////////////////////////
                           SPOT ORDER
//////////////////////////////////////////////////////////////*/

// Order is a spot order. Quantity and Price are already scaled to base units
// of the base and quote token respectively. Price is nil for market orders.
type Order struct {
	ExchangeAddress common.Address
	UserAddress     common.Address
	BaseToken       common.Address
	QuoteToken      common.Address
	Side            Side
	Type            OrderType
	Status          Status
	Quantity        *big.Int
	Price           *big.Int
	Nonce           uint64

	Hash      common.Hash
	Signature Signature
}

/*//////////////////////////////////////////////////////////////
                          LENDING ORDER
//////////////////////////////////////////////////////////////*/

// LendingOrder is a borrow or invest order. CollateralToken is only set for
// BORROW. Interest is nil for market orders and is scaled by
// 10^LENDING_INTEREST_DECIMALS otherwise. Term is in seconds.
type LendingOrder struct {
	RelayerAddress  common.Address
	UserAddress     common.Address
	CollateralToken common.Address
	LendingToken    common.Address
	Side            LendingSide
	Type            OrderType
	Status          Status
	Quantity        *big.Int
	Term            uint64
	Interest        *big.Int
	AutoTopUp       bool
	Nonce           uint64

	Hash      common.Hash
	Signature Signature
}

// LendingCancel cancels an open lending order
type LendingCancel struct {
	RelayerAddress common.Address
	UserAddress    common.Address
	LendingToken   common.Address
	Term           uint64
	LendingID      uint64
	Status         Status
	Nonce          uint64

	Hash      common.Hash
	Signature Signature
}

// LendingTopUp adds collateral to an open lending trade
type LendingTopUp struct {
	RelayerAddress common.Address
	UserAddress    common.Address
	LendingToken   common.Address
	Term           uint64
	TradeID        uint64
	Quantity       *big.Int
	Status         Status
	Type           LendingActionType
	Nonce          uint64

	Hash      common.Hash
	Signature Signature
}

// LendingRepay repays an open lending trade
type LendingRepay struct {
	RelayerAddress common.Address
	UserAddress    common.Address
	LendingToken   common.Address
	Term           uint64
	TradeID        uint64
	Status         Status
	Type           LendingActionType
	Nonce          uint64

	Hash      common.Hash
	Signature Signature
}

/*//////////////////////////////////////////////////////////////
                            SIGNABLE
//////////////////////////////////////////////////////////////*/

// Signable is the closed set of records with a canonical encoding. Only
// the record types in this package implement it.
type Signable interface {
	// Seal stores the content hash and signature on the record
	Seal(hash common.Hash, sig Signature)
	signable()
}

var (
	_ Signable = (*Order)(nil)
	_ Signable = (*LendingOrder)(nil)
	_ Signable = (*LendingCancel)(nil)
	_ Signable = (*LendingTopUp)(nil)
	_ Signable = (*LendingRepay)(nil)
)

func (o *Order) Seal(hash common.Hash, sig Signature) {
	o.Hash, o.Signature = hash, sig
}

func (o *LendingOrder) Seal(hash common.Hash, sig Signature) {
	o.Hash, o.Signature = hash, sig
}

func (c *LendingCancel) Seal(hash common.Hash, sig Signature) {
	c.Hash, c.Signature = hash, sig
}

func (t *LendingTopUp) Seal(hash common.Hash, sig Signature) {
	t.Hash, t.Signature = hash, sig
}

func (r *LendingRepay) Seal(hash common.Hash, sig Signature) {
	r.Hash, r.Signature = hash, sig
}

func (*Order) signable()         {}
func (*LendingOrder) signable()  {}
func (*LendingCancel) signable() {}
func (*LendingTopUp) signable()  {}
func (*LendingRepay) signable()  {}
