package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ===== Order Book =====

// PriceLevel is one level of an order tree. Orders maps an order id to its
// remaining quantity.
type PriceLevel struct {
	Volume Quantity            `json:"Volume"`
	Orders map[string]Quantity `json:"Orders"`
}

// OrderTree maps a price (decimal string of base units) to its level. The
// lending books use the same shape keyed by interest.
type OrderTree map[string]PriceLevel

// OrderItem is a spot order as stored by the matching engine
type OrderItem struct {
	OrderID         Quantity       `json:"orderID"`
	Quantity        Quantity       `json:"quantity"`
	Price           Quantity       `json:"price"`
	FilledAmount    Quantity       `json:"filledAmount"`
	Nonce           Quantity       `json:"nonce"`
	ExchangeAddress common.Address `json:"exchangeAddress"`
	UserAddress     common.Address `json:"userAddress"`
	BaseToken       common.Address `json:"baseToken"`
	QuoteToken      common.Address `json:"quoteToken"`
	Status          string         `json:"status"`
	Side            string         `json:"side"`
	Type            string         `json:"type"`
	Hash            common.Hash    `json:"hash"`
	PairName        string         `json:"pairName"`
}

// LendingItem is a lending order as stored by the matching engine
type LendingItem struct {
	LendingID       Quantity       `json:"lendingId"`
	Quantity        Quantity       `json:"quantity"`
	FilledAmount    Quantity       `json:"filledAmount"`
	Interest        Quantity       `json:"interest"`
	Term            Quantity       `json:"term"`
	Nonce           Quantity       `json:"nonce"`
	RelayerAddress  common.Address `json:"relayer"`
	UserAddress     common.Address `json:"userAddress"`
	CollateralToken common.Address `json:"collateralToken"`
	LendingToken    common.Address `json:"lendingToken"`
	Status          string         `json:"status"`
	Side            string         `json:"side"`
	Type            string         `json:"type"`
	AutoTopUp       bool           `json:"autoTopUp"`
	Hash            common.Hash    `json:"hash"`
}

// PriceVolumes maps a price (or interest) to the total volume resting there
type PriceVolumes map[string]Quantity

// LendingTrade is an open lending trade as stored by the matching engine
type LendingTrade struct {
	TradeID          Quantity       `json:"tradeId"`
	Borrower         common.Address `json:"borrower"`
	Investor         common.Address `json:"investor"`
	CollateralToken  common.Address `json:"collateralToken"`
	LendingToken     common.Address `json:"lendingToken"`
	Term             Quantity       `json:"term"`
	Interest         Quantity       `json:"interest"`
	Amount           Quantity       `json:"amount"`
	CollateralLocked Quantity       `json:"collateralLockedAmount"`
	LiquidationPrice Quantity       `json:"liquidationPrice"`
	DepositRate      Quantity       `json:"depositRate"`
	AutoTopUp        bool           `json:"autoTopUp"`
	Status           string         `json:"status"`
	Hash             common.Hash    `json:"hash"`
}

// CandidateStatus is the eth_getCandidateStatus result. Capacity is in TOMO.
type CandidateStatus struct {
	Status   string
	Capacity decimal.Decimal
	Success  bool
}
