package relayer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// RegisterRequest registers Node as a relayer. Deposit is in TOMO and
// TradeFee is a percentage between 0 and 10.
type RegisterRequest struct {
	Node       common.Address `validate:"required"`
	Deposit    decimal.Decimal
	TradeFee   decimal.Decimal
	FromTokens []common.Address `validate:"min=1,dive,required"`
	ToTokens   []common.Address `validate:"min=1,dive,required"`
}

// UpdateRequest replaces the trade fee and pairs of a relayer
type UpdateRequest struct {
	Node       common.Address `validate:"required"`
	TradeFee   decimal.Decimal
	FromTokens []common.Address `validate:"min=1,dive,required"`
	ToTokens   []common.Address `validate:"min=1,dive,required"`
}

// LendingUpdateRequest replaces the lending configuration of a relayer.
// Terms are in seconds.
type LendingUpdateRequest struct {
	Node             common.Address `validate:"required"`
	TradeFee         decimal.Decimal
	LendingTokens    []common.Address `validate:"min=1,dive,required"`
	Terms            []uint64         `validate:"min=1,dive,gt=0"`
	CollateralTokens []common.Address
}

// CollateralRequest registers an ILO collateral token. Rates are in percent.
type CollateralRequest struct {
	Token           common.Address `validate:"required"`
	DepositRate     *big.Int       `validate:"required"`
	LiquidationRate *big.Int       `validate:"required"`
	RecallRate      *big.Int       `validate:"required"`
}
