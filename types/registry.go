package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
)

// ===== Relayer Registration =====

// Relayer is a registered relayer record. TradeFee is a percentage.
type Relayer struct {
	Index      *big.Int
	Coinbase   common.Address
	Owner      common.Address
	Deposit    *big.Int
	TradeFee   decimal.Decimal
	FromTokens []common.Address
	ToTokens   []common.Address
	// Resign is the block at which a resignation was requested, zero if none
	Resign *big.Int
	// Lending is present only once the relayer has opted into lending
	Lending mo.Option[LendingRelayer]
}

type LendingRelayer struct {
	TradeFee         decimal.Decimal
	LendingTokens    []common.Address
	Terms            []*big.Int
	CollateralTokens []common.Address
}

// RelayerStats summarises the registry
type RelayerStats struct {
	Total    uint64
	Active   uint64
	Resigned uint64
}

// ===== Lending Collateral =====

type CollateralPrice struct {
	Price       *big.Int
	BlockNumber *big.Int
}

type Collateral struct {
	Token           common.Address
	DepositRate     *big.Int
	LiquidationRate *big.Int
	RecallRate      *big.Int
	// Prices is keyed by lending token
	Prices map[common.Address]CollateralPrice
}

// ===== Validator =====

// WithdrawalEntry is a pending stake withdrawal. Capacity is in TOMO.
type WithdrawalEntry struct {
	Index       int
	BlockNumber *big.Int
	Capacity    decimal.Decimal
}

// ===== Token Listing =====

// TokenStatus tracks a token through the issuer and listing registries
type TokenStatus int

const (
	TokenUnlisted TokenStatus = iota
	TokenApplied
	TokenListed
)

func (s TokenStatus) String() string {
	switch s {
	case TokenApplied:
		return "Applied"
	case TokenListed:
		return "Listed"
	default:
		return "Unlisted"
	}
}

// TokenInfo is TRC21 metadata. TotalSupply is scaled by Decimals.
type TokenInfo struct {
	Address     common.Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply decimal.Decimal
	Status      TokenStatus
}
