package utils

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ToBaseUnits scales a human amount by 10^decimals into an integer.
// Returns an error if the scaled value is negative or has a fractional part,
// which prevents accidental precision loss when truncating.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative, got %s", amount)
	}

	scaled := amount.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf(
			"amount %s has more than %d decimals",
			amount,
			decimals,
		)
	}

	return scaled.BigInt(), nil
}

// FromBaseUnits divides a raw integer amount by 10^decimals.
func FromBaseUnits(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToBasisPoints converts a percentage to basis points, truncating any
// remainder below one basis point.
func ToBasisPoints(percent decimal.Decimal) int64 {
	return percent.Shift(2).Truncate(0).IntPart()
}

// FromBasisPoints converts basis points back to a percentage
func FromBasisPoints(bps *big.Int) decimal.Decimal {
	return FromBaseUnits(bps, 2)
}

// ContainsAddress reports whether target is in list
func ContainsAddress(list []common.Address, target common.Address) bool {
	for _, a := range list {
		if a == target {
			return true
		}
	}
	return false
}
