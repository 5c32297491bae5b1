package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBase converts a human amount into base units (lamports, wei), truncating
// anything finer than the network precision.
func ToBase(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// FromBase converts base units into the human amount.
func FromBase(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// FormatAmount renders an amount with the symbol, e.g. "0.0015 SOL".
func FormatAmount(amount decimal.Decimal, symbol string) string {
	return amount.String() + " " + symbol
}
