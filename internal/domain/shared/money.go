package shared

import "github.com/shopspring/decimal"

// AmountScale is the number of fractional digits stored for balances and amounts.
const AmountScale = 2

// FitsAmountScale reports whether d can be stored without rounding.
// Trailing zeros are allowed: 1.500 fits, 0.005 does not.
func FitsAmountScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountScale))
}
