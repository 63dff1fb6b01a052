package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToCents converts a decimal dollar amount into integer minor units,
// rounding half up to the nearest cent.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromCents converts integer minor units into a decimal dollar amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}

// SplitProportional divides amount according to part/total and returns the
// proportional share (rounded half up) plus the exact remainder. The two
// results always sum to amount, so no cent is lost to rounding.
func SplitProportional(amount, part, total int64) (share, remainder int64) {
	if total <= 0 || part <= 0 {
		return 0, amount
	}
	if part >= total {
		return amount, 0
	}
	ratio := decimal.NewFromInt(amount).Mul(decimal.NewFromInt(part)).Div(decimal.NewFromInt(total))
	share = ratio.Round(0).IntPart()
	if share > amount {
		share = amount
	}
	return share, amount - share
}
