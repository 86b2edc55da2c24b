package mathutil

import (
	"github.com/shopspring/decimal"
)

// PayoutPrecision is the common minor-unit precision across the supported
// UTXO assets. All aggregated outputs and attributed fees are rounded to it.
const PayoutPrecision = 8

func init() {
	decimal.DivisionPrecision = PayoutPrecision
}

// Round rounds a decimal half-up to the given number of places.
func Round(v decimal.Decimal, places int32) decimal.Decimal {
	return v.Round(places)
}

// Round8 rounds a decimal half-up to the payout precision.
func Round8(v decimal.Decimal) decimal.Decimal {
	return v.Round(PayoutPrecision)
}

// Sum returns the sum of the given decimals.
func Sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// ProRata returns the share of total attributable to part out of whole,
// rounded to the payout precision.
func ProRata(total, part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return Round8(total.Mul(part).Div(whole))
}

// Unit returns one unit in the last place for the given precision,
// ie. Unit(8) = 0.00000001.
func Unit(precision int32) decimal.Decimal {
	return decimal.New(1, -precision)
}
