package odds

import (
	"github.com/shopspring/decimal"
)

// product multiplies stake by every leg (hundredths) and the boost factor
// (basis points) without intermediate rounding. A ten-leg accumulator
// overflows int64 if multiplied naively.
func product(stake int64, legs []int64, boostFactor int64) decimal.Decimal {
	d := decimal.NewFromInt(stake)
	for _, leg := range legs {
		d = d.Mul(decimal.New(leg, -2))
	}
	if boostFactor > 0 {
		d = d.Mul(decimal.New(boostFactor, -4))
	}
	return d
}

// TotalOdds returns the combined odds of the legs times the boost, floored
// to hundredths.
func TotalOdds(legs []int64, boostFactor int64) int64 {
	return product(100, legs, boostFactor).Floor().IntPart()
}

// Payout returns stake x product(legs) x boost, rounded down to whole units.
// VOID legs must be excluded by the caller.
func Payout(stake int64, legs []int64, boostFactor int64) int64 {
	return product(stake, legs, boostFactor).Floor().IntPart()
}
