package money

import (
	"fmt"
)

// Amount is a monetary value in minor currency units (e.g. cents).
// All marketplace arithmetic happens on minor units so that shares can be
// conserved exactly; floats never enter the ledger.
type Amount int64

// BasisPoints expresses a rate as 1/10000ths (e.g. 750 = 7.5%).
type BasisPoints int64

const bpsScale = 10_000

// ApplyRate returns a*(1 + rate/10000) rounded half-up to the minor unit.
func ApplyRate(a Amount, rate BasisPoints) Amount {
	num := int64(a) * (bpsScale + int64(rate))
	return Amount(divRoundHalfUp(num, bpsScale))
}

// WeightedFloor returns floor(total * weight / totalWeight).
// It is the building block of the proportional split: flooring every share
// keeps the sum at or below total, and the caller assigns the remainder.
func WeightedFloor(total Amount, weight, totalWeight int64) Amount {
	if totalWeight <= 0 || weight <= 0 {
		return 0
	}
	return Amount(int64(total) * weight / totalWeight)
}

// divRoundHalfUp divides num by den rounding half away from zero.
func divRoundHalfUp(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	half := den / 2
	if num < 0 {
		return (num - half) / den
	}
	return (num + half) / den
}

// String renders the amount as a decimal with two fraction digits. Display
// only; never parse this back.
func (a Amount) String() string {
	v := int64(a)
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
