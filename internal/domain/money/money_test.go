package money

import (
	"testing"

	"pgregory.net/rapid"
)

func TestApplyRate(t *testing.T) {
	cases := []struct {
		name string
		in   Amount
		rate BasisPoints
		want Amount
	}{
		{"zero rate", 10000, 0, 10000},
		{"ten percent", 10000, 1000, 11000},
		{"seven and a half percent", 10000, 750, 10750},
		{"rounds half up", 101, 50, 102},   // 101.505 -> 102
		{"rounds down below half", 100, 4, 100}, // 100.04 -> 100
		{"zero amount", 0, 2000, 0},
		{"negative amount rounds away from zero", -101, 50, -102},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyRate(tc.in, tc.rate); got != tc.want {
				t.Fatalf("ApplyRate(%d, %d) = %d, want %d", tc.in, tc.rate, got, tc.want)
			}
		})
	}
}

func TestWeightedFloor(t *testing.T) {
	cases := []struct {
		name               string
		total              Amount
		weight, totalWight int64
		want               Amount
	}{
		{"even split", 100, 1, 2, 50},
		{"floors the fraction", 100, 1, 3, 33},
		{"full weight", 100, 3, 3, 100},
		{"zero weight", 100, 0, 3, 0},
		{"zero total weight", 100, 1, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeightedFloor(tc.total, tc.weight, tc.totalWight); got != tc.want {
				t.Fatalf("WeightedFloor(%d, %d, %d) = %d, want %d", tc.total, tc.weight, tc.totalWight, got, tc.want)
			}
		})
	}
}

// Floored weighted shares can never over-allocate the total.
func TestWeightedFloorNeverExceedsTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := Amount(rapid.Int64Range(0, 1_000_000_00).Draw(t, "total"))
		weights := rapid.SliceOfN(rapid.Int64Range(1, 8), 1, 10).Draw(t, "weights")

		var totalWeight int64
		for _, w := range weights {
			totalWeight += w
		}

		var sum Amount
		for _, w := range weights {
			sum += WeightedFloor(total, w, totalWeight)
		}
		if sum > total {
			t.Fatalf("floored shares sum %d exceeds total %d", sum, total)
		}
		if total-sum >= Amount(len(weights)) {
			t.Fatalf("remainder %d is not smaller than the passenger count %d", total-sum, len(weights))
		}
	})
}

func TestAmountString(t *testing.T) {
	cases := []struct {
		in   Amount
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{150, "1.50"},
		{123456, "1234.56"},
		{-95, "-0.95"},
	}
	for _, tc := range cases {
		if got := tc.in.String(); got != tc.want {
			t.Errorf("Amount(%d).String() = %q, want %q", tc.in, got, tc.want)
		}
	}
}
