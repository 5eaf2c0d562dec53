package pricing

import (
	"math"
	"testing"
)

func TestCallPriceATMPositive(t *testing.T) {
	price := CallPrice(100, 100, 30.0/365.0, 0.05, 0.20)
	if price <= 0 {
		t.Fatalf("expected ATM call price > 0, got %f", price)
	}
}

func TestCallPriceAtExpiryIsIntrinsic(t *testing.T) {
	cases := []struct {
		name string
		s, k float64
		want float64
	}{
		{"in the money", 120, 100, 20},
		{"at the money", 100, 100, 0},
		{"out of the money", 80, 100, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CallPrice(tc.s, tc.k, 0, 0.0285, 0.20)
			if got != tc.want {
				t.Fatalf("CallPrice(T=0) = %f, want %f", got, tc.want)
			}
		})
	}
}

func TestCallDeltaAtExpiryIsStepFunction(t *testing.T) {
	if d := CallDelta(120, 100, 0, 0.0285, 0.20); d != 1.0 {
		t.Fatalf("expected delta 1.0 above strike at expiry, got %f", d)
	}
	if d := CallDelta(80, 100, 0, 0.0285, 0.20); d != 0.0 {
		t.Fatalf("expected delta 0.0 below strike at expiry, got %f", d)
	}
	if d := CallDelta(100, 100, 0, 0.0285, 0.20); d != 0.0 {
		t.Fatalf("expected delta 0.0 at strike at expiry, got %f", d)
	}
}

func TestCallPriceZeroVolIsIntrinsic(t *testing.T) {
	if got := CallPrice(150, 100, 1.5, 0.0285, 0); got != 50 {
		t.Fatalf("CallPrice(sigma=0) = %f, want 50", got)
	}
}

func TestCallPriceNeverBelowIntrinsic(t *testing.T) {
	// With r >= 0 a European call is worth at least its intrinsic value.
	for _, s := range []float64{50, 90, 100, 110, 200} {
		price := CallPrice(s, 100, 2.0, 0.0285, 0.25)
		intrinsic := math.Max(0, s-100)
		if price < intrinsic-1e-9 {
			t.Fatalf("price %f below intrinsic %f at spot %f", price, intrinsic, s)
		}
	}
}

func TestFindStrikeForDeltaKnownPoint(t *testing.T) {
	// ATM-forward strike has delta a bit above 0.5; searching for that
	// delta should return a strike close to spot.
	s, tYears, r, sigma := 100.0, 700.0/365.0, 0.0285, 0.25
	atmDelta := CallDelta(s, s, tYears, r, sigma)

	k := FindStrikeForDelta(s, tYears, r, sigma, atmDelta)
	if math.Abs(k-s) > 1.0 {
		t.Fatalf("expected strike near spot for ATM delta, got %f", k)
	}
}
