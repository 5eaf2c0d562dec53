// Package pricing implements closed-form European call option pricing.
//
// All functions are pure: given identical inputs they return identical
// outputs and hold no state, so they are safe to call from concurrent runs.
package pricing

import "math"

// Strike search bounds and budget for FindStrikeForDelta. Call delta is
// strictly decreasing in strike, so bisection over this bracket converges.
const (
	strikeSearchLow   = 0.1
	strikeSearchHigh  = 3.0
	strikeSearchIters = 50
	deltaTolerance    = 0.001
)

// normCDF is the cumulative standard normal distribution.
func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// D1 returns the Black-Scholes d1 term, or 0 for degenerate inputs.
func D1(s, k, t, r, sigma float64) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	return (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// D2 returns the Black-Scholes d2 term, or 0 for degenerate inputs.
func D2(s, k, t, r, sigma float64) float64 {
	if t <= 0 || sigma <= 0 {
		return 0
	}
	return D1(s, k, t, r, sigma) - sigma*math.Sqrt(t)
}

// CallPrice returns the European call price for spot s, strike k,
// time-to-expiry t in years, risk-free rate r and volatility sigma.
// At t<=0 or sigma<=0 the price collapses to intrinsic value.
func CallPrice(s, k, t, r, sigma float64) float64 {
	if t <= 0 || sigma <= 0 {
		return math.Max(0, s-k)
	}
	d1 := D1(s, k, t, r, sigma)
	d2 := D2(s, k, t, r, sigma)
	return s*normCDF(d1) - k*math.Exp(-r*t)*normCDF(d2)
}

// CallDelta returns the call delta. At t<=0 it is the exercise step
// function: 1 when the spot is above the strike, 0 otherwise.
func CallDelta(s, k, t, r, sigma float64) float64 {
	if t <= 0 {
		if s > k {
			return 1.0
		}
		return 0.0
	}
	return normCDF(D1(s, k, t, r, sigma))
}

// FindStrikeForDelta returns a strike whose call delta approximates
// targetDelta, searching [0.1*s, 3.0*s] by bisection. Deep in-the-money
// strikes push delta toward 1 and deep out-of-the-money strikes toward 0,
// so when the midpoint delta is above target the strike must rise and
// vice versa. The search stops after a fixed iteration budget or once the
// delta is within tolerance.
func FindStrikeForDelta(s, t, r, sigma, targetDelta float64) float64 {
	lowK := s * strikeSearchLow
	highK := s * strikeSearchHigh

	for i := 0; i < strikeSearchIters; i++ {
		midK := (lowK + highK) / 2
		delta := CallDelta(s, midK, t, r, sigma)

		if math.Abs(delta-targetDelta) < deltaTolerance {
			return midK
		}

		if delta > targetDelta {
			lowK = midK
		} else {
			highK = midK
		}
	}

	return (lowK + highK) / 2
}
