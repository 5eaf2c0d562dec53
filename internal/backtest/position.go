// Package backtest implements the option position lifecycle, the portfolio
// primitives and the daily simulation driver.
package backtest

import (
	"math"

	"leaps-backtester/internal/models"
	"leaps-backtester/internal/pricing"
)

// ContractMultiplier is the number of underlying units per option contract.
const ContractMultiplier = 100

// Position is one open call option lot. It is owned exclusively by the
// Portfolio holding it and never holds cash itself.
type Position struct {
	EntryDate      models.Date
	Strike         float64
	ExpiryDate     models.Date
	Contracts      int
	EntryPremium   float64
	CurrentPremium float64
	CurrentDelta   float64
}

// OpenPosition prices and opens a new lot of contracts contracts at the
// given strike, expiring dteDays calendar days after entryDate.
func OpenPosition(entryDate models.Date, spot, strike float64, dteDays int, r, sigma float64, contracts int) *Position {
	t := float64(dteDays) / 365.0
	premium := pricing.CallPrice(spot, strike, t, r, sigma)

	return &Position{
		EntryDate:      entryDate,
		Strike:         strike,
		ExpiryDate:     entryDate.AddDays(dteDays),
		Contracts:      contracts,
		EntryPremium:   premium,
		CurrentPremium: premium,
		CurrentDelta:   pricing.CallDelta(spot, strike, t, r, sigma),
	}
}

// Revalue marks the lot to market for the current date and returns the
// remaining days to expiry so the caller can detect expiry. At or past
// expiry the premium snaps to intrinsic value and delta to the exercise
// step function.
func (p *Position) Revalue(current models.Date, spot, r, sigma float64) int {
	dte := current.DaysUntil(p.ExpiryDate)
	t := float64(dte) / 365.0

	if dte <= 0 {
		p.CurrentPremium = math.Max(0, spot-p.Strike)
		if spot > p.Strike {
			p.CurrentDelta = 1.0
		} else {
			p.CurrentDelta = 0.0
		}
	} else {
		p.CurrentPremium = pricing.CallPrice(spot, p.Strike, t, r, sigma)
		p.CurrentDelta = pricing.CallDelta(spot, p.Strike, t, r, sigma)
	}

	return dte
}

// MarketValue returns the lot's current market value.
func (p *Position) MarketValue() float64 {
	return p.CurrentPremium * ContractMultiplier * float64(p.Contracts)
}

// DaysToExpiry returns the calendar days remaining until expiry.
func (p *Position) DaysToExpiry(current models.Date) int {
	return current.DaysUntil(p.ExpiryDate)
}
