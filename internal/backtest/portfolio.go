package backtest

import (
	"fmt"

	"github.com/rs/zerolog"

	"leaps-backtester/internal/logging"
	"leaps-backtester/internal/models"
	"leaps-backtester/internal/pricing"
)

// Portfolio aggregates cash, open option lots and the append-only trade,
// daily and event logs of one simulation run. Cash and positions are only
// mutated through the Portfolio's own buy/sell/settle operations, and every
// cash-affecting operation appends its ledger record atomically so the logs
// reflect post-operation state.
type Portfolio struct {
	cash           float64
	positions      []*Position
	initialCapital float64

	// netCostBasis is a global drift ledger: cumulative premium paid
	// minus premium received across every buy and sell, not a per-lot
	// cost. Negative means principal has been fully recovered.
	netCostBasis float64

	lastBearAdd     *models.Date
	benchmarkSet    bool
	benchShares     float64
	benchEntryClose float64

	trades []models.TradeRecord
	daily  []models.DailyRecord
	events []models.Event

	logger zerolog.Logger
}

// NewPortfolio creates a portfolio with the given starting capital.
func NewPortfolio(capital float64, logger zerolog.Logger) *Portfolio {
	return &Portfolio{
		cash:           capital,
		initialCapital: capital,
		logger:         logger,
	}
}

// Cash returns the current cash balance.
func (pf *Portfolio) Cash() float64 { return pf.cash }

// InitialCapital returns the starting capital.
func (pf *Portfolio) InitialCapital() float64 { return pf.initialCapital }

// NetCostBasis returns the running net cost basis.
func (pf *Portfolio) NetCostBasis() float64 { return pf.netCostBasis }

// Positions returns the live position list. Callers must not mutate it;
// use SnapshotPositions when iterating across mutations.
func (pf *Portfolio) Positions() []*Position { return pf.positions }

// SnapshotPositions returns a copy of the position list so per-position
// rules can iterate while the live collection is mutated underneath.
func (pf *Portfolio) SnapshotPositions() []*Position {
	snapshot := make([]*Position, len(pf.positions))
	copy(snapshot, pf.positions)
	return snapshot
}

// Holds reports whether the lot is still part of the portfolio.
func (pf *Portfolio) Holds(pos *Position) bool {
	for _, p := range pf.positions {
		if p == pos {
			return true
		}
	}
	return false
}

// OptionsValue returns the aggregate market value of all open lots.
func (pf *Portfolio) OptionsValue() float64 {
	var total float64
	for _, p := range pf.positions {
		total += p.MarketValue()
	}
	return total
}

// TotalContracts returns the aggregate contract count of all open lots.
func (pf *Portfolio) TotalContracts() int {
	var total int
	for _, p := range pf.positions {
		total += p.Contracts
	}
	return total
}

// TotalValue returns cash plus the market value of all open lots.
func (pf *Portfolio) TotalValue() float64 {
	return pf.cash + pf.OptionsValue()
}

// CashRatio returns cash as a fraction of total value, or 0 when the
// portfolio is worthless.
func (pf *Portfolio) CashRatio() float64 {
	total := pf.TotalValue()
	if total == 0 {
		return 0
	}
	return pf.cash / total
}

// AccrueInterest applies one day of simple interest to positive cash.
func (pf *Portfolio) AccrueInterest(annualRate float64) {
	interest := pf.cash * (annualRate / 365.0)
	if interest > 0 {
		pf.cash += interest
	}
}

// SetBenchmark records the entry-aligned buy-and-hold reference.
func (pf *Portfolio) SetBenchmark(shares, entryClose float64) {
	pf.benchmarkSet = true
	pf.benchShares = shares
	pf.benchEntryClose = entryClose
}

// HasBenchmark reports whether the benchmark reference has been recorded.
func (pf *Portfolio) HasBenchmark() bool { return pf.benchmarkSet }

// BenchmarkShares returns the benchmark share count.
func (pf *Portfolio) BenchmarkShares() float64 { return pf.benchShares }

// BenchmarkEntryClose returns the close the benchmark entered at.
func (pf *Portfolio) BenchmarkEntryClose() float64 { return pf.benchEntryClose }

// LastBearAdd returns the date of the last drawdown add, if any.
func (pf *Portfolio) LastBearAdd() (models.Date, bool) {
	if pf.lastBearAdd == nil {
		return models.Date{}, false
	}
	return *pf.lastBearAdd, true
}

// MarkBearAdd resets the drawdown-add cooldown to the given date.
func (pf *Portfolio) MarkBearAdd(date models.Date) {
	d := date
	pf.lastBearAdd = &d
}

// Trades returns the trade ledger.
func (pf *Portfolio) Trades() []models.TradeRecord { return pf.trades }

// Daily returns the daily ledger.
func (pf *Portfolio) Daily() []models.DailyRecord { return pf.daily }

// Events returns the event log.
func (pf *Portfolio) Events() []models.Event { return pf.events }

// RecordDaily appends one daily snapshot.
func (pf *Portfolio) RecordDaily(rec models.DailyRecord) {
	pf.daily = append(pf.daily, rec)
}

// Eventf appends a human-readable event capturing current value and cash.
func (pf *Portfolio) Eventf(date models.Date, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	pf.events = append(pf.events, models.Event{
		Date:    date,
		Message: message,
		Value:   pf.TotalValue(),
		Cash:    pf.cash,
	})
	pf.logger.Info().Str("date", date.String()).Msg(message)
}

// BuyOption opens a new lot at the strike matching targetDelta, sizing the
// contract count from the allocation amount. When the allocation floors to
// zero contracts but cash covers one, exactly one contract is bought; when
// cash cannot cover even one, the buy degrades to a logged no-op. Returns
// the opened position, or nil when nothing was bought.
func (pf *Portfolio) BuyOption(date models.Date, spot, r, sigma, targetDelta float64, targetDTE int, allocation float64, isAdd bool) *Position {
	t := float64(targetDTE) / 365.0
	strike := pricing.FindStrikeForDelta(spot, t, r, sigma, targetDelta)
	price := pricing.CallPrice(spot, strike, t, r, sigma)

	if price <= 0 {
		logging.LogSkip(pf.logger, date, pf.cash, "option price <= 0")
		return nil
	}

	costPerContract := price * ContractMultiplier
	contracts := int(allocation / costPerContract)
	if contracts < 1 {
		// Allow slightly exceeding the allocation when cash permits.
		if pf.cash >= costPerContract {
			contracts = 1
		} else {
			logging.LogSkip(pf.logger, date, pf.cash,
				fmt.Sprintf("not enough cash for 1 contract (cost %.2f)", costPerContract))
			return nil
		}
	}

	totalCost := float64(contracts) * costPerContract
	pf.cash -= totalCost
	pf.netCostBasis += totalCost

	pos := OpenPosition(date, spot, strike, targetDTE, r, sigma, contracts)
	pf.positions = append(pf.positions, pos)

	action := models.ActionBuyOpen
	kind := "OPEN"
	if isAdd {
		action = models.ActionBuyAdd
		kind = "ADD"
	}
	pf.Eventf(date, "%s: bought %dx LEAPS (delta %.2f, dte %d, K=%.2f) @ %.2f, cost %.2f, cash %.2f",
		kind, contracts, targetDelta, targetDTE, strike, price, totalCost, pf.cash)

	pf.recordTrade(date, action, "", spot, sigma, r, contracts, strike,
		date.DaysUntil(pos.ExpiryDate), price, pos.CurrentDelta, -totalCost)

	return pos
}

// BuyContracts opens a new lot with an exact contract count, used by the
// roll rules to preserve the size of the lot just sold. Returns false
// without mutating anything when cash cannot cover the full cost.
func (pf *Portfolio) BuyContracts(date models.Date, spot, r, sigma, targetDelta float64, targetDTE, contracts int, action models.Action, reason string) bool {
	t := float64(targetDTE) / 365.0
	strike := pricing.FindStrikeForDelta(spot, t, r, sigma, targetDelta)
	price := pricing.CallPrice(spot, strike, t, r, sigma)

	if price <= 0 {
		logging.LogSkip(pf.logger, date, pf.cash, "option price <= 0")
		return false
	}

	cost := price * ContractMultiplier * float64(contracts)
	if pf.cash < cost {
		return false
	}

	pf.cash -= cost
	pf.netCostBasis += cost

	pos := OpenPosition(date, spot, strike, targetDTE, r, sigma, contracts)
	pf.positions = append(pf.positions, pos)

	pf.Eventf(date, "%s: bought %dx LEAPS (delta %.2f, dte %d, K=%.2f) @ %.2f, cash %.2f",
		action, contracts, targetDelta, targetDTE, strike, price, pf.cash)

	pf.recordTrade(date, action, reason, spot, sigma, r, contracts, strike,
		date.DaysUntil(pos.ExpiryDate), price, pos.CurrentDelta, -cost)

	return true
}

// SellPosition sells the lot at its current market value and removes it.
// The action and reason tag the resulting ledger record.
func (pf *Portfolio) SellPosition(date models.Date, pos *Position, spot, r, sigma float64, action models.Action, reason string) {
	dte := pos.DaysToExpiry(date)
	proceeds := pos.MarketValue()

	pf.cash += proceeds
	pf.netCostBasis -= proceeds
	pf.removePosition(pos)

	pf.Eventf(date, "%s: sold %dx LEAPS (dte %d, K=%.2f) @ %.2f, proceeds %.2f, cash %.2f",
		action, pos.Contracts, dte, pos.Strike, pos.CurrentPremium, proceeds, pf.cash)

	pf.recordTrade(date, action, reason, spot, sigma, r, pos.Contracts, pos.Strike,
		dte, pos.CurrentPremium, pos.CurrentDelta, proceeds)
}

// SettleExpired removes a lot that has reached expiry, crediting its
// intrinsic value to cash. Settlement is automatic, with no counterparty
// sale, so it never goes through SellPosition.
func (pf *Portfolio) SettleExpired(date models.Date, pos *Position, spot, r, sigma float64) {
	value := pos.MarketValue()

	pf.cash += value
	pf.netCostBasis -= value
	pf.removePosition(pos)

	pf.Eventf(date, "EXPIRED: settled %dx LEAPS (K=%.2f) at expiry, proceeds %.2f, cash %.2f",
		pos.Contracts, pos.Strike, value, pf.cash)

	pf.recordTrade(date, models.ActionExpired, "dte<=0", spot, sigma, r, pos.Contracts, pos.Strike,
		pos.DaysToExpiry(date), pos.CurrentPremium, pos.CurrentDelta, value)
}

func (pf *Portfolio) removePosition(pos *Position) {
	for i, p := range pf.positions {
		if p == pos {
			pf.positions = append(pf.positions[:i], pf.positions[i+1:]...)
			return
		}
	}
}

func (pf *Portfolio) recordTrade(date models.Date, action models.Action, reason string, spot, sigma, r float64, contracts int, strike float64, dte int, price, delta, cashFlow float64) {
	rec := models.TradeRecord{
		Date:              date,
		Action:            action,
		Reason:            reason,
		UnderlyingClose:   spot,
		Sigma:             sigma,
		RiskFreeRate:      r,
		Contracts:         contracts,
		Strike:            strike,
		DTE:               dte,
		OptionPrice:       price,
		OptionDelta:       delta,
		CashFlow:          cashFlow,
		CashAfter:         pf.cash,
		TotalValueAfter:   pf.TotalValue(),
		CashRatioAfter:    pf.CashRatio(),
		NetCostBasisAfter: pf.netCostBasis,
	}
	pf.trades = append(pf.trades, rec)
	logging.LogTrade(pf.logger, rec)
}
