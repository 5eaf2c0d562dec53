package backtest

import (
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"leaps-backtester/internal/config"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/models"
)

// Engine runs the daily simulation loop: it feeds price and volatility into
// the pricing model, ages and revalues every open lot, evaluates the
// entry/roll/expiry/add rules in fixed order and records one daily snapshot.
// Each run owns an independent Portfolio, so separate runs may execute
// concurrently; a single run is strictly sequential.
type Engine struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewEngine creates a simulation engine.
func NewEngine(cfg *config.Config, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger,
	}
}

// Run executes the simulation over the configured date range of the series
// and returns the completed result. The only fatal condition is an empty or
// out-of-range input series; everything else degrades to logged no-ops.
func (e *Engine) Run(series *marketdata.Series) (*Result, error) {
	sim := e.cfg.Simulation
	start := models.NewDate(sim.StartYear, time.January, 1)
	end := models.NewDate(sim.EndYear, time.December, 31)

	ranged, err := series.Slice(start, end)
	if err != nil {
		return nil, err
	}

	pf := NewPortfolio(sim.InitialCapital, e.logger)
	entered := false

	for _, pt := range ranged.Points {
		date := pt.Bar.Date
		spot := pt.Bar.Close
		sigma := math.Max(pt.Volatility*sim.IVMultiplier, sim.IVFloor)
		r := sim.RiskFreeRate

		pf.AccrueInterest(r)
		e.settleExpiries(pf, date, spot, r, sigma)

		switch {
		case !entered:
			if e.entryTriggered(pt) {
				pf.Eventf(date, "entry signal: %s dropped %.2f%%, initializing portfolio",
					e.cfg.Data.Symbol, pt.Return*100)
				pf.BuyOption(date, spot, r, sigma,
					e.cfg.Strategy.Entry.TargetDelta, e.cfg.Strategy.Entry.TargetDTE,
					sim.InitialCapital*e.cfg.Strategy.Entry.Allocation, false)
				pf.SetBenchmark(sim.InitialCapital/spot, spot)
				entered = true
			}

		case len(pf.Positions()) == 0:
			// Fully liquidated: wait for another drop before re-entering,
			// sized off current cash rather than initial capital.
			if e.entryTriggered(pt) {
				allocation := pf.Cash() * e.cfg.Strategy.Entry.Allocation
				if allocation > e.cfg.Strategy.Entry.ReentryMinAllocation {
					pf.BuyOption(date, spot, r, sigma,
						e.cfg.Strategy.Entry.TargetDelta, e.cfg.Strategy.Entry.TargetDTE,
						allocation, false)
				}
			}

		default:
			e.evaluateRolls(pf, date, spot, r, sigma)
			e.evaluateBearAdd(pf, date, spot, r, sigma)
		}

		e.snapshot(pf, date, spot)
	}

	return buildResult(e.cfg, pf, ranged), nil
}

// entryTriggered reports whether the day's return breaches the entry-drop
// threshold. The first bar of a range has no return (NaN) and never
// triggers.
func (e *Engine) entryTriggered(pt marketdata.Point) bool {
	return pt.Return <= e.cfg.Strategy.Entry.DropThreshold
}

// settleExpiries revalues every open lot and settles the ones at or past
// expiry, crediting intrinsic value directly to cash.
func (e *Engine) settleExpiries(pf *Portfolio, date models.Date, spot, r, sigma float64) {
	for _, pos := range pf.SnapshotPositions() {
		dte := pos.Revalue(date, spot, r, sigma)
		if dte <= 0 {
			pf.SettleExpired(date, pos, spot, r, sigma)
		}
	}
}

// evaluateRolls applies the per-position roll rules against a snapshot of
// the position list, so mutations never invalidate the iteration. Roll-up
// takes priority; a lot triggers at most one roll per day.
func (e *Engine) evaluateRolls(pf *Portfolio, date models.Date, spot, r, sigma float64) {
	rollUp := e.cfg.Strategy.RollUp
	rollOut := e.cfg.Strategy.RollOut

	for _, pos := range pf.SnapshotPositions() {
		if !pf.Holds(pos) {
			continue
		}

		switch {
		case pos.CurrentDelta > rollUp.TriggerDelta:
			// Profit taking: the deep lot is sold and replaced at a lower
			// delta and longer date, preserving the contract count so the
			// premium difference flows to cash as a credit.
			proceeds := pos.MarketValue()
			contracts := pos.Contracts
			pf.SellPosition(date, pos, spot, r, sigma, models.ActionSellRollUp,
				"delta>"+formatFloat(rollUp.TriggerDelta))

			if !pf.BuyContracts(date, spot, r, sigma, rollUp.TargetDelta, rollUp.TargetDTE,
				contracts, models.ActionBuyRollUp, "target_delta="+formatFloat(rollUp.TargetDelta)) {
				// Replacement unaffordable at full size: reinvest the sale
				// proceeds instead.
				pf.BuyOption(date, spot, r, sigma, rollUp.TargetDelta, rollUp.TargetDTE, proceeds, false)
			}

		case pos.DaysToExpiry(date) < rollOut.TriggerDTE:
			// Time decay: push the expiry out, preserving contract count
			// when cash allows.
			contracts := pos.Contracts
			pf.SellPosition(date, pos, spot, r, sigma, models.ActionSellRollOut,
				"dte<"+strconv.Itoa(rollOut.TriggerDTE))

			if !pf.BuyContracts(date, spot, r, sigma, rollOut.TargetDelta, rollOut.TargetDTE,
				contracts, models.ActionBuyRollOut, "target_dte="+strconv.Itoa(rollOut.TargetDTE)) {
				// Downsize: sale proceeds are already in cash, so spend a
				// safety-margined fraction of all available cash.
				pf.BuyOption(date, spot, r, sigma, rollOut.TargetDelta, rollOut.TargetDTE,
					pf.Cash()*rollOut.CashSafety, false)
			}
		}
	}
}

// evaluateBearAdd applies the drawdown-averaging rule once per day across
// the whole portfolio.
func (e *Engine) evaluateBearAdd(pf *Portfolio, date models.Date, spot, r, sigma float64) {
	add := e.cfg.Strategy.BearAdd

	anyLowDelta := false
	for _, pos := range pf.Positions() {
		if pos.CurrentDelta < add.TriggerDelta {
			anyLowDelta = true
			break
		}
	}
	if !anyLowDelta {
		return
	}

	if pf.CashRatio() <= add.MinCashRatio {
		return
	}

	if last, ok := pf.LastBearAdd(); ok && last.DaysUntil(date) < add.CooldownDays {
		return
	}

	var amount float64
	mode := "NORMAL"
	if pf.CashRatio() > add.HeavyThreshold {
		amount = pf.TotalValue() * add.HeavySize
		mode = "HEAVY"
	} else {
		amount = pf.TotalValue() * add.NormalSize
	}
	if amount > pf.Cash() {
		amount = pf.Cash()
	}
	if amount <= 0 {
		return
	}

	pf.Eventf(date, "BEAR ADD (%s): cash ratio %.2f%%, adding %.2f of LEAPS",
		mode, pf.CashRatio()*100, amount)
	pf.BuyOption(date, spot, r, sigma, add.TargetDelta, add.TargetDTE, amount, true)
	pf.MarkBearAdd(date)
}

// snapshot appends the day's post-action record. Benchmark fields stay nil
// until the strategy has entered.
func (e *Engine) snapshot(pf *Portfolio, date models.Date, spot float64) {
	rec := models.DailyRecord{
		Date:            date,
		UnderlyingClose: spot,
		PortfolioValue:  pf.TotalValue(),
		Cash:            pf.Cash(),
		CashRatio:       pf.CashRatio(),
		OptionsValue:    pf.OptionsValue(),
		TotalContracts:  pf.TotalContracts(),
		NetCostBasis:    pf.NetCostBasis(),
	}

	if pf.HasBenchmark() {
		value := pf.BenchmarkShares() * spot
		close := spot
		rec.BenchmarkValue = &value
		rec.BenchmarkClose = &close
	}

	pf.RecordDaily(rec)
}

// formatFloat renders a policy threshold the way it appears in reason tags,
// without trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
