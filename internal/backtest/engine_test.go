package backtest

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaps-backtester/internal/config"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/models"
	"leaps-backtester/internal/pricing"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Simulation.StartYear = 2020
	cfg.Simulation.EndYear = 2020
	return cfg
}

// seriesFromCloses builds a derived series from consecutive January 2020
// daily closes. The window never fills in these tests, so volatility stays
// at the configured default.
func seriesFromCloses(cfg *config.Config, closes ...float64) *marketdata.Series {
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{
			Date:  models.NewDate(2020, 1, i+1),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return marketdata.BuildSeries(bars, cfg.Simulation.VolWindow, cfg.Simulation.DefaultVolatility)
}

func TestRunEntersOnFirstDrop(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	res, err := engine.Run(seriesFromCloses(cfg, 100, 100.5, 98, 98.5))
	require.NoError(t, err)

	require.NotEmpty(t, res.Trades)
	entry := res.Trades[0]
	assert.Equal(t, models.ActionBuyOpen, entry.Action)
	assert.Equal(t, models.NewDate(2020, 1, 3), entry.Date)
	assert.Equal(t, 98.0, entry.UnderlyingClose)
	assert.Equal(t, 700, entry.DTE)

	// Contract count follows directly from the 60% allocation and the
	// priced premium at the searched strike.
	sigma := cfg.Simulation.DefaultVolatility * cfg.Simulation.IVMultiplier
	tYears := 700.0 / 365.0
	strike := pricing.FindStrikeForDelta(98, tYears, cfg.Simulation.RiskFreeRate, sigma, 0.80)
	price := pricing.CallPrice(98, strike, tYears, cfg.Simulation.RiskFreeRate, sigma)
	wantContracts := int(cfg.Simulation.InitialCapital * 0.60 / (price * ContractMultiplier))
	assert.Equal(t, wantContracts, entry.Contracts)
}

func TestRunNeverEntersWithoutDrop(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	res, err := engine.Run(seriesFromCloses(cfg, 100, 101, 102, 103))
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.Len(t, res.Daily, 4)
	assert.Nil(t, res.BenchmarkFinalValue)
	for _, rec := range res.Daily {
		assert.Nil(t, rec.BenchmarkValue)
		assert.InDelta(t, rec.Cash, rec.PortfolioValue, 1e-9)
	}
}

func TestRunFirstBarNeverTriggersEntry(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	// A large drop into the first simulated bar has no defined return, so
	// nothing happens.
	res, err := engine.Run(seriesFromCloses(cfg, 80, 80.5))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
}

func TestRunSnapshotsEveryDayIncludingPreEntry(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	res, err := engine.Run(seriesFromCloses(cfg, 100, 101, 98, 99))
	require.NoError(t, err)

	require.Len(t, res.Daily, 4)
	assert.Nil(t, res.Daily[0].BenchmarkValue)
	assert.Nil(t, res.Daily[1].BenchmarkValue)
	require.NotNil(t, res.Daily[2].BenchmarkValue)

	// Benchmark shares are initial capital over the entry close, so the
	// entry-day benchmark value equals initial capital.
	assert.InDelta(t, cfg.Simulation.InitialCapital, *res.Daily[2].BenchmarkValue, 1e-6)
	assert.Equal(t, 98.0, *res.Daily[2].BenchmarkClose)
}

func TestRunRollsUpWhenDeltaDeepens(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	// Entry at 98, then a violent rally pushes the lot's delta past the
	// 0.90 trigger.
	res, err := engine.Run(seriesFromCloses(cfg, 100, 100.5, 98, 250))
	require.NoError(t, err)

	var sell, buy *models.TradeRecord
	for i := range res.Trades {
		switch res.Trades[i].Action {
		case models.ActionSellRollUp:
			sell = &res.Trades[i]
		case models.ActionBuyRollUp:
			buy = &res.Trades[i]
		}
	}
	require.NotNil(t, sell)
	require.NotNil(t, buy)

	assert.Equal(t, "delta>0.9", sell.Reason)
	assert.Equal(t, "target_delta=0.7", buy.Reason)
	assert.Equal(t, sell.Contracts, buy.Contracts)
	assert.Equal(t, 650, buy.DTE)
	assert.Greater(t, buy.Strike, sell.Strike)
}

func TestRunReentryAfterLiquidation(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())
	pf := NewPortfolio(cfg.Simulation.InitialCapital, zerolog.Nop())

	// With no open lots and a triggering drop, the flat re-entry sizes off
	// current cash.
	pt := marketdata.Point{
		Bar:        models.Bar{Date: models.NewDate(2020, 2, 1), Close: 95},
		Return:     -0.02,
		Volatility: 0.20,
	}
	require.True(t, engine.entryTriggered(pt))

	allocation := pf.Cash() * cfg.Strategy.Entry.Allocation
	assert.Greater(t, allocation, cfg.Strategy.Entry.ReentryMinAllocation)
}

func TestSettleExpiriesRemovesExpiredLots(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())
	pf := NewPortfolio(100000, zerolog.Nop())

	pos := pf.BuyOption(models.NewDate(2020, 1, 2), 100, 0.0285, 0.228, 0.80, 30, 60000, false)
	require.NotNil(t, pos)

	past := models.NewDate(2020, 2, 5)
	engine.settleExpiries(pf, past, 120, 0.0285, 0.228)

	assert.Empty(t, pf.Positions())
	last := pf.Trades()[len(pf.Trades())-1]
	assert.Equal(t, models.ActionExpired, last.Action)
}

func TestEvaluateBearAddBlockedByLowCashRatio(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())
	pf := NewPortfolio(100000, zerolog.Nop())

	// A cheap low-delta lot soaks up nearly all the cash, so the delta
	// trigger fires while the cash ratio sits below the floor at
	// evaluation time.
	pos := pf.BuyOption(models.NewDate(2020, 1, 2), 100, 0.0285, 0.228, 0.30, 700, 95000, false)
	require.NotNil(t, pos)
	require.Less(t, pos.CurrentDelta, cfg.Strategy.BearAdd.TriggerDelta)
	require.Less(t, pf.CashRatio(), cfg.Strategy.BearAdd.MinCashRatio)

	before := len(pf.Trades())
	engine.evaluateBearAdd(pf, models.NewDate(2020, 1, 10), 100, 0.0285, 0.228)
	assert.Len(t, pf.Trades(), before)
	_, marked := pf.LastBearAdd()
	assert.False(t, marked)
}

func TestEvaluateBearAddRespectsCooldown(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())
	pf := NewPortfolio(1000000, zerolog.Nop())

	pos := pf.BuyOption(models.NewDate(2020, 1, 2), 100, 0.0285, 0.228, 0.80, 700, 100000, false)
	require.NotNil(t, pos)
	pos.Revalue(models.NewDate(2020, 1, 10), 40, 0.0285, 0.228)
	require.Less(t, pos.CurrentDelta, cfg.Strategy.BearAdd.TriggerDelta)

	date := models.NewDate(2020, 1, 10)
	engine.evaluateBearAdd(pf, date, 40, 0.0285, 0.228)
	first := len(pf.Trades())
	require.Greater(t, first, 1)

	// One day later is inside the cooldown window.
	engine.evaluateBearAdd(pf, date.AddDays(1), 40, 0.0285, 0.228)
	assert.Len(t, pf.Trades(), first)

	// Past the cooldown the add fires again.
	engine.evaluateBearAdd(pf, date.AddDays(cfg.Strategy.BearAdd.CooldownDays), 40, 0.0285, 0.228)
	assert.Greater(t, len(pf.Trades()), first)
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := testConfig(t)

	closes := []float64{100, 100.5, 98, 97, 99, 96.5, 101, 130, 128, 90, 91}

	first, err := NewEngine(cfg, zerolog.Nop()).Run(seriesFromCloses(cfg, closes...))
	require.NoError(t, err)
	second, err := NewEngine(cfg, zerolog.Nop()).Run(seriesFromCloses(cfg, closes...))
	require.NoError(t, err)

	assert.Equal(t, first.Trades, second.Trades)
	assert.Equal(t, first.Daily, second.Daily)
	assert.Equal(t, first.FinalValue, second.FinalValue)
}

func TestRunEmptyRangeFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Simulation.StartYear = 1990
	cfg.Simulation.EndYear = 1990
	engine := NewEngine(cfg, zerolog.Nop())

	_, err := engine.Run(seriesFromCloses(cfg, 100, 99))
	assert.Error(t, err)
}

func TestRunDailyValueEqualsCashPlusOptions(t *testing.T) {
	cfg := testConfig(t)
	engine := NewEngine(cfg, zerolog.Nop())

	res, err := engine.Run(seriesFromCloses(cfg, 100, 100.5, 98, 99, 102, 96, 97, 95))
	require.NoError(t, err)

	for _, rec := range res.Daily {
		assert.InDelta(t, rec.Cash+rec.OptionsValue, rec.PortfolioValue, 1e-9)
		assert.GreaterOrEqual(t, rec.Cash, 0.0)
	}
	for _, rec := range res.Trades {
		assert.GreaterOrEqual(t, rec.CashAfter, 0.0)
	}
}
