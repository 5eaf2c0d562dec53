package backtest

import (
	"math"

	"leaps-backtester/internal/config"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/models"
)

// Result is the completed output of one simulation run: summary metrics,
// final holdings, the annual return comparison and the full ledgers.
type Result struct {
	StartDate models.Date
	EndDate   models.Date

	InitialCapital float64
	FinalValue     float64
	FinalCash      float64
	NetCostBasis   float64

	TotalReturn      float64
	CAGR             float64
	AnnualVolatility float64
	MaxDrawdown      float64
	SharpeRatio      float64
	CalmarRatio      float64

	// Benchmark fields are nil when the strategy never entered, since the
	// buy-and-hold reference is aligned to the entry date.
	BenchmarkFinalValue *float64
	BenchmarkReturn     *float64

	Positions     []PositionSummary
	AnnualReturns []AnnualReturn

	Trades []models.TradeRecord
	Daily  []models.DailyRecord
	Events []models.Event
}

// PositionSummary describes one lot still open at the end of the run.
type PositionSummary struct {
	Contracts   int
	Strike      float64
	ExpiryDate  models.Date
	Delta       float64
	MarketValue float64
}

// AnnualReturn is one row of the calendar-year strategy/benchmark
// comparison. Benchmark is 0 for years without benchmark data.
type AnnualReturn struct {
	Year      int
	Strategy  float64
	Benchmark float64
}

func buildResult(cfg *config.Config, pf *Portfolio, series *marketdata.Series) *Result {
	res := &Result{
		StartDate:      series.First().Bar.Date,
		EndDate:        series.Last().Bar.Date,
		InitialCapital: pf.InitialCapital(),
		FinalValue:     pf.TotalValue(),
		FinalCash:      pf.Cash(),
		NetCostBasis:   pf.NetCostBasis(),
		Trades:         pf.Trades(),
		Daily:          pf.Daily(),
		Events:         pf.Events(),
	}

	res.TotalReturn = (res.FinalValue - res.InitialCapital) / res.InitialCapital

	years := float64(res.StartDate.DaysUntil(res.EndDate)) / 365.25
	if years > 0 && res.FinalValue > 0 {
		res.CAGR = math.Pow(res.FinalValue/res.InitialCapital, 1/years) - 1
	}

	computeRiskMetrics(res, cfg.Simulation.RiskFreeRate)

	if pf.HasBenchmark() {
		final := pf.BenchmarkShares() * series.Last().Bar.Close
		ret := (final - res.InitialCapital) / res.InitialCapital
		res.BenchmarkFinalValue = &final
		res.BenchmarkReturn = &ret
	}

	for _, pos := range pf.Positions() {
		res.Positions = append(res.Positions, PositionSummary{
			Contracts:   pos.Contracts,
			Strike:      pos.Strike,
			ExpiryDate:  pos.ExpiryDate,
			Delta:       pos.CurrentDelta,
			MarketValue: pos.MarketValue(),
		})
	}

	res.AnnualReturns = annualReturns(pf.Daily())

	return res
}

// computeRiskMetrics derives volatility, drawdown and risk-adjusted ratios
// from the daily value series. The first day's return is treated as zero.
func computeRiskMetrics(res *Result, riskFreeRate float64) {
	daily := res.Daily
	if len(daily) < 2 {
		return
	}

	returns := make([]float64, len(daily))
	for i := 1; i < len(daily); i++ {
		if daily[i-1].PortfolioValue != 0 {
			returns[i] = daily[i].PortfolioValue/daily[i-1].PortfolioValue - 1
		}
	}

	std := sampleStd(returns)
	res.AnnualVolatility = std * math.Sqrt(marketdata.TradingDaysPerYear)

	// Max drawdown of the cumulative return curve.
	cumulative := 1.0
	peak := 1.0
	for _, r := range returns {
		cumulative *= 1 + r
		if cumulative > peak {
			peak = cumulative
		}
		if dd := (cumulative - peak) / peak; dd < res.MaxDrawdown {
			res.MaxDrawdown = dd
		}
	}

	if std > 0 {
		dailyRF := riskFreeRate / marketdata.TradingDaysPerYear
		var meanExcess float64
		for _, r := range returns {
			meanExcess += r - dailyRF
		}
		meanExcess /= float64(len(returns))
		res.SharpeRatio = math.Sqrt(marketdata.TradingDaysPerYear) * meanExcess / std
	}

	if res.MaxDrawdown != 0 {
		res.CalmarRatio = res.CAGR / math.Abs(res.MaxDrawdown)
	}
}

// annualReturns groups the daily ledger by calendar year. Each year's start
// value is the previous year's closing value when one exists, so returns
// chain across year boundaries without gaps.
func annualReturns(daily []models.DailyRecord) []AnnualReturn {
	if len(daily) == 0 {
		return nil
	}

	type yearSpan struct {
		first, last models.DailyRecord
	}
	spans := make(map[int]*yearSpan)
	var years []int
	for _, rec := range daily {
		y := rec.Date.Year()
		span, ok := spans[y]
		if !ok {
			spans[y] = &yearSpan{first: rec, last: rec}
			years = append(years, y)
			continue
		}
		span.last = rec
	}

	var out []AnnualReturn
	for _, y := range years {
		span := spans[y]

		startVal := span.first.PortfolioValue
		var benchStart *float64
		if prev, ok := spans[y-1]; ok {
			startVal = prev.last.PortfolioValue
			if prev.last.BenchmarkValue != nil {
				benchStart = prev.last.BenchmarkValue
			}
		}
		if benchStart == nil {
			benchStart = span.first.BenchmarkValue
		}

		row := AnnualReturn{Year: y}
		if startVal != 0 {
			row.Strategy = (span.last.PortfolioValue - startVal) / startVal
		}
		if benchStart != nil && span.last.BenchmarkValue != nil && *benchStart != 0 {
			row.Benchmark = (*span.last.BenchmarkValue - *benchStart) / *benchStart
		}
		out = append(out, row)
	}

	return out
}

func sampleStd(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n - 1)

	return math.Sqrt(variance)
}
