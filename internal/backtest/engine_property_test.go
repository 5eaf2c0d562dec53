package backtest

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"leaps-backtester/internal/config"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/models"
)

func propertyTestConfig() *config.Config {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}
	cfg.Simulation.StartYear = 2020
	cfg.Simulation.EndYear = 2021
	return cfg
}

// genWalkSeries produces a bounded random walk of daily closes starting at
// 100, long enough to exercise entries, rolls and adds.
func genWalkSeries(cfg *config.Config) gopter.Gen {
	return gen.SliceOfN(250, gen.Float64Range(-0.08, 0.08)).Map(func(steps []float64) *marketdata.Series {
		bars := make([]models.Bar, len(steps))
		price := 100.0
		date := models.NewDate(2020, 1, 1)
		for i, step := range steps {
			price *= 1 + step
			if price < 1 {
				price = 1
			}
			bars[i] = models.Bar{Date: date, Close: price, Open: price, High: price, Low: price}
			date = date.AddDays(1)
		}
		return marketdata.BuildSeries(bars, cfg.Simulation.VolWindow, cfg.Simulation.DefaultVolatility)
	})
}

func TestProperty_RunLedgersStayConsistent(t *testing.T) {
	cfg := propertyTestConfig()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("cash never negative and snapshots balance", prop.ForAll(
		func(series *marketdata.Series) bool {
			res, err := NewEngine(cfg, zerolog.Nop()).Run(series)
			if err != nil {
				return false
			}

			for _, rec := range res.Daily {
				if rec.Cash < 0 || math.IsNaN(rec.PortfolioValue) {
					return false
				}
				if math.Abs(rec.Cash+rec.OptionsValue-rec.PortfolioValue) > 1e-6 {
					return false
				}
			}

			for _, rec := range res.Trades {
				if rec.CashAfter < 0 {
					return false
				}
				switch rec.Action {
				case models.ActionBuyOpen, models.ActionBuyAdd,
					models.ActionBuyRollUp, models.ActionBuyRollOut,
					models.ActionSellRollUp, models.ActionSellRollOut,
					models.ActionExpired:
				default:
					return false
				}
				if rec.Action.IsBuy() && rec.CashFlow > 0 {
					return false
				}
			}

			return true
		},
		genWalkSeries(cfg),
	))

	properties.Property("identical input yields identical ledgers", prop.ForAll(
		func(series *marketdata.Series) bool {
			first, err := NewEngine(cfg, zerolog.Nop()).Run(series)
			if err != nil {
				return false
			}
			second, err := NewEngine(cfg, zerolog.Nop()).Run(series)
			if err != nil {
				return false
			}

			if len(first.Trades) != len(second.Trades) {
				return false
			}
			for i := range first.Trades {
				if first.Trades[i] != second.Trades[i] {
					return false
				}
			}
			return first.FinalValue == second.FinalValue
		},
		genWalkSeries(cfg),
	))

	properties.TestingRun(t)
}
