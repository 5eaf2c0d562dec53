package cli

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"leaps-backtester/internal/backtest"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/report"
)

type sweepRow struct {
	IVMultiplier float64 `json:"iv_multiplier"`
	FinalValue   float64 `json:"final_value"`
	TotalReturn  float64 `json:"total_return"`
	CAGR         float64 `json:"cagr"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	CalmarRatio  float64 `json:"calmar_ratio"`
	Trades       int     `json:"trades"`
}

func newSweepCmd(app *App) *cobra.Command {
	var (
		dataPath    string
		multipliers []float64
		parallelism int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Sweep IV multipliers across independent runs",
		Long: `Runs the full backtest once per IV multiplier and prints a comparison
table. Runs execute concurrently; each run is independent and
deterministic, so the table is stable across invocations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := *app.Config
			if dataPath != "" {
				cfg.Data.CSVPath = dataPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(multipliers) == 0 {
				return fmt.Errorf("at least one --iv multiplier is required")
			}

			bars, err := marketdata.LoadBars(cfg.Data.CSVPath)
			if err != nil {
				return err
			}
			series := marketdata.BuildSeries(bars, cfg.Simulation.VolWindow, cfg.Simulation.DefaultVolatility)

			rows := make([]sweepRow, len(multipliers))
			var mu sync.Mutex

			var g errgroup.Group
			g.SetLimit(parallelism)

			for i, mult := range multipliers {
				i, mult := i, mult
				g.Go(func() error {
					runCfg := cfg
					runCfg.Simulation.IVMultiplier = mult
					if err := runCfg.Validate(); err != nil {
						return fmt.Errorf("iv multiplier %g: %w", mult, err)
					}

					res, err := backtest.NewEngine(&runCfg, app.Logger).Run(series)
					if err != nil {
						return fmt.Errorf("iv multiplier %g: %w", mult, err)
					}

					mu.Lock()
					rows[i] = sweepRow{
						IVMultiplier: mult,
						FinalValue:   res.FinalValue,
						TotalReturn:  res.TotalReturn,
						CAGR:         res.CAGR,
						MaxDrawdown:  res.MaxDrawdown,
						SharpeRatio:  res.SharpeRatio,
						CalmarRatio:  res.CalmarRatio,
						Trades:       len(res.Trades),
					}
					mu.Unlock()
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			sort.Slice(rows, func(i, j int) bool { return rows[i].IVMultiplier < rows[j].IVMultiplier })

			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("IV Multiplier Sweep (%s, %d-%d)",
				cfg.Data.Symbol, cfg.Simulation.StartYear, cfg.Simulation.EndYear)
			table := NewTable(output, "IV Mult", "Final Value", "Return", "CAGR", "Max DD", "Sharpe", "Calmar", "Trades")
			for _, row := range rows {
				table.AddRow(
					fmt.Sprintf("%.3f", row.IVMultiplier),
					report.FormatCurrency(row.FinalValue),
					fmt.Sprintf("%.2f%%", row.TotalReturn*100),
					fmt.Sprintf("%.2f%%", row.CAGR*100),
					fmt.Sprintf("%.2f%%", row.MaxDrawdown*100),
					fmt.Sprintf("%.2f", row.SharpeRatio),
					fmt.Sprintf("%.2f", row.CalmarRatio),
					fmt.Sprintf("%d", row.Trades),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "price series CSV (overrides config)")
	cmd.Flags().Float64SliceVar(&multipliers, "iv", []float64{1.0, 1.14, 1.3}, "IV multipliers to sweep")
	cmd.Flags().IntVar(&parallelism, "parallel", runtime.NumCPU(), "maximum concurrent runs")

	return cmd
}
