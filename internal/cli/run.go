package cli

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"leaps-backtester/internal/backtest"
	"leaps-backtester/internal/logging"
	"leaps-backtester/internal/marketdata"
	"leaps-backtester/internal/report"
	"leaps-backtester/internal/store"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		dataPath  string
		startYear int
		endYear   int
		label     string
		save      bool
		noCSV     bool
		showCurve bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest",
		Long: `Runs the LEAPS rolling strategy over the configured price series and
prints the final report. Trade and daily ledgers are written to the
configured CSV paths unless --no-csv is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := *app.Config
			if dataPath != "" {
				cfg.Data.CSVPath = dataPath
			}
			if startYear != 0 {
				cfg.Simulation.StartYear = startYear
			}
			if endYear != 0 {
				cfg.Simulation.EndYear = endYear
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := logging.WithSymbol(app.Logger, cfg.Data.Symbol)

			bars, err := marketdata.LoadBars(cfg.Data.CSVPath)
			if err != nil {
				return err
			}
			logger.Info().Int("bars", len(bars)).Str("path", cfg.Data.CSVPath).Msg("Loaded price series")

			series := marketdata.BuildSeries(bars, cfg.Simulation.VolWindow, cfg.Simulation.DefaultVolatility)

			engine := backtest.NewEngine(&cfg, logger)
			res, err := engine.Run(series)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(res)
			}

			report.PrintSummary(output.Writer(), res)
			report.PrintAnnualReturns(output.Writer(), res.AnnualReturns)
			if showCurve {
				output.Println()
				output.Printf("%s", report.EquityCurveASCII(res.Daily, 60, 10))
			}

			if !noCSV {
				if err := report.WriteTradesCSV(cfg.Output.TradesCSV, res.Trades); err != nil {
					return err
				}
				if err := report.WriteDailyCSV(cfg.Output.DailyCSV, res.Daily); err != nil {
					return err
				}
				output.Dim("Ledgers written: %s, %s", cfg.Output.TradesCSV, cfg.Output.DailyCSV)
			}

			if save {
				id, err := saveRun(cmd.Context(), app, cfg.Data.Symbol, label, res)
				if err != nil {
					return err
				}
				output.Success("✓ Run saved as %s", id)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", "price series CSV (overrides config)")
	cmd.Flags().IntVar(&startYear, "start", 0, "first simulated year (overrides config)")
	cmd.Flags().IntVar(&endYear, "end", 0, "last simulated year (overrides config)")
	cmd.Flags().StringVar(&label, "label", "", "label for the stored run")
	cmd.Flags().BoolVar(&save, "save", false, "persist the run to the database")
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "skip writing CSV ledgers")
	cmd.Flags().BoolVar(&showCurve, "curve", false, "print ASCII equity curve")

	return cmd
}

func saveRun(ctx context.Context, app *App, symbol, label string, res *backtest.Result) (string, error) {
	if app.Store == nil {
		return "", errors.New("no run store configured; set output.db_path or LEAPS_DB_PATH")
	}

	run := &store.Run{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Label:     label,
		CreatedAt: time.Now().UTC(),
		Result:    res,
	}
	if err := app.Store.SaveRun(ctx, run); err != nil {
		return "", err
	}
	return run.ID, nil
}
