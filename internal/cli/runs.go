package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"leaps-backtester/internal/report"
	"leaps-backtester/internal/store"
)

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse stored backtest runs",
		Long:  "List, inspect and delete runs persisted with 'leaps run --save'.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.Store == nil {
				return errors.New("no run store configured; set output.db_path or LEAPS_DB_PATH")
			}
			return nil
		},
	}

	cmd.AddCommand(newRunsListCmd(app))
	cmd.AddCommand(newRunsShowCmd(app))
	cmd.AddCommand(newRunsDeleteCmd(app))

	return cmd
}

func newRunsListCmd(app *App) *cobra.Command {
	var (
		symbol string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			runs, err := app.Store.ListRuns(cmd.Context(), store.RunFilter{
				Symbol: symbol,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Println("No stored runs.")
				return nil
			}

			table := NewTable(output, "ID", "Symbol", "Label", "Range", "Final Value", "Return", "CAGR", "Max DD")
			for _, run := range runs {
				table.AddRow(
					run.ID[:8],
					run.Symbol,
					run.Label,
					fmt.Sprintf("%s..%s", run.StartDate, run.EndDate),
					report.FormatCurrency(run.FinalValue),
					fmt.Sprintf("%.2f%%", run.TotalReturn*100),
					fmt.Sprintf("%.2f%%", run.CAGR*100),
					fmt.Sprintf("%.2f%%", run.MaxDrawdown*100),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "filter by underlying symbol")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")

	return cmd
}

func newRunsShowCmd(app *App) *cobra.Command {
	var showCurve bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a stored run's report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			run, err := resolveRun(cmd, app, args[0])
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(run)
			}

			output.Bold("Run %s (%s, %s)", run.ID, run.Symbol, run.CreatedAt.Format("2006-01-02 15:04"))
			report.PrintSummary(output.Writer(), run.Result)
			report.PrintAnnualReturns(output.Writer(), run.Result.AnnualReturns)
			if showCurve {
				output.Println()
				output.Printf("%s", report.EquityCurveASCII(run.Result.Daily, 60, 10))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCurve, "curve", false, "print ASCII equity curve")

	return cmd
}

func newRunsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			run, err := resolveRun(cmd, app, args[0])
			if err != nil {
				return err
			}
			if err := app.Store.DeleteRun(cmd.Context(), run.ID); err != nil {
				return err
			}
			output.Success("✓ Run %s deleted", run.ID)
			return nil
		},
	}
}

// resolveRun loads a run by full or unambiguous short ID prefix.
func resolveRun(cmd *cobra.Command, app *App, id string) (*store.Run, error) {
	run, err := app.Store.GetRun(cmd.Context(), id)
	if err == nil {
		return run, nil
	}

	summaries, listErr := app.Store.ListRuns(cmd.Context(), store.RunFilter{})
	if listErr != nil {
		return nil, err
	}

	var match string
	for _, sum := range summaries {
		if len(id) > 0 && len(sum.ID) >= len(id) && sum.ID[:len(id)] == id {
			if match != "" {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = sum.ID
		}
	}
	if match == "" {
		return nil, err
	}
	return app.Store.GetRun(cmd.Context(), match)
}
