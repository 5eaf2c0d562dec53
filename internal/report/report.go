package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"leaps-backtester/internal/backtest"
)

// PrintSummary writes the final-results block for one completed run.
func PrintSummary(w io.Writer, res *backtest.Result) {
	bold := color.New(color.Bold)

	fmt.Fprintln(w)
	bold.Fprintln(w, strings.Repeat("=", 40))
	bold.Fprintln(w, "FINAL RESULTS")
	bold.Fprintln(w, strings.Repeat("=", 40))

	fmt.Fprintf(w, "Start Date: %s\n", res.StartDate)
	fmt.Fprintf(w, "End Date:   %s\n", res.EndDate)
	fmt.Fprintf(w, "Initial Capital: %s\n", FormatCurrency(res.InitialCapital))
	fmt.Fprintf(w, "Final Value:     %s\n", FormatCurrency(res.FinalValue))
	fmt.Fprintf(w, "Total Return:    %s\n", formatSignedPercent(res.TotalReturn))
	fmt.Fprintf(w, "CAGR:            %s\n", formatSignedPercent(res.CAGR))
	fmt.Fprintf(w, "Annual Vol:      %.2f%%\n", res.AnnualVolatility*100)
	fmt.Fprintf(w, "Max Drawdown:    %.2f%%\n", res.MaxDrawdown*100)
	fmt.Fprintf(w, "Sharpe Ratio:    %.2f\n", res.SharpeRatio)
	fmt.Fprintf(w, "Calmar Ratio:    %.2f\n", res.CalmarRatio)
	fmt.Fprintf(w, "Net Cost Basis:  %s (negative means principal fully recovered)\n",
		FormatCurrency(res.NetCostBasis))

	if res.BenchmarkReturn != nil {
		fmt.Fprintf(w, "Buy&Hold (entry-aligned): %s\n", formatSignedPercent(*res.BenchmarkReturn))
	} else {
		fmt.Fprintln(w, "Buy&Hold (entry-aligned): N/A")
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Final Positions:")
	if len(res.Positions) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for i, pos := range res.Positions {
		fmt.Fprintf(w, "  %d. %dx LEAPS K=%.2f, Delta=%.2f, Exp=%s, Val=%s\n",
			i+1, pos.Contracts, pos.Strike, pos.Delta, pos.ExpiryDate,
			FormatCurrency(pos.MarketValue))
	}
	fmt.Fprintf(w, "Cash: %s\n", FormatCurrency(res.FinalCash))
}

// PrintAnnualReturns writes the calendar-year strategy/benchmark table.
func PrintAnnualReturns(w io.Writer, rows []backtest.AnnualReturn) {
	if len(rows) == 0 {
		return
	}

	bold := color.New(color.Bold)

	fmt.Fprintln(w)
	bold.Fprintln(w, strings.Repeat("=", 40))
	bold.Fprintln(w, "ANNUAL RETURNS")
	bold.Fprintln(w, strings.Repeat("=", 40))
	fmt.Fprintf(w, "%-6s | %-10s | %-10s | %-10s\n", "Year", "Strategy", "Benchmark", "Diff")
	fmt.Fprintln(w, strings.Repeat("-", 46))

	for _, row := range rows {
		diff := row.Strategy - row.Benchmark
		fmt.Fprintf(w, "%-6d | %9.2f%% | %9.2f%% | %9.2f%%\n",
			row.Year, row.Strategy*100, row.Benchmark*100, diff*100)
	}
	fmt.Fprintln(w, strings.Repeat("=", 40))
}

// PrintEvents writes the strategy event log.
func PrintEvents(w io.Writer, res *backtest.Result) {
	if len(res.Events) == 0 {
		return
	}

	bold := color.New(color.Bold)

	fmt.Fprintln(w)
	bold.Fprintln(w, "Events:")
	for _, ev := range res.Events {
		fmt.Fprintf(w, "  %s  %s (value %s, cash %s)\n",
			ev.Date, ev.Message, FormatCurrency(ev.Value), FormatCurrency(ev.Cash))
	}
}

// FormatCurrency formats a dollar amount with thousands separators.
func FormatCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")
	intPart := parts[0]
	decPart := parts[1]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	result := "$" + strings.Join(groups, ",") + "." + decPart
	if negative {
		result = "-" + result
	}
	return result
}

// formatSignedPercent colors gains green and losses red.
func formatSignedPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	formatted := fmt.Sprintf("%s%.2f%%", sign, value*100)

	switch {
	case value > 0:
		return color.GreenString("%s", formatted)
	case value < 0:
		return color.RedString("%s", formatted)
	default:
		return formatted
	}
}
