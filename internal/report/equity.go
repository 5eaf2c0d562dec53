package report

import (
	"fmt"
	"strings"

	"leaps-backtester/internal/models"
)

// EquityCurveASCII renders the daily portfolio value series as a terminal
// chart of the given dimensions.
func EquityCurveASCII(daily []models.DailyRecord, width, height int) string {
	if len(daily) < 2 {
		return "Insufficient data for equity curve\n"
	}

	minValue := daily[0].PortfolioValue
	maxValue := daily[0].PortfolioValue
	for _, rec := range daily {
		if rec.PortfolioValue < minValue {
			minValue = rec.PortfolioValue
		}
		if rec.PortfolioValue > maxValue {
			maxValue = rec.PortfolioValue
		}
	}

	valueRange := maxValue - minValue
	if valueRange == 0 {
		valueRange = 1
	}
	minValue -= valueRange * 0.05
	maxValue += valueRange * 0.05
	valueRange = maxValue - minValue

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	step := len(daily) / width
	if step == 0 {
		step = 1
	}

	for x := 0; x < width && x*step < len(daily); x++ {
		rec := daily[x*step]
		y := int((rec.PortfolioValue - minValue) / valueRange * float64(height-1))
		if y >= 0 && y < height {
			grid[height-1-y][x] = '█'
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Equity Curve (%s - %s)\n",
		FormatCurrency(minValue), FormatCurrency(maxValue)))
	sb.WriteString(strings.Repeat("─", width+2) + "\n")

	for _, row := range grid {
		sb.WriteRune('│')
		sb.WriteString(string(row))
		sb.WriteRune('│')
		sb.WriteRune('\n')
	}

	sb.WriteString(strings.Repeat("─", width+2) + "\n")

	return sb.String()
}
