// Package report renders simulation results: CSV ledgers, the console
// summary and the ASCII equity curve.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"leaps-backtester/internal/models"
)

// WriteTradesCSV writes the trade ledger to path, creating parent
// directories as needed.
func WriteTradesCSV(path string, trades []models.TradeRecord) error {
	return writeCSV(path, &trades)
}

// WriteDailyCSV writes the daily ledger to path, creating parent
// directories as needed.
func WriteDailyCSV(path string, daily []models.DailyRecord) error {
	return writeCSV(path, &daily)
}

func writeCSV(path string, records interface{}) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(records, f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
