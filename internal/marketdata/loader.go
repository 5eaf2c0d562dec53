// Package marketdata loads the underlying daily price series and derives
// the return and volatility inputs the simulation consumes.
package marketdata

import (
	"fmt"
	"os"
	"sort"

	"github.com/gocarina/gocsv"

	apperrors "leaps-backtester/internal/errors"
	"leaps-backtester/internal/models"
)

// LoadBars reads a daily OHLCV CSV file and returns its bars sorted by
// date. The file must carry at least Date and Close columns; other
// columns are optional and extra columns are ignored.
func LoadBars(path string) ([]models.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewDataError(path, "opening price series", err)
	}
	defer f.Close()

	var bars []models.Bar
	if err := gocsv.UnmarshalFile(f, &bars); err != nil {
		return nil, apperrors.NewDataError(path, "parsing price series", err)
	}

	if len(bars) == 0 {
		return nil, apperrors.NewDataError(path, "price series is empty", apperrors.ErrNoData)
	}

	for i, bar := range bars {
		if bar.Close <= 0 {
			return nil, apperrors.NewDataError(path, fmt.Sprintf("row %d has non-positive close %.4f", i+1, bar.Close), nil)
		}
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date.Time)
	})

	return bars, nil
}
