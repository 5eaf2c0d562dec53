package marketdata

import (
	"math"

	apperrors "leaps-backtester/internal/errors"
	"leaps-backtester/internal/models"
)

// TradingDaysPerYear is used to annualize realized volatility.
const TradingDaysPerYear = 252

// Point is one simulation day: the bar plus derived inputs.
type Point struct {
	Bar models.Bar

	// Return is the close-to-close daily return. NaN on the first bar of
	// the full series, where no previous close exists.
	Return float64

	// Volatility is the annualized realized volatility over the trailing
	// window, or the configured default until the window has filled.
	Volatility float64
}

// Series is the derived daily input series for one run.
type Series struct {
	Points []Point
}

// BuildSeries derives returns and rolling realized volatility from bars.
// Volatility at day i is the sample standard deviation of the previous
// window returns times sqrt(252); days without a full window of valid
// returns fall back to defaultVol.
func BuildSeries(bars []models.Bar, window int, defaultVol float64) *Series {
	points := make([]Point, len(bars))

	returns := make([]float64, len(bars))
	for i := range bars {
		if i == 0 {
			returns[i] = math.NaN()
			continue
		}
		returns[i] = bars[i].Close/bars[i-1].Close - 1
	}

	for i := range bars {
		vol := defaultVol
		// The first return is undefined, so a full window exists only
		// once i reaches window valid returns.
		if i >= window {
			vol = sampleStd(returns[i-window+1:i+1]) * math.Sqrt(TradingDaysPerYear)
		}
		points[i] = Point{
			Bar:        bars[i],
			Return:     returns[i],
			Volatility: vol,
		}
	}

	return &Series{Points: points}
}

// Slice returns the sub-series within [start, end], preserving returns and
// volatility derived from the full series so the range filter does not
// change per-day inputs.
func (s *Series) Slice(start, end models.Date) (*Series, error) {
	var points []Point
	for _, p := range s.Points {
		if p.Bar.Date.Before(start.Time) || p.Bar.Date.After(end.Time) {
			continue
		}
		points = append(points, p)
	}

	if len(points) == 0 {
		return nil, apperrors.ErrEmptyRange
	}

	return &Series{Points: points}, nil
}

// First returns the first point of the series.
func (s *Series) First() Point {
	return s.Points[0]
}

// Last returns the last point of the series.
func (s *Series) Last() Point {
	return s.Points[len(s.Points)-1]
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
