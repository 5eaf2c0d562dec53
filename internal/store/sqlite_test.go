package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaps-backtester/internal/backtest"
	apperrors "leaps-backtester/internal/errors"
	"leaps-backtester/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() *Run {
	benchFinal := 145000.0
	benchReturn := 0.45

	return &Run{
		ID:        uuid.NewString(),
		Symbol:    "QQQ",
		Label:     "baseline",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Result: &backtest.Result{
			StartDate:           models.NewDate(2020, 1, 2),
			EndDate:             models.NewDate(2020, 12, 31),
			InitialCapital:      100000,
			FinalValue:          158000,
			FinalCash:           42000,
			NetCostBasis:        -12000,
			TotalReturn:         0.58,
			CAGR:                0.58,
			AnnualVolatility:    0.35,
			MaxDrawdown:         -0.22,
			SharpeRatio:         1.4,
			CalmarRatio:         2.6,
			BenchmarkFinalValue: &benchFinal,
			BenchmarkReturn:     &benchReturn,
			Trades: []models.TradeRecord{
				{
					Date:              models.NewDate(2020, 1, 3),
					Action:            models.ActionBuyOpen,
					UnderlyingClose:   98,
					Sigma:             0.228,
					RiskFreeRate:      0.0285,
					Contracts:         25,
					Strike:            83.4,
					DTE:               700,
					OptionPrice:       23.1,
					OptionDelta:       0.80,
					CashFlow:          -57750,
					CashAfter:         42250,
					TotalValueAfter:   100000,
					CashRatioAfter:    0.4225,
					NetCostBasisAfter: 57750,
				},
				{
					Date:            models.NewDate(2020, 6, 5),
					Action:          models.ActionSellRollUp,
					Reason:          "delta>0.9",
					UnderlyingClose: 140,
					Contracts:       25,
					Strike:          83.4,
					DTE:             546,
					CashFlow:        140000,
				},
			},
			Daily: []models.DailyRecord{
				{
					Date:            models.NewDate(2020, 1, 2),
					UnderlyingClose: 100,
					PortfolioValue:  100000,
					Cash:            100000,
					CashRatio:       1.0,
				},
				{
					Date:            models.NewDate(2020, 1, 3),
					UnderlyingClose: 98,
					PortfolioValue:  100000,
					Cash:            42250,
					CashRatio:       0.4225,
					OptionsValue:    57750,
					TotalContracts:  25,
					NetCostBasis:    57750,
					BenchmarkValue:  &benchFinal,
					BenchmarkClose:  &benchReturn,
				},
			},
		},
	}
}

func TestSaveAndGetRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)

	assert.Equal(t, run.Symbol, got.Symbol)
	assert.Equal(t, run.Label, got.Label)
	assert.Equal(t, run.Result.StartDate, got.Result.StartDate)
	assert.Equal(t, run.Result.FinalValue, got.Result.FinalValue)
	assert.Equal(t, run.Result.SharpeRatio, got.Result.SharpeRatio)
	require.NotNil(t, got.Result.BenchmarkReturn)
	assert.Equal(t, *run.Result.BenchmarkReturn, *got.Result.BenchmarkReturn)

	require.Len(t, got.Result.Trades, 2)
	assert.Equal(t, models.ActionBuyOpen, got.Result.Trades[0].Action)
	assert.Equal(t, "delta>0.9", got.Result.Trades[1].Reason)
	assert.Equal(t, run.Result.Trades[0].CashAfter, got.Result.Trades[0].CashAfter)

	require.Len(t, got.Result.Daily, 2)
	assert.Nil(t, got.Result.Daily[0].BenchmarkValue)
	require.NotNil(t, got.Result.Daily[1].BenchmarkValue)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)
}

func TestListRunsFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := sampleRun()
	first.CreatedAt = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	second := sampleRun()
	second.ID = uuid.NewString()
	second.Symbol = "SPY"
	second.CreatedAt = time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveRun(ctx, first))
	require.NoError(t, s.SaveRun(ctx, second))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, second.ID, all[0].ID)

	qqq, err := s.ListRuns(ctx, RunFilter{Symbol: "QQQ"})
	require.NoError(t, err)
	require.Len(t, qqq, 1)
	assert.Equal(t, first.ID, qqq[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDeleteRunCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run))
	require.NoError(t, s.DeleteRun(ctx, run.ID))

	_, err := s.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, apperrors.ErrRunNotFound)

	trades, err := s.GetRunTrades(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, trades)

	assert.ErrorIs(t, s.DeleteRun(ctx, run.ID), apperrors.ErrRunNotFound)
}
