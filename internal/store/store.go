// Package store provides run persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"leaps-backtester/internal/backtest"
	"leaps-backtester/internal/models"
)

// RunStore defines the interface for persisting completed simulation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)
	GetRunTrades(ctx context.Context, id string) ([]models.TradeRecord, error)
	GetRunDaily(ctx context.Context, id string) ([]models.DailyRecord, error)
	DeleteRun(ctx context.Context, id string) error

	Close() error
}

// Run is one completed simulation: identity, label and its result.
type Run struct {
	ID        string
	Symbol    string
	Label     string
	CreatedAt time.Time
	Result    *backtest.Result
}

// RunSummary is the list-view projection of a stored run.
type RunSummary struct {
	ID          string
	Symbol      string
	Label       string
	CreatedAt   time.Time
	StartDate   models.Date
	EndDate     models.Date
	FinalValue  float64
	TotalReturn float64
	CAGR        float64
	MaxDrawdown float64
}

// RunFilter represents filters for listing runs.
type RunFilter struct {
	Symbol string
	Label  string
	Limit  int
}
