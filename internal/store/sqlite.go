package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"leaps-backtester/internal/backtest"
	apperrors "leaps-backtester/internal/errors"
	"leaps-backtester/internal/models"
)

// SQLiteStore implements RunStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based run store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Runs table: one row per completed simulation
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		label TEXT,
		created_at DATETIME NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		initial_capital REAL NOT NULL,
		final_value REAL NOT NULL,
		final_cash REAL NOT NULL,
		net_cost_basis REAL NOT NULL,
		total_return REAL NOT NULL,
		cagr REAL NOT NULL,
		annual_volatility REAL NOT NULL,
		max_drawdown REAL NOT NULL,
		sharpe_ratio REAL NOT NULL,
		calmar_ratio REAL NOT NULL,
		benchmark_final REAL,
		benchmark_return REAL
	);

	-- Trade ledger rows of each run
	CREATE TABLE IF NOT EXISTS run_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		date TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT,
		underlying_close REAL NOT NULL,
		sigma REAL NOT NULL,
		r REAL NOT NULL,
		contracts INTEGER NOT NULL,
		strike REAL NOT NULL,
		dte INTEGER NOT NULL,
		option_price REAL NOT NULL,
		option_delta REAL NOT NULL,
		cash_flow REAL NOT NULL,
		cash_after REAL NOT NULL,
		total_value_after REAL NOT NULL,
		cash_ratio_after REAL NOT NULL,
		net_cost_basis_after REAL NOT NULL,
		UNIQUE(run_id, seq),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- Daily ledger rows of each run
	CREATE TABLE IF NOT EXISTS run_daily (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		date TEXT NOT NULL,
		underlying_close REAL NOT NULL,
		portfolio_value REAL NOT NULL,
		cash REAL NOT NULL,
		cash_ratio REAL NOT NULL,
		options_value REAL NOT NULL,
		total_contracts INTEGER NOT NULL,
		net_cost_basis REAL NOT NULL,
		benchmark_value REAL,
		benchmark_close REAL,
		UNIQUE(run_id, date),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_symbol ON runs(symbol, created_at);
	CREATE INDEX IF NOT EXISTS idx_run_trades_run ON run_trades(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_run_daily_run ON run_daily(run_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun persists one run with its full trade and daily ledgers in a
// single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res := run.Result
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, symbol, label, created_at, start_date, end_date,
			initial_capital, final_value, final_cash, net_cost_basis,
			total_return, cagr, annual_volatility, max_drawdown,
			sharpe_ratio, calmar_ratio, benchmark_final, benchmark_return
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.Label, run.CreatedAt,
		res.StartDate.String(), res.EndDate.String(),
		res.InitialCapital, res.FinalValue, res.FinalCash, res.NetCostBasis,
		res.TotalReturn, res.CAGR, res.AnnualVolatility, res.MaxDrawdown,
		res.SharpeRatio, res.CalmarRatio,
		nullable(res.BenchmarkFinalValue), nullable(res.BenchmarkReturn),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_trades (
			run_id, seq, date, action, reason, underlying_close, sigma, r,
			contracts, strike, dte, option_price, option_delta,
			cash_flow, cash_after, total_value_after, cash_ratio_after,
			net_cost_basis_after
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare trade insert: %w", err)
	}
	defer tradeStmt.Close()

	for i, t := range res.Trades {
		_, err = tradeStmt.ExecContext(ctx,
			run.ID, i, t.Date.String(), string(t.Action), t.Reason,
			t.UnderlyingClose, t.Sigma, t.RiskFreeRate,
			t.Contracts, t.Strike, t.DTE, t.OptionPrice, t.OptionDelta,
			t.CashFlow, t.CashAfter, t.TotalValueAfter, t.CashRatioAfter,
			t.NetCostBasisAfter,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trade %d: %w", i, err)
		}
	}

	dailyStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_daily (
			run_id, date, underlying_close, portfolio_value, cash,
			cash_ratio, options_value, total_contracts, net_cost_basis,
			benchmark_value, benchmark_close
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare daily insert: %w", err)
	}
	defer dailyStmt.Close()

	for i, d := range res.Daily {
		_, err = dailyStmt.ExecContext(ctx,
			run.ID, d.Date.String(), d.UnderlyingClose, d.PortfolioValue,
			d.Cash, d.CashRatio, d.OptionsValue, d.TotalContracts,
			d.NetCostBasis, nullable(d.BenchmarkValue), nullable(d.BenchmarkClose),
		)
		if err != nil {
			return fmt.Errorf("failed to insert daily row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves one run's summary metrics and ledgers by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{ID: id, Result: &backtest.Result{}}
	res := run.Result

	var startDate, endDate string
	var benchFinal, benchReturn sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT symbol, label, created_at, start_date, end_date,
			initial_capital, final_value, final_cash, net_cost_basis,
			total_return, cagr, annual_volatility, max_drawdown,
			sharpe_ratio, calmar_ratio, benchmark_final, benchmark_return
		FROM runs WHERE id = ?`, id).Scan(
		&run.Symbol, &run.Label, &run.CreatedAt, &startDate, &endDate,
		&res.InitialCapital, &res.FinalValue, &res.FinalCash, &res.NetCostBasis,
		&res.TotalReturn, &res.CAGR, &res.AnnualVolatility, &res.MaxDrawdown,
		&res.SharpeRatio, &res.CalmarRatio, &benchFinal, &benchReturn,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	if res.StartDate, err = models.ParseDate(startDate); err != nil {
		return nil, fmt.Errorf("failed to parse start date: %w", err)
	}
	if res.EndDate, err = models.ParseDate(endDate); err != nil {
		return nil, fmt.Errorf("failed to parse end date: %w", err)
	}
	if benchFinal.Valid {
		res.BenchmarkFinalValue = &benchFinal.Float64
	}
	if benchReturn.Valid {
		res.BenchmarkReturn = &benchReturn.Float64
	}

	if res.Trades, err = s.GetRunTrades(ctx, id); err != nil {
		return nil, err
	}
	if res.Daily, err = s.GetRunDaily(ctx, id); err != nil {
		return nil, err
	}

	return run, nil
}

// ListRuns returns stored run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error) {
	query := `
		SELECT id, symbol, label, created_at, start_date, end_date,
			final_value, total_return, cagr, max_drawdown
		FROM runs WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Label != "" {
		query += " AND label = ?"
		args = append(args, filter.Label)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var sum RunSummary
		var startDate, endDate string
		if err := rows.Scan(&sum.ID, &sum.Symbol, &sum.Label, &sum.CreatedAt,
			&startDate, &endDate, &sum.FinalValue, &sum.TotalReturn,
			&sum.CAGR, &sum.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		if sum.StartDate, err = models.ParseDate(startDate); err != nil {
			return nil, fmt.Errorf("failed to parse start date: %w", err)
		}
		if sum.EndDate, err = models.ParseDate(endDate); err != nil {
			return nil, fmt.Errorf("failed to parse end date: %w", err)
		}
		out = append(out, sum)
	}

	return out, rows.Err()
}

// GetRunTrades returns the trade ledger of a run in execution order.
func (s *SQLiteStore) GetRunTrades(ctx context.Context, id string) ([]models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, action, reason, underlying_close, sigma, r,
			contracts, strike, dte, option_price, option_delta,
			cash_flow, cash_after, total_value_after, cash_ratio_after,
			net_cost_basis_after
		FROM run_trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var rec models.TradeRecord
		var date, action string
		if err := rows.Scan(&date, &action, &rec.Reason,
			&rec.UnderlyingClose, &rec.Sigma, &rec.RiskFreeRate,
			&rec.Contracts, &rec.Strike, &rec.DTE, &rec.OptionPrice,
			&rec.OptionDelta, &rec.CashFlow, &rec.CashAfter,
			&rec.TotalValueAfter, &rec.CashRatioAfter,
			&rec.NetCostBasisAfter); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if rec.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse trade date: %w", err)
		}
		rec.Action = models.Action(action)
		out = append(out, rec)
	}

	return out, rows.Err()
}

// GetRunDaily returns the daily ledger of a run in date order.
func (s *SQLiteStore) GetRunDaily(ctx context.Context, id string) ([]models.DailyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, underlying_close, portfolio_value, cash, cash_ratio,
			options_value, total_contracts, net_cost_basis,
			benchmark_value, benchmark_close
		FROM run_daily WHERE run_id = ? ORDER BY date`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily rows: %w", err)
	}
	defer rows.Close()

	var out []models.DailyRecord
	for rows.Next() {
		var rec models.DailyRecord
		var date string
		var benchValue, benchClose sql.NullFloat64
		if err := rows.Scan(&date, &rec.UnderlyingClose, &rec.PortfolioValue,
			&rec.Cash, &rec.CashRatio, &rec.OptionsValue,
			&rec.TotalContracts, &rec.NetCostBasis,
			&benchValue, &benchClose); err != nil {
			return nil, fmt.Errorf("failed to scan daily row: %w", err)
		}
		if rec.Date, err = models.ParseDate(date); err != nil {
			return nil, fmt.Errorf("failed to parse daily date: %w", err)
		}
		if benchValue.Valid {
			v := benchValue.Float64
			rec.BenchmarkValue = &v
		}
		if benchClose.Valid {
			v := benchClose.Float64
			rec.BenchmarkClose = &v
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// DeleteRun removes a run and its ledgers.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.ErrRunNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
