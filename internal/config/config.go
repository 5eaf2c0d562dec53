// Package config provides configuration management for the backtester.
//
// All strategy parameters are constant-valued policy knobs resolved once at
// startup; nothing here is renegotiated during a run.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	apperrors "leaps-backtester/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Data       DataConfig       `mapstructure:"data"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	Output     OutputConfig     `mapstructure:"output"`
	Log        LogConfig        `mapstructure:"log"`
}

// DataConfig locates the underlying price series.
type DataConfig struct {
	CSVPath string `mapstructure:"csv_path"`
	Symbol  string `mapstructure:"symbol"`
}

// SimulationConfig holds run-level parameters.
type SimulationConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
	StartYear      int     `mapstructure:"start_year"`
	EndYear        int     `mapstructure:"end_year"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate"`

	// Realized volatility is scaled and floored to proxy the implied
	// volatility premium LEAPS trade at over historical volatility.
	IVMultiplier      float64 `mapstructure:"iv_multiplier"`
	IVFloor           float64 `mapstructure:"iv_floor"`
	VolWindow         int     `mapstructure:"vol_window"`
	DefaultVolatility float64 `mapstructure:"default_volatility"`
}

// StrategyConfig holds the rolling-policy parameters.
type StrategyConfig struct {
	Entry   EntryConfig   `mapstructure:"entry"`
	RollUp  RollUpConfig  `mapstructure:"roll_up"`
	RollOut RollOutConfig `mapstructure:"roll_out"`
	BearAdd BearAddConfig `mapstructure:"bear_add"`
}

// EntryConfig controls the initial entry and flat re-entry gates.
type EntryConfig struct {
	DropThreshold float64 `mapstructure:"drop_threshold"`
	Allocation    float64 `mapstructure:"allocation"`
	TargetDelta   float64 `mapstructure:"target_delta"`
	TargetDTE     int     `mapstructure:"target_dte"`

	// ReentryMinAllocation skips flat re-entry buys sized below this.
	ReentryMinAllocation float64 `mapstructure:"reentry_min_allocation"`
}

// RollUpConfig controls the profit-taking roll.
type RollUpConfig struct {
	TriggerDelta float64 `mapstructure:"trigger_delta"`
	TargetDelta  float64 `mapstructure:"target_delta"`
	TargetDTE    int     `mapstructure:"target_dte"`
}

// RollOutConfig controls the time-decay roll.
type RollOutConfig struct {
	TriggerDTE  int     `mapstructure:"trigger_dte"`
	TargetDelta float64 `mapstructure:"target_delta"`
	TargetDTE   int     `mapstructure:"target_dte"`

	// CashSafety is the fraction of post-sale cash spent when the
	// same-contract-count replacement is unaffordable.
	CashSafety float64 `mapstructure:"cash_safety"`
}

// BearAddConfig controls drawdown averaging.
type BearAddConfig struct {
	TriggerDelta   float64 `mapstructure:"trigger_delta"`
	MinCashRatio   float64 `mapstructure:"min_cash_ratio"`
	CooldownDays   int     `mapstructure:"cooldown_days"`
	HeavyThreshold float64 `mapstructure:"heavy_threshold"`
	HeavySize      float64 `mapstructure:"heavy_size"`
	NormalSize     float64 `mapstructure:"normal_size"`
	TargetDelta    float64 `mapstructure:"target_delta"`
	TargetDTE      int     `mapstructure:"target_dte"`
}

// OutputConfig holds output destinations.
type OutputConfig struct {
	TradesCSV string `mapstructure:"trades_csv"`
	DailyCSV  string `mapstructure:"daily_csv"`
	DBPath    string `mapstructure:"db_path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Console  bool   `mapstructure:"console"`
	File     bool   `mapstructure:"file"`
	FilePath string `mapstructure:"file_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/leaps-backtester"
	}
	return filepath.Join(home, ".config", "leaps-backtester")
}

// Load loads configuration from the given file, or from config.toml in the
// default config directory and working directory when path is empty. A
// missing file is not an error; defaults cover every parameter.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(DefaultConfigDir())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data.csv_path", "input/QQQ.csv")
	v.SetDefault("data.symbol", "QQQ")

	v.SetDefault("simulation.initial_capital", 100000.0)
	v.SetDefault("simulation.start_year", 1999)
	v.SetDefault("simulation.end_year", 2025)
	v.SetDefault("simulation.risk_free_rate", 0.0285)
	v.SetDefault("simulation.iv_multiplier", 1.14)
	v.SetDefault("simulation.iv_floor", 0.1955)
	v.SetDefault("simulation.vol_window", 30)
	v.SetDefault("simulation.default_volatility", 0.20)

	v.SetDefault("strategy.entry.drop_threshold", -0.01)
	v.SetDefault("strategy.entry.allocation", 0.60)
	v.SetDefault("strategy.entry.target_delta", 0.80)
	v.SetDefault("strategy.entry.target_dte", 700)
	v.SetDefault("strategy.entry.reentry_min_allocation", 1000.0)

	v.SetDefault("strategy.roll_up.trigger_delta", 0.90)
	v.SetDefault("strategy.roll_up.target_delta", 0.70)
	v.SetDefault("strategy.roll_up.target_dte", 650)

	v.SetDefault("strategy.roll_out.trigger_dte", 300)
	v.SetDefault("strategy.roll_out.target_delta", 0.80)
	v.SetDefault("strategy.roll_out.target_dte", 700)
	v.SetDefault("strategy.roll_out.cash_safety", 0.99)

	v.SetDefault("strategy.bear_add.trigger_delta", 0.50)
	v.SetDefault("strategy.bear_add.min_cash_ratio", 0.10)
	v.SetDefault("strategy.bear_add.cooldown_days", 52)
	v.SetDefault("strategy.bear_add.heavy_threshold", 0.40)
	v.SetDefault("strategy.bear_add.heavy_size", 0.10)
	v.SetDefault("strategy.bear_add.normal_size", 0.05)
	v.SetDefault("strategy.bear_add.target_delta", 0.80)
	v.SetDefault("strategy.bear_add.target_dte", 700)

	v.SetDefault("output.trades_csv", "output/backtest_trades.csv")
	v.SetDefault("output.daily_csv", "output/backtest_daily.csv")
	v.SetDefault("output.db_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
	v.SetDefault("log.file", false)
	v.SetDefault("log.file_path", filepath.Join(DefaultConfigDir(), "logs", "backtest.log"))
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEAPS_DATA_CSV"); v != "" {
		cfg.Data.CSVPath = v
	}
	if v := os.Getenv("LEAPS_DB_PATH"); v != "" {
		cfg.Output.DBPath = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Simulation.InitialCapital <= 0 {
		return apperrors.NewValidationError("simulation.initial_capital", c.Simulation.InitialCapital, "must be positive")
	}
	if c.Simulation.EndYear < c.Simulation.StartYear {
		return apperrors.NewValidationError("simulation.end_year", c.Simulation.EndYear, "must not precede start_year")
	}
	if c.Simulation.IVMultiplier <= 0 {
		return apperrors.NewValidationError("simulation.iv_multiplier", c.Simulation.IVMultiplier, "must be positive")
	}
	if c.Simulation.VolWindow < 2 {
		return apperrors.NewValidationError("simulation.vol_window", c.Simulation.VolWindow, "must be at least 2")
	}

	for _, d := range []struct {
		field string
		value float64
	}{
		{"strategy.entry.target_delta", c.Strategy.Entry.TargetDelta},
		{"strategy.roll_up.trigger_delta", c.Strategy.RollUp.TriggerDelta},
		{"strategy.roll_up.target_delta", c.Strategy.RollUp.TargetDelta},
		{"strategy.roll_out.target_delta", c.Strategy.RollOut.TargetDelta},
		{"strategy.bear_add.trigger_delta", c.Strategy.BearAdd.TriggerDelta},
		{"strategy.bear_add.target_delta", c.Strategy.BearAdd.TargetDelta},
	} {
		if d.value <= 0 || d.value >= 1 {
			return apperrors.NewValidationError(d.field, d.value, "must be in (0, 1)")
		}
	}

	for _, f := range []struct {
		field string
		value float64
	}{
		{"strategy.entry.allocation", c.Strategy.Entry.Allocation},
		{"strategy.roll_out.cash_safety", c.Strategy.RollOut.CashSafety},
		{"strategy.bear_add.min_cash_ratio", c.Strategy.BearAdd.MinCashRatio},
		{"strategy.bear_add.heavy_threshold", c.Strategy.BearAdd.HeavyThreshold},
		{"strategy.bear_add.heavy_size", c.Strategy.BearAdd.HeavySize},
		{"strategy.bear_add.normal_size", c.Strategy.BearAdd.NormalSize},
	} {
		if f.value < 0 || f.value > 1 {
			return apperrors.NewValidationError(f.field, f.value, "must be in [0, 1]")
		}
	}

	for _, d := range []struct {
		field string
		value int
	}{
		{"strategy.entry.target_dte", c.Strategy.Entry.TargetDTE},
		{"strategy.roll_up.target_dte", c.Strategy.RollUp.TargetDTE},
		{"strategy.roll_out.trigger_dte", c.Strategy.RollOut.TriggerDTE},
		{"strategy.roll_out.target_dte", c.Strategy.RollOut.TargetDTE},
		{"strategy.bear_add.target_dte", c.Strategy.BearAdd.TargetDTE},
	} {
		if d.value <= 0 {
			return apperrors.NewValidationError(d.field, d.value, "must be positive")
		}
	}

	if c.Strategy.BearAdd.CooldownDays < 0 {
		return apperrors.NewValidationError("strategy.bear_add.cooldown_days", c.Strategy.BearAdd.CooldownDays, "must be non-negative")
	}

	return nil
}
