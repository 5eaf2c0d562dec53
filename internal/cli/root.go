package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"leaps-backtester/internal/config"
	"leaps-backtester/internal/logging"
	"leaps-backtester/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.RunStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Output.DBPath != "" {
		runStore, err := store.NewSQLiteStore(cfg.Output.DBPath)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize run store, persistence disabled")
		} else {
			app.Store = runStore
			logger.Debug().Str("path", cfg.Output.DBPath).Msg("SQLite run store initialized")
		}
	}

	rootCmd := &cobra.Command{
		Use:   "leaps",
		Short: "LEAPS rolling-strategy backtester",
		Long: `Backtests a long-dated call option (LEAPS) rolling strategy against a
daily price series: Black-Scholes pricing, delta-targeted strike search,
roll-up/roll-out management and drawdown averaging.

Use 'leaps run' to execute a backtest and 'leaps runs' to browse stored runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/leaps-backtester/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))
	rootCmd.AddCommand(newSweepCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("leaps-backtester v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Data")
	output.Printf("  CSV Path:        %s\n", cfg.Data.CSVPath)
	output.Printf("  Symbol:          %s\n", cfg.Data.Symbol)
	output.Println()

	output.Bold("Simulation")
	output.Printf("  Initial Capital: %.2f\n", cfg.Simulation.InitialCapital)
	output.Printf("  Years:           %d-%d\n", cfg.Simulation.StartYear, cfg.Simulation.EndYear)
	output.Printf("  Risk-Free Rate:  %.4f\n", cfg.Simulation.RiskFreeRate)
	output.Printf("  IV Multiplier:   %.4f (floor %.4f)\n", cfg.Simulation.IVMultiplier, cfg.Simulation.IVFloor)
	output.Printf("  Vol Window:      %d days (default %.2f)\n", cfg.Simulation.VolWindow, cfg.Simulation.DefaultVolatility)
	output.Println()

	output.Bold("Entry")
	output.Printf("  Drop Threshold:  %.4f\n", cfg.Strategy.Entry.DropThreshold)
	output.Printf("  Allocation:      %.2f\n", cfg.Strategy.Entry.Allocation)
	output.Printf("  Target:          delta %.2f / %d DTE\n", cfg.Strategy.Entry.TargetDelta, cfg.Strategy.Entry.TargetDTE)
	output.Println()

	output.Bold("Roll Up")
	output.Printf("  Trigger Delta:   %.2f\n", cfg.Strategy.RollUp.TriggerDelta)
	output.Printf("  Target:          delta %.2f / %d DTE\n", cfg.Strategy.RollUp.TargetDelta, cfg.Strategy.RollUp.TargetDTE)
	output.Println()

	output.Bold("Roll Out")
	output.Printf("  Trigger DTE:     %d\n", cfg.Strategy.RollOut.TriggerDTE)
	output.Printf("  Target:          delta %.2f / %d DTE\n", cfg.Strategy.RollOut.TargetDelta, cfg.Strategy.RollOut.TargetDTE)
	output.Println()

	output.Bold("Bear Add")
	output.Printf("  Trigger Delta:   %.2f\n", cfg.Strategy.BearAdd.TriggerDelta)
	output.Printf("  Min Cash Ratio:  %.2f\n", cfg.Strategy.BearAdd.MinCashRatio)
	output.Printf("  Cooldown:        %d days\n", cfg.Strategy.BearAdd.CooldownDays)
	output.Printf("  Sizing:          %.2f normal / %.2f heavy (threshold %.2f)\n",
		cfg.Strategy.BearAdd.NormalSize, cfg.Strategy.BearAdd.HeavySize, cfg.Strategy.BearAdd.HeavyThreshold)

	return nil
}
