package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tickerSignal/config"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "tickersignal",
		Short: "tickerSignal - ticker store and SMA crossover signals",
		Long: `tickerSignal stores per-symbol price observations and derives BUY/SELL/HOLD
signals from the crossover of a short and a long simple moving average.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			loaded, err := config.LoadConfigFrom(path)
			if err != nil {
				return err
			}
			if db, _ := cmd.Flags().GetString("db"); db != "" {
				loaded.DatabaseURL = db
			}
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				parsed, err := config.ParseLogLevel(level)
				if err != nil {
					return fmt.Errorf("invalid --log-level: %w", err)
				}
				loaded.LogLevel = parsed
			}
			cfg = loaded
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "TOML config file; overrides CONFIG_FILE")
	rootCmd.PersistentFlags().String("db", "", "Ticker store location (SQLite path or postgres:// URL); overrides DATABASE_URL")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (DEBUG, INFO, WARN, ERROR); overrides LOG_LEVEL")

	// Commands resolve cfg lazily: it is only set once PersistentPreRunE ran.
	getCfg := func() *config.Config { return cfg }

	rootCmd.AddCommand(newServeCmd(getCfg))
	rootCmd.AddCommand(newImportCSVCmd(getCfg))
	rootCmd.AddCommand(newExportCSVCmd(getCfg))
	rootCmd.AddCommand(newFetchKlinesCmd(getCfg))
	rootCmd.AddCommand(newSignalCmd(getCfg))
	rootCmd.AddCommand(newPerformanceCmd(getCfg))
	rootCmd.AddCommand(newOptimizeCmd(getCfg))
	rootCmd.AddCommand(newSymbolsCmd(getCfg))

	return rootCmd
}

// withRuntime bootstraps the adapters for one command invocation and closes
// them afterwards.
func withRuntime(cmd *cobra.Command, cfg *config.Config, fn func(ctx context.Context, rt *runtime) error) error {
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := bootstrap(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close(ctx)
	return fn(ctx, rt)
}
