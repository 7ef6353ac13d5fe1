package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tickerSignal/config"
	"tickerSignal/internal/adapters/binanceclient"
	"tickerSignal/internal/adapters/httpapi"
	"tickerSignal/internal/domain"
	"tickerSignal/internal/strategy/optimization"
	"tickerSignal/internal/utils"
)

type configFunc func() *config.Config

// newServeCmd starts the HTTP API and blocks until SIGINT/SIGTERM.
func newServeCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getCfg()
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" && cfg != nil {
				cfg.HTTPAddr = addr
			}
			return withRuntime(cmd, cfg, func(ctx context.Context, rt *runtime) error {
				ctx, cancel := shutdownContext(ctx, rt)
				defer cancel()

				srv, err := httpapi.NewServer(httpapi.Config{
					Addr:         rt.cfg.HTTPAddr,
					ReadTimeout:  rt.cfg.ReadTimeout,
					WriteTimeout: rt.cfg.WriteTimeout,
					Service:      rt.service,
					Logger:       rt.logger,
					Metrics:      rt.metrics,
					Hub:          rt.hub,
				})
				if err != nil {
					return fmt.Errorf("failed to initialize HTTP API: %w", err)
				}
				rt.logger.Info(ctx, "Signal service started", map[string]interface{}{
					"shortWindow": rt.cfg.Windows.Short,
					"longWindow":  rt.cfg.Windows.Long,
					"postgres":    rt.cfg.UsesPostgres(),
					"redis":       rt.redis,
				})
				if err := srv.ListenAndServe(ctx); err != nil {
					return err
				}
				rt.logger.Info(context.Background(), "Application finished gracefully.")
				return nil
			})
		},
	}
	cmd.Flags().String("addr", "", "Listen address; overrides HTTP_ADDR")
	return cmd
}

// shutdownContext returns a context cancelled on SIGINT/SIGTERM.
func shutdownContext(parent context.Context, rt *runtime) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			rt.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newImportCSVCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-csv FILE",
		Short: "Import ticker records from a CSV file",
		Long: `Import ticker records from a CSV file. The header must name a timestamp
column (datetime, timestamp, date or time) and a price column (close or price).
A symbol column is optional when --symbol is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, _ := cmd.Flags().GetString("symbol")
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()

				n, err := rt.service.ImportCSV(ctx, f, symbol)
				if err != nil {
					return fmt.Errorf("import of %s failed: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d records from %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("symbol", "", "Symbol for rows without a symbol column")
	return cmd
}

func newExportCSVCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-csv SYMBOL FILE",
		Short: "Write a symbol's stored history to a CSV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				recs, err := rt.service.History(ctx, args[0], limit)
				if err != nil {
					return err
				}
				f, err := os.Create(args[1])
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", args[1], err)
				}
				if err := utils.WriteTickersToCSV(f, recs); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("failed to close %s: %w", args[1], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s\n", len(recs), args[1])
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 0, "Only export the most recent N records (0 = all)")
	return cmd
}

// newFetchKlinesCmd pulls Binance futures klines and ingests their closes.
func newFetchKlinesCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-klines",
		Short: "Fetch Binance futures klines and store their close prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol, _ := cmd.Flags().GetString("symbol")
			interval, _ := cmd.Flags().GetString("interval")
			days, _ := cmd.Flags().GetInt("days")
			if days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				client, err := binanceclient.New(binanceclient.Config{
					APIKey:     rt.cfg.APIKey,
					SecretKey:  rt.cfg.SecretKey,
					UseTestnet: rt.cfg.IsTestnet,
					Logger:     rt.logger,
				})
				if err != nil {
					return err
				}
				end := time.Now().UTC()
				start := end.AddDate(0, 0, -days)

				fmt.Fprintf(cmd.OutOrStdout(), "Fetching klines for %s %s from %s to %s...\n",
					symbol, interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
				n, err := rt.service.ImportFromSource(ctx, client, symbol, interval, start, end)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "stored %d records for %s\n", n, domain.NormalizeSymbol(symbol))
				return nil
			})
		},
	}
	cmd.Flags().String("symbol", "BTCUSDT", "Futures symbol")
	cmd.Flags().String("interval", "1h", "Kline interval (1m, 5m, 1h, 1d, ...)")
	cmd.Flags().Int("days", 30, "How many days back to fetch")
	return cmd
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().Int("short", 0, "Short SMA window (default from SHORT_WINDOW)")
	cmd.Flags().Int("long", 0, "Long SMA window (default from LONG_WINDOW)")
}

func windowFlags(cmd *cobra.Command) domain.Windows {
	short, _ := cmd.Flags().GetInt("short")
	long, _ := cmd.Flags().GetInt("long")
	return domain.Windows{Short: short, Long: long}
}

func newSignalCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "signal SYMBOL",
		Short: "Print the current crossover signal for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override := windowFlags(cmd)
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				out := cmd.OutOrStdout()
				res, err := rt.service.Signal(ctx, args[0], override)
				if errors.Is(err, domain.ErrInsufficientData) {
					w := rt.service.DefaultWindows().Override(override)
					fmt.Fprintf(out, "%s: no signal, insufficient data (need at least %d points)\n",
						domain.NormalizeSymbol(args[0]), w.Long)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %s short_sma=%s long_sma=%s windows=%d/%d at %s\n",
					res.Symbol, res.Signal, res.ShortSMA, res.LongSMA,
					res.Windows.Short, res.Windows.Long, res.Timestamp.Format(time.RFC3339))
				return nil
			})
		},
	}
	addWindowFlags(cmd)
	return cmd
}

func newPerformanceCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "performance SYMBOL",
		Short: "Backtest the crossover strategy over a symbol's stored history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			override := windowFlags(cmd)
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				rep, err := rt.service.Performance(ctx, args[0], override)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Symbol:            %s (SMA %d/%d)\n", rep.Symbol, rep.ShortWindow, rep.LongWindow)
				fmt.Fprintf(out, "Period:            %s to %s (%d points)\n",
					rep.PeriodStart.Format(time.RFC3339), rep.PeriodEnd.Format(time.RFC3339), rep.DataPoints)
				fmt.Fprintf(out, "Total trades:      %d\n", rep.TotalTrades)
				fmt.Fprintf(out, "Strategy return:   %.2f%%\n", rep.FinalValue*100)
				fmt.Fprintf(out, "Market return:     %.2f%%\n", rep.MarketReturn*100)
				fmt.Fprintf(out, "Annualized return: %.2f%%\n", rep.AnnualizedReturn*100)
				fmt.Fprintf(out, "Sharpe ratio:      %.3f\n", rep.SharpeRatio)
				fmt.Fprintf(out, "Max drawdown:      %.2f%%\n", rep.MaxDrawdown*100)
				return nil
			})
		},
	}
	addWindowFlags(cmd)
	return cmd
}

func newOptimizeCmd(getCfg configFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize SYMBOL",
		Short: "Search SMA window pairs for the best backtest score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			shortMin, _ := f.GetInt("short-min")
			shortMax, _ := f.GetInt("short-max")
			longMin, _ := f.GetInt("long-min")
			longMax, _ := f.GetInt("long-max")
			longStep, _ := f.GetInt("long-step")
			top, _ := f.GetInt("top")
			short := optimization.ParameterRange{Min: shortMin, Max: shortMax, Step: 1}
			long := optimization.ParameterRange{Min: longMin, Max: longMax, Step: longStep}

			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				results, err := rt.service.OptimizeWindows(ctx, args[0], short, long)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-6s %-6s %9s %8s %10s %8s\n", "SHORT", "LONG", "SCORE", "SHARPE", "RETURN", "TRADES")
				for i, r := range results {
					if i == top {
						break
					}
					fmt.Fprintf(out, "%-6d %-6d %9.3f %8.3f %9.2f%% %8d\n",
						r.Windows.Short, r.Windows.Long, r.Score, r.Report.SharpeRatio, r.Report.FinalValue*100, r.Report.TotalTrades)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("short-min", 2, "Smallest short window")
	cmd.Flags().Int("short-max", 10, "Largest short window")
	cmd.Flags().Int("long-min", 10, "Smallest long window")
	cmd.Flags().Int("long-max", 50, "Largest long window")
	cmd.Flags().Int("long-step", 5, "Long window step")
	cmd.Flags().Int("top", 10, "How many results to print")
	return cmd
}

func newSymbolsCmd(getCfg configFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List stored symbols",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, getCfg(), func(ctx context.Context, rt *runtime) error {
				symbols, err := rt.service.Symbols(ctx)
				if err != nil {
					return err
				}
				for _, s := range symbols {
					fmt.Fprintln(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}
}
