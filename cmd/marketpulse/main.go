// MarketPulse — news sentiment tracking for stocks and the market.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/seenimoa/marketpulse/api"
	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/logging"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what PersistentPreRunE loads for every subcommand.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "marketpulse",
		Short: "MarketPulse — news sentiment tracking for stocks and the market",
		Long: `MarketPulse fetches financial news for a ticker or the market, classifies
each article as bullish, bearish or neutral, logs every article once per
source, and charts how sentiment trends over time.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		newVersionCmd(),
		newServeCmd(a),
		newScanCmd(a),
		newMarketCmd(a),
		newTrendCmd(a),
		newQuoteCmd(a),
		newStatusCmd(a),
		newConfigCmd(a),
	)
	return root
}

// load reads the dotenv file (optional), the config and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var err error
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		a.cfg, err = config.LoadFromFile(configFile)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		a.cfg.Logging.Level = level
	}
	a.logger = logging.Setup(a.cfg.Logging)
	return nil
}

// --- Version Command ---

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "MarketPulse %s\n", version)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", date)
		},
	}
}

// --- Serve Command (API Server) ---

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (dashboard, JSON API, WebSocket feed)",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := a.wire(false)
			if err != nil {
				return err
			}
			defer deps.store.Close()

			api.Version = version
			srv, err := api.NewServer(a.cfg, deps.store, deps.sources, deps.classifier,
				api.WithLogger(a.logger),
				api.WithNotifier(deps.notifier),
			)
			if err != nil {
				return fmt.Errorf("server setup failed: %w", err)
			}

			addr, _ := cmd.Flags().GetString("addr")
			if addr == "" {
				addr = a.cfg.API.Addr()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "🌐 MarketPulse listening on %s\n", addr)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default: api.host:api.port)")
	return cmd
}
