package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/seenimoa/marketpulse/internal/config"
	"github.com/seenimoa/marketpulse/internal/datasource"
	"github.com/seenimoa/marketpulse/internal/llm"
	"github.com/seenimoa/marketpulse/internal/notify"
	"github.com/seenimoa/marketpulse/internal/pipeline"
	"github.com/seenimoa/marketpulse/internal/report"
	"github.com/seenimoa/marketpulse/internal/sentiment"
	"github.com/seenimoa/marketpulse/internal/store"
	"github.com/seenimoa/marketpulse/internal/trend"
	"github.com/seenimoa/marketpulse/pkg/models"
	"github.com/seenimoa/marketpulse/pkg/utils"
)

// deps are the collaborators shared by serve and the scan commands.
type deps struct {
	store      store.Store
	sources    *datasource.Aggregator
	classifier sentiment.Classifier
	notifier   notify.Notifier
}

// wire builds the collaborators from config. dryRun swaps the configured
// store for an in-memory one so nothing is persisted.
func (a *app) wire(dryRun bool) (*deps, error) {
	storage := a.cfg.Storage
	if dryRun {
		storage.Backend = store.BackendMemory
	}
	st, err := store.Open(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &deps{
		store:      st,
		sources:    datasource.NewAggregator(a.cfg, a.logger),
		classifier: sentiment.NewClassifier(a.cfg, a.logger),
		notifier:   notify.New(a.cfg.Telegram, a.logger),
	}, nil
}

func (a *app) newPipeline(d *deps) *pipeline.Pipeline {
	return pipeline.New(d.sources, d.classifier, d.store,
		pipeline.WithNotifier(d.notifier),
		pipeline.WithLogger(a.logger),
		pipeline.WithConcurrency(a.cfg.Pipeline.Concurrency),
		pipeline.WithLookbackDays(a.cfg.News.LookbackDays),
	)
}

// --- Scan Command ---

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [ticker]",
		Short: "Fetch, classify and log news sentiment for a ticker",
		Long: `Fetch recent news for a ticker, classify each article and log every new
sentiment once per source. Articles already logged for the source are
reported as duplicates.

Examples:
  marketpulse scan TSLA
  marketpulse scan PLTR --source rss --sentiment bullish,bearish
  marketpulse scan HOOD --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, args[0], datasource.SourceNewsAPI)
		},
	}
	addScanFlags(cmd, datasource.SourceNewsAPI)
	cmd.Flags().Bool("dry-run", false, "classify without persisting (in-memory store)")
	return cmd
}

// --- Market Command ---

func newMarketCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "market",
		Short: "Fetch, classify and log general market news",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd, models.MarketQuery, datasource.SourceRSS)
		},
	}
	addScanFlags(cmd, datasource.SourceRSS)
	cmd.Flags().Bool("dry-run", false, "classify without persisting (in-memory store)")
	return cmd
}

func addScanFlags(cmd *cobra.Command, defaultSource string) {
	cmd.Flags().String("source", defaultSource, "news source (newsapi, rss, all)")
	cmd.Flags().String("keyword", "", "keep only articles mentioning this keyword")
	cmd.Flags().String("sentiment", "", "comma-separated sentiments to show (bullish,bearish,neutral)")
	cmd.Flags().Bool("notify", false, "send the digest to Telegram")
}

func (a *app) runScan(cmd *cobra.Command, ticker, defaultSource string) error {
	source, _ := cmd.Flags().GetString("source")
	if source == "" {
		source = defaultSource
	}
	keyword, _ := cmd.Flags().GetString("keyword")
	notifyFlag, _ := cmd.Flags().GetBool("notify")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	rawFilter, _ := cmd.Flags().GetString("sentiment")

	filter, err := parseSentimentFilter(rawFilter)
	if err != nil {
		return err
	}

	d, err := a.wire(dryRun)
	if err != nil {
		return err
	}
	defer d.store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	req := pipeline.Request{
		Ticker:  ticker,
		Source:  source,
		Keyword: keyword,
		Notify:  notifyFlag,
	}
	p := a.newPipeline(d)
	var reports []*pipeline.Report
	if strings.EqualFold(source, datasource.SourceAll) {
		reports = p.RunAll(ctx, req)
	} else {
		reports = []*pipeline.Report{p.Run(ctx, req)}
	}

	out := cmd.OutOrStdout()
	for i, rep := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}
		printReport(out, rep, filter)
	}
	if dryRun {
		fmt.Fprintln(out, "(dry run: nothing was persisted)")
	}
	return nil
}

func printReport(out io.Writer, rep *pipeline.Report, filter []models.Sentiment) {
	fmt.Fprintf(out, "📰 %s news from %s\n", rep.Subject, rep.Source)
	if rep.Error != "" {
		fmt.Fprintln(out, warnColor.Sprint("⚠️  "+rep.Error))
		return
	}

	results := rep.Filter(filter...)
	printResults(out, results)
	printCounts(out, pipeline.Counts(results))
	fmt.Fprintf(out, "fetched %d · logged %d · duplicate %d · failed %d · skipped %d\n",
		rep.Fetched,
		rep.Counts[pipeline.StatusLogged],
		rep.Counts[pipeline.StatusDuplicate],
		rep.Counts[pipeline.StatusFailed],
		rep.Counts[pipeline.StatusSkipped],
	)
	if rep.Notified {
		fmt.Fprintln(out, "📨 digest sent")
	}
}

// --- Trend Command ---

func newTrendCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trend [ticker]",
		Short: "Show the daily sentiment trend logged for a ticker",
		Long: `Count the sentiments logged for a ticker per day within the trailing
window. Use "all" to aggregate every ticker of the source.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			window, _ := cmd.Flags().GetInt("window")
			svgPath, _ := cmd.Flags().GetString("svg")
			kind, _ := cmd.Flags().GetString("kind")
			if window < 0 {
				return errors.New("--window must not be negative")
			}
			if !cmd.Flags().Changed("window") {
				window = a.cfg.Pipeline.WindowDays
			}

			st, err := store.Open(a.cfg.Storage)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			ticker := args[0]
			if strings.EqualFold(ticker, "all") {
				ticker = ""
			}
			res := trend.New(st, trend.WithLogger(a.logger)).Aggregate(source, ticker, window)

			out := cmd.OutOrStdout()
			if !res.OK() {
				fmt.Fprintln(out, warnColor.Sprint(res.Message()))
				return nil
			}
			printTrend(out, res)

			if svgPath != "" {
				cfg := report.DefaultChartConfig()
				cfg.Title = fmt.Sprintf("%s sentiment (%s, last %d days)", utils.NormalizeTicker(args[0]), res.Source, window)
				svg := report.TrendBarChart(res.Points, cfg)
				if kind == "line" {
					svg = report.TrendLineChart(res.Points, cfg)
				}
				if err := os.WriteFile(svgPath, []byte(svg), 0o644); err != nil {
					return fmt.Errorf("write chart: %w", err)
				}
				fmt.Fprintf(out, "📊 chart written to %s\n", svgPath)
			}
			return nil
		},
	}
	cmd.Flags().String("source", datasource.SourceNewsAPI, "sentiment log to read (newsapi, rss, ...)")
	cmd.Flags().Int("window", 7, "trailing window in days (0 = all)")
	cmd.Flags().String("svg", "", "also write the trend chart to this SVG file")
	cmd.Flags().String("kind", "bar", "chart kind for --svg (bar, line)")
	return cmd
}

// --- Quote Command ---

func newQuoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quote [ticker]",
		Short: "Show the latest price for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := utils.NormalizeTicker(args[0])
			yf := datasource.NewYFinance(a.cfg.Quote, datasource.WithYFinanceLogger(a.logger))

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			q, err := yf.GetQuote(ctx, ticker)
			if err != nil {
				return fmt.Errorf("quote %s: %w", ticker, err)
			}
			printQuote(cmd.OutOrStdout(), q)
			return nil
		},
	}
}

// --- Status Command ---

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and credential status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := a.cfg
			fmt.Fprintln(out, "═══════════════════════════════════════")
			fmt.Fprintln(out, "  MarketPulse — System Status")
			fmt.Fprintln(out, "═══════════════════════════════════════")
			fmt.Fprintf(out, "  Version:       %s (%s)\n", version, commit)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "  Configuration:")
			fmt.Fprintf(out, "    Classifier:    %s (model: %s)\n", cfg.LLM.Primary, cfg.LLM.Model)
			fmt.Fprintf(out, "    Storage:       %s (%s)\n", cfg.Storage.Backend, storageLocation(cfg.Storage))
			fmt.Fprintf(out, "    Tickers:       %s\n", strings.Join(cfg.Tickers, ", "))
			fmt.Fprintf(out, "    API Server:    %s\n", cfg.API.Addr())
			fmt.Fprintln(out)

			fmt.Fprintln(out, "  LLM Providers:")
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()
			printProviderHealth(ctx, out, cfg, a.logger)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "  API Keys:")
			for _, k := range config.CheckAPIKeys(cfg) {
				status := errColor.Sprint("❌ not set")
				if k.IsSet {
					status = okColor.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
				}
				fmt.Fprintf(out, "    %-25s %s\n", k.Name+":", status)
			}
			fmt.Fprintln(out, "═══════════════════════════════════════")
			return nil
		},
	}
}

// printProviderHealth pings every configured LLM provider. The offline
// scorer has nothing to ping.
func printProviderHealth(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) {
	if strings.EqualFold(cfg.LLM.Primary, "offline") {
		fmt.Fprintln(out, "    offline keyword scorer (no provider to ping)")
		return
	}
	router, err := llm.NewRouterFromConfig(cfg, logger)
	if err != nil {
		fmt.Fprintf(out, "    %s\n", errColor.Sprintf("❌ none configured, using offline scorer (%v)", err))
		return
	}
	health := router.HealthCheck(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		status := okColor.Sprint("✅ reachable")
		if err := health[name]; err != nil {
			status = errColor.Sprintf("❌ %v", err)
		}
		fmt.Fprintf(out, "    %-25s %s\n", name+":", status)
	}
}

func storageLocation(s config.StorageConfig) string {
	if strings.EqualFold(s.Backend, store.BackendSQLite) {
		return s.SQLitePath
	}
	if strings.EqualFold(s.Backend, store.BackendMemory) {
		return "not persisted"
	}
	return s.Dir
}

// --- Config Command ---

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML (secrets masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func parseSentimentFilter(raw string) ([]models.Sentiment, error) {
	var out []models.Sentiment
	for _, v := range utils.SplitList(raw) {
		s := models.ParseSentiment(v)
		if !s.Known() {
			return nil, fmt.Errorf("unknown sentiment %q (want bullish, bearish or neutral)", v)
		}
		out = append(out, s)
	}
	return out, nil
}
