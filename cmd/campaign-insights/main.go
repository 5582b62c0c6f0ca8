package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/campaign-insights/config"
	"github.com/aluiziolira/campaign-insights/pipeline"
	"github.com/aluiziolira/campaign-insights/source"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed",
			slog.String("error_type", pipeline.ErrorType(err)),
			slog.Any("error", err),
		)
		stop()
		os.Exit(1)
	}
}

// runOptions holds the flag values of the run command.
type runOptions struct {
	configPath     string
	verbose        bool
	source         string
	snapshot       string
	snapshotFormat string
	summaries      string
	dateLayout     string
	collectErrors  bool
	metricsAddr    string
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	root := &cobra.Command{
		Use:           "campaign-insights",
		Short:         "Clean and summarise marketing campaign extracts",
		Long:          "campaign-insights loads a marketing campaign CSV, cleans every row, and produces the summary tables behind the campaign dashboard.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML config file")

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newInitCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "campaign-insights", version)
		},
	}
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "campaign-insights.yaml"
			if len(args) == 1 {
				target = args[0]
			}
			if _, err := os.Stat(target); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Config already exists: %s\n", target)
				return nil
			}
			if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created config: %s\n", target)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func newRunCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and print the summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.Flags().Changed)
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg)
		},
	}

	defaults := config.DefaultConfig()
	flags := cmd.Flags()
	flags.StringVar(&opts.source, "source", defaults.Source, "CSV path or http(s) URL of the campaign extract")
	flags.StringVar(&opts.snapshot, "snapshot", defaults.SnapshotFile, "Cleaned-table snapshot path (empty disables it)")
	flags.StringVar(&opts.snapshotFormat, "snapshot-format", defaults.SnapshotFormat, "Snapshot format: csv, json, dual, or sqlite")
	flags.StringVar(&opts.summaries, "summaries", defaults.SummaryFile, "Summary JSON path (empty disables it)")
	flags.StringVar(&opts.dateLayout, "date-layout", defaults.DateLayout, "Go reference layout of the Date column")
	flags.BoolVar(&opts.collectErrors, "collect-errors", defaults.CollectRowErrors, "Report every malformed row instead of stopping at the first")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	return cmd
}

// loadConfig layers defaults, the optional config file, CAMPAIGN_*
// environment variables, then any flag set on the command line.
func loadConfig(opts *runOptions, changed func(string) bool) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	if changed("source") {
		cfg.Source = opts.source
	}
	if changed("snapshot") {
		cfg.SnapshotFile = opts.snapshot
	}
	if changed("snapshot-format") {
		cfg.SnapshotFormat = opts.snapshotFormat
	}
	if changed("summaries") {
		cfg.SummaryFile = opts.summaries
	}
	if changed("date-layout") {
		cfg.DateLayout = opts.dateLayout
	}
	if changed("collect-errors") {
		cfg.CollectRowErrors = opts.collectErrors
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	cfg.SnapshotFormat = strings.ToLower(cfg.SnapshotFormat)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, cfg *config.Config) error {
	logger, level := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	metrics := pipeline.NewMetrics()
	src, err := source.New(cfg, metrics.Registry)
	if err != nil {
		return fmt.Errorf("initialising source: %w", err)
	}
	writer, err := pipeline.NewWriter(cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	p, err := pipeline.New(cfg, src, writer, pipeline.WithMetrics(metrics), pipeline.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initialising pipeline: %w", err)
	}

	metricsServer := startMetricsServer(cfg.MetricsAddr, metrics.Registry)
	defer stopMetricsServer(metricsServer)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := p.Run(ctx)
	if err != nil {
		printRowErrors(cmd.ErrOrStderr(), err)
		return err
	}

	printSummary(cmd.OutOrStdout(), result)
	return nil
}

func startMetricsServer(addr string, registry *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func newLogger(w io.Writer, verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(w) {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler), level
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
