package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/adk/model"

	"github.com/moolen/routebench/internal/audit"
	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/config"
	"github.com/moolen/routebench/internal/experiment"
	"github.com/moolen/routebench/internal/llm"
	"github.com/moolen/routebench/internal/logging"
	"github.com/moolen/routebench/internal/metrics"
	"github.com/moolen/routebench/internal/report"
	"github.com/moolen/routebench/internal/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the routing experiment",
	Long: `Run the routing experiment: every selected query is dispatched through
each architecture of the chosen mode, once per run, and the results are
printed as comparison tables and saved as CSV and markdown.

Modes:
  quick        centralized and distributed
  compare      centralized, distributed and direct
  centralized  root coordinator with one agent per domain
  distributed  root coordinator, domain agents and sub-agents
  direct       a single classifier naming the domain

Examples:
  # Quick comparison on the first 20 queries
  routebench run

  # All architectures, all queries, three runs
  routebench run --mode compare --queries 59 --runs 3

  # Offline run with the keyword model
  routebench run --model mock --mode compare
`,
	RunE: runExperiment,
}

var (
	runConfigPath   string
	runMode         string
	runQueries      int
	runRuns         int
	runOutput       string
	runReport       string
	runOutputDir    string
	runModel        string
	runCatalogPath  string
	runQueryTimeout time.Duration
	runRPM          int
	runBurst        int
	runBreaker      uint32
	runAuditLog     string
	runMetricsFile  string
	runTraceOTLP    string
	runTraceTLSCA   string
	runTraceTLSSkip bool
	runTraceFile    string
	runNoLogFile    bool
	runShowReport   bool
)

func init() {
	defaults := config.Default()
	f := runCmd.Flags()

	f.StringVar(&runConfigPath, "config", "", "YAML configuration file; flags override its values")
	f.StringVar(&runMode, "mode", defaults.Mode, "Experiment mode: quick, compare, centralized, distributed, direct")
	f.IntVar(&runQueries, "queries", defaults.Queries, "Number of test queries to run, taken from the start of the query set")
	f.IntVar(&runRuns, "runs", defaults.Runs, "Number of runs per architecture")
	f.StringVar(&runOutput, "output", "", "CSV results path (default: experiment_results_TIMESTAMP.csv)")
	f.StringVar(&runReport, "report", "", "Markdown report path (default: experiment_report_TIMESTAMP.md)")
	f.StringVar(&runOutputDir, "output-dir", defaults.OutputDir, "Directory for relative artifact paths")
	f.StringVar(&runModel, "model", defaults.Model, "Gemini model name, or 'mock' for the offline keyword model")
	f.StringVar(&runCatalogPath, "catalog", "", "Domain catalog YAML (default: embedded catalog)")
	f.DurationVar(&runQueryTimeout, "query-timeout", defaults.QueryTimeout, "Timeout for a single query (0 disables)")
	f.IntVar(&runRPM, "requests-per-minute", defaults.RequestsPerMinute, "Model request rate limit (0 disables)")
	f.IntVar(&runBurst, "burst", defaults.Burst, "Rate limiter burst size")
	f.Uint32Var(&runBreaker, "breaker-failures", defaults.BreakerFailures, "Consecutive model failures that open the circuit breaker")
	f.StringVar(&runAuditLog, "audit-log", "",
		"Path to write the routing audit log (JSONL format). If empty, audit logging is disabled.")
	f.StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this path")
	f.StringVar(&runTraceOTLP, "tracing-endpoint", "", "OTLP gRPC endpoint for trace export")
	f.StringVar(&runTraceTLSCA, "tracing-tls-ca", "", "Path to CA certificate for TLS verification of the tracing endpoint (optional)")
	f.BoolVar(&runTraceTLSSkip, "tracing-tls-insecure", false, "Use TLS to the tracing endpoint without certificate verification (insecure, use only for testing)")
	f.StringVar(&runTraceFile, "trace-file", "", "Write spans as JSON to this path")
	f.BoolVar(&runNoLogFile, "no-log-file", defaults.NoLogFile, "Do not write the timestamped experiment log file")
	f.BoolVar(&runShowReport, "show-report", false, "Render the markdown report to the terminal after the run")
}

// resolveConfig layers defaults, the optional config file and changed flags.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		if cfg, err = config.LoadFile(runConfigPath, cfg); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("mode", func() { cfg.Mode = runMode })
	set("queries", func() { cfg.Queries = runQueries })
	set("runs", func() { cfg.Runs = runRuns })
	set("output", func() { cfg.Output = runOutput })
	set("report", func() { cfg.ReportPath = runReport })
	set("output-dir", func() { cfg.OutputDir = runOutputDir })
	set("model", func() { cfg.Model = runModel })
	set("catalog", func() { cfg.CatalogPath = runCatalogPath })
	set("query-timeout", func() { cfg.QueryTimeout = runQueryTimeout })
	set("requests-per-minute", func() { cfg.RequestsPerMinute = runRPM })
	set("burst", func() { cfg.Burst = runBurst })
	set("breaker-failures", func() { cfg.BreakerFailures = runBreaker })
	set("audit-log", func() { cfg.AuditLogPath = runAuditLog })
	set("metrics-file", func() { cfg.MetricsPath = runMetricsFile })
	set("tracing-endpoint", func() { cfg.TracingEndpoint = runTraceOTLP })
	set("tracing-tls-ca", func() { cfg.TracingTLSCAPath = runTraceTLSCA })
	set("tracing-tls-insecure", func() { cfg.TracingTLSInsecure = runTraceTLSSkip })
	set("trace-file", func() { cfg.TraceFile = runTraceFile })
	set("no-log-file", func() { cfg.NoLogFile = runNoLogFile })

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

func newModel(ctx context.Context, cfg config.Config) (model.LLM, error) {
	if cfg.IsMock() {
		return llm.NewKeywordLLM(), nil
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	key, err := creds.Apply()
	if err != nil {
		return nil, err
	}
	return llm.NewGemini(ctx, cfg.Model, key)
}

func runExperiment(cmd *cobra.Command, _ []string) error {
	if err := setupLog(logLevelFlags); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer logging.Sync()
	logger := logging.GetLogger("cmd.run")

	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	mode, err := experiment.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	start := time.Now()
	if !cfg.NoLogFile {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		logPath := filepath.Join(cfg.OutputDir, report.DefaultLogName(start))
		closeLog, err := logging.AddFileSink(logPath)
		if err != nil {
			return err
		}
		defer func() { _ = closeLog() }()
		logger.Info("Logging to file: %s", logPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, err := newModel(ctx, cfg)
	if err != nil {
		return err
	}

	tp, err := tracing.NewProvider(tracing.Config{
		Endpoint:    cfg.TracingEndpoint,
		TLSCAPath:   cfg.TracingTLSCAPath,
		TLSInsecure: cfg.TracingTLSInsecure,
		File:        cfg.TraceFile,
		Version:     Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Stop(shutdownCtx); err != nil {
			logger.Warn("Failed to stop tracing: %v", err)
		}
	}()

	m := metrics.New()
	experimentID := uuid.NewString()

	queries := cat.Select(cfg.Queries)
	opts := experiment.Options{
		ExperimentID: experimentID,
		Mode:         mode,
		Runs:         cfg.Runs,
		Catalog:      cat,
		Queries:      queries,
		Model:        base,
		ModelName:    cfg.Model,
		Guard: llm.GuardConfig{
			RequestsPerMinute: cfg.RequestsPerMinute,
			Burst:             cfg.Burst,
			MaxFailures:       cfg.BreakerFailures,
		},
		QueryTimeout: cfg.QueryTimeout,
		Metrics:      m,
		Tracer:       tp.Tracer("github.com/moolen/routebench/internal/routing"),
		Out:          cmd.OutOrStdout(),
	}

	if cfg.AuditLogPath != "" {
		auditLog, err := audit.NewLogger(cfg.AuditLogPath, experimentID)
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLog.Close(); err != nil {
				logger.Warn("Failed to close audit log: %v", err)
			}
		}()
		opts.Audit = auditLog
	}

	runner, err := experiment.NewRunner(opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s\n  ROUTING EXPERIMENT: %s mode, %d queries, %d run(s), model %s\n%s\n",
		separator, cfg.Mode, len(queries), cfg.Runs, cfg.Model, separator)

	res, runErr := runner.Run(ctx)
	if runErr != nil && !res.Interrupted {
		return runErr
	}
	if res.Interrupted {
		fmt.Fprintln(out, "\nInterrupted, saving partial results...")
	}

	fmt.Fprintf(out, "\n%s\n", report.RenderTerminal(res))

	paths, err := experiment.Save(context.WithoutCancel(ctx), res, experiment.Outputs{
		Dir:      cfg.OutputDir,
		CSV:      cfg.Output,
		Markdown: cfg.ReportPath,
		Metrics:  cfg.MetricsPath,
	}, m)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintf(out, "Results saved to: %s\n", p)
	}

	if runShowReport {
		rendered, err := report.RenderGlamour(report.RenderMarkdown(res), terminalWidth(100))
		if err != nil {
			logger.Warn("Failed to render report: %v", err)
		} else {
			fmt.Fprint(out, rendered)
		}
	}

	if res.Interrupted {
		return fmt.Errorf("%w: %w", ErrInterrupted, runErr)
	}
	return nil
}

const separator = "======================================================================"
