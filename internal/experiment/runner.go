// Package experiment runs the routing benchmark: it builds every topology
// of the selected mode, dispatches the test queries through them for a
// number of runs, and aggregates the outcome into a report.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/adk/model"

	"github.com/moolen/routebench/internal/audit"
	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/evaluate"
	"github.com/moolen/routebench/internal/llm"
	"github.com/moolen/routebench/internal/logging"
	"github.com/moolen/routebench/internal/metrics"
	"github.com/moolen/routebench/internal/report"
	"github.com/moolen/routebench/internal/routing"
)

// AppName is the ADK application name used for every session.
const AppName = "routebench"

// registrar is implemented by models that need to know the topologies they serve.
type registrar interface {
	Register(t *routing.Topology)
}

// Options configures a Runner.
type Options struct {
	// ExperimentID tags logs and audit events. Generated when empty.
	ExperimentID string

	Mode    Mode
	Runs    int
	Catalog *catalog.Catalog
	Queries []catalog.Query

	// Model answers every agent of every topology. It is wrapped in a
	// rate limiter and circuit breaker configured by Guard.
	Model     model.LLM
	ModelName string
	Guard     llm.GuardConfig

	QueryTimeout time.Duration

	// Optional sinks.
	Metrics *metrics.Metrics
	Audit   *audit.Logger
	Tracer  trace.Tracer

	// Out receives the human readable progress. Defaults to io.Discard.
	Out io.Writer
}

// Runner executes one experiment.
type Runner struct {
	opts    Options
	model   *llm.Guarded
	verbose bool
	id      string
	logger  *logging.Logger
	now     func() time.Time
}

// NewRunner validates opts and prepares the guarded model.
func NewRunner(opts Options) (*Runner, error) {
	var errs []error
	if len(opts.Mode.Architectures()) == 0 {
		errs = append(errs, fmt.Errorf("unknown mode %q", opts.Mode))
	}
	if opts.Runs < 1 {
		errs = append(errs, fmt.Errorf("runs must be at least 1, got %d", opts.Runs))
	}
	if opts.Catalog == nil {
		errs = append(errs, errors.New("catalog is required"))
	}
	if len(opts.Queries) == 0 {
		errs = append(errs, errors.New("no queries selected"))
	}
	if opts.Model == nil {
		errs = append(errs, errors.New("model is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.ModelName == "" {
		opts.ModelName = opts.Model.Name()
	}

	var recorder llm.RequestRecorder
	if opts.Metrics != nil {
		recorder = opts.Metrics
	}

	id := opts.ExperimentID
	if id == "" {
		id = uuid.NewString()
	}
	return &Runner{
		opts:    opts,
		model:   llm.NewGuarded(opts.Model, opts.Guard, recorder),
		verbose: opts.Runs == 1,
		id:      id,
		logger:  logging.GetLogger("experiment").WithField("experiment_id", id),
		now:     time.Now,
	}, nil
}

// ID returns the experiment identifier written to the audit trail.
func (r *Runner) ID() string {
	return r.id
}

// Run executes every run of every architecture. When ctx is canceled the
// experiment stops between queries; the runs completed so far are returned
// together with the context error and Results.Interrupted set.
func (r *Runner) Run(ctx context.Context) (report.Results, error) {
	start := r.now()
	archs := r.opts.Mode.Architectures()

	res := report.Results{
		Generated:     start,
		Mode:          string(r.opts.Mode),
		Model:         r.opts.ModelName,
		Queries:       r.opts.Queries,
		RequestedRuns: r.opts.Runs,
		Architectures: make([]report.ArchitectureResult, len(archs)),
	}
	for i, arch := range archs {
		res.Architectures[i].Name = arch.Title()
	}

	r.logger.InfoWithFields("Starting experiment",
		logging.Field("mode", res.Mode),
		logging.Field("model", res.Model),
		logging.Field("queries", len(res.Queries)),
		logging.Field("runs", res.RequestedRuns),
	)
	r.audited(r.auditLog(func(a *audit.Logger) error {
		return a.LogExperimentStart(res.Mode, res.Model, len(res.Queries), res.RequestedRuns)
	}))

	var runErr error
runs:
	for run := 1; run <= r.opts.Runs; run++ {
		if r.opts.Runs > 1 {
			r.printf("\n%s\n  RUN %d of %d\n%s\n", rule(70), run, r.opts.Runs, rule(70))
		}
		for i, arch := range archs {
			m, misroutes, err := r.runArchitecture(ctx, run, arch)
			if err != nil {
				runErr = err
				break runs
			}
			res.Architectures[i].Runs = append(res.Architectures[i].Runs, m)
			res.Architectures[i].Misrouted = append(res.Architectures[i].Misrouted, misroutes...)
		}
	}

	summaries := make([]evaluate.Summary, 0, len(archs))
	for i := range res.Architectures {
		a := &res.Architectures[i]
		a.Summary = evaluate.Summarize(a.Name, a.Runs)
		if len(a.Runs) > 0 {
			summaries = append(summaries, a.Summary)
		}
	}
	threshold := evaluate.SingleRunTieThreshold
	if res.CompletedRuns() > 1 {
		threshold = 0
	}
	res.Comparison = evaluate.Compare(summaries, threshold)
	res.Duration = r.now().Sub(start)
	res.Interrupted = runErr != nil && isCanceled(runErr)

	usage := r.model.Usage()
	r.logger.InfoWithFields("Experiment finished",
		logging.Field("duration", res.Duration.String()),
		logging.Field("interrupted", res.Interrupted),
		logging.Field("llm_requests", usage.Requests),
		logging.Field("llm_failures", usage.Failures),
		logging.Field("prompt_tokens", usage.PromptTokens),
		logging.Field("candidate_tokens", usage.CandidateTokens),
		logging.Field("recommendation", res.Comparison.Recommendation),
	)
	r.audited(r.auditLog(func(a *audit.Logger) error {
		return a.LogExperimentEnd(res.Duration, res.Interrupted)
	}))

	return res, runErr
}

// runArchitecture runs every query once through a freshly built topology.
func (r *Runner) runArchitecture(ctx context.Context, run int, arch routing.Architecture) (evaluate.RunMetrics, []report.Misroute, error) {
	name := arch.String()
	logger := r.logger.WithFields(logging.Field("architecture", name), logging.Field("run", run))

	topo, err := routing.Build(arch, r.model, r.opts.Catalog)
	if err != nil {
		return evaluate.RunMetrics{}, nil, fmt.Errorf("failed to build %s topology: %w", name, err)
	}
	if reg, ok := r.opts.Model.(registrar); ok {
		reg.Register(topo)
	}

	dopts := routing.Options{
		AppName:      AppName,
		QueryTimeout: r.opts.QueryTimeout,
		Tracer:       r.opts.Tracer,
	}
	if r.opts.Audit != nil {
		dopts.Auditor = r.opts.Audit
	}
	d, err := routing.NewDispatcher(topo, dopts)
	if err != nil {
		return evaluate.RunMetrics{}, nil, err
	}

	r.audited(r.auditLog(func(a *audit.Logger) error {
		return a.LogRunStart(run, name, topo.AgentCount())
	}))
	logger.Info("Running %d queries through %d agents", len(r.opts.Queries), topo.AgentCount())

	if r.verbose {
		r.printf("\n%s\n  Testing %s Architecture\n%s\n", rule(70), strings.ToUpper(name), rule(70))
		r.printf("Architecture: %s\n", describe(arch, len(r.opts.Catalog.Domains)))
		r.printf("Queries: %d\n\n", len(r.opts.Queries))
	} else {
		r.printf("\nRunning %s (run %d)...\n", arch.Title(), run)
	}

	total := len(r.opts.Queries)
	outcomes := make([]routing.Outcome, 0, total)
	for i, q := range r.opts.Queries {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run interrupted after %d of %d queries", i, total)
			return evaluate.RunMetrics{}, nil, err
		}

		r.audited(r.auditLog(func(a *audit.Logger) error {
			return a.LogQueryStart(name, i, q.Text, q.Expected)
		}))

		out := d.Dispatch(ctx, q.Text)
		if out.Err != nil && ctx.Err() != nil {
			logger.Warn("Run interrupted after %d of %d queries", i, total)
			return evaluate.RunMetrics{}, nil, ctx.Err()
		}
		outcomes = append(outcomes, out)

		correct := out.Err == nil && evaluate.IsCorrect(out.RoutedTo, q.Expected)
		r.record(name, q, out, correct)

		logger.InfoWithFields("Query routed",
			logging.Field("index", i+1),
			logging.Field("query", q.Text),
			logging.Field("expected", q.Expected),
			logging.Field("routed_to", out.RoutedTo),
			logging.Field("correct", correct),
			logging.Field("hops", out.Hops),
			logging.Field("latency_s", out.Latency.Seconds()),
		)

		if r.verbose {
			r.printf("%s\n", report.FormatQuery(evaluate.Scored{Outcome: out, Expected: q.Expected, Correct: correct}))
		} else {
			r.printf("  [%d/%d] Tested: %s\n", i+1, total, truncate(q.Text, 40))
		}
	}

	scored := evaluate.Score(outcomes, r.opts.Queries)
	m := evaluate.CalculateRun(run, arch.Title(), scored)

	r.audited(r.auditLog(func(a *audit.Logger) error {
		return a.LogRunMetrics(name, m.Correct, m.Total, m.Accuracy, m.AvgLatency, m.AvgHops)
	}))
	logger.InfoWithFields("Run complete",
		logging.Field("accuracy", m.Accuracy),
		logging.Field("avg_latency", m.AvgLatency),
		logging.Field("avg_hops", m.AvgHops),
		logging.Field("errors", m.Errors),
	)

	if r.verbose {
		r.printf("%s RESULTS:\n%s\n%s", strings.ToUpper(name), rule(70), report.FormatRunMetrics(m))
	}
	return m, report.NewMisroutes(run, scored), nil
}

func (r *Runner) record(arch string, q catalog.Query, out routing.Outcome, correct bool) {
	if r.opts.Metrics != nil {
		r.opts.Metrics.ObserveQuery(arch, metrics.QueryOutcome(correct, out.Err), out.Latency, out.Hops)
	}

	if out.Err != nil {
		r.logger.ErrorWithErr("Query failed", out.Err)
		r.audited(r.auditLog(func(a *audit.Logger) error {
			return a.LogQueryError(arch, q.Text, out.Err)
		}))
		return
	}
	r.audited(r.auditLog(func(a *audit.Logger) error {
		return a.LogQueryRouted(arch, audit.Routed{
			Query:    q.Text,
			Expected: q.Expected,
			RoutedTo: out.RoutedTo,
			Correct:  correct,
			Hops:     out.Hops,
			Latency:  out.Latency,
			Path:     out.Path,
		})
	}))
}

func (r *Runner) auditLog(fn func(*audit.Logger) error) error {
	if r.opts.Audit == nil {
		return nil
	}
	return fn(r.opts.Audit)
}

// audited logs audit failures; the experiment continues without the trail.
func (r *Runner) audited(err error) {
	if err != nil {
		r.logger.Warn("Failed to write audit event: %v", err)
	}
}

func (r *Runner) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(r.opts.Out, format, args...)
}

func describe(arch routing.Architecture, domains int) string {
	switch arch {
	case routing.Centralized:
		return fmt.Sprintf("Root → %d Domain Agents", domains)
	case routing.Distributed:
		return fmt.Sprintf("Root → %d Domains → Sub-agents", domains)
	case routing.Direct:
		return fmt.Sprintf("Single classifier → %d labels", domains)
	default:
		return arch.String()
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func rule(n int) string {
	return strings.Repeat("=", n)
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}
