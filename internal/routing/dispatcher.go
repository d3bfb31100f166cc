package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/moolen/routebench/internal/logging"
)

const (
	defaultAppName = "routebench"
	defaultUserID  = "experiment"

	transferFunctionName = "transfer_to_agent"
)

// Auditor receives agent-level events while a query is dispatched.
type Auditor interface {
	LogAgentActivated(architecture, agent string) error
	LogAgentTransfer(architecture, from, to string) error
}

// Options configures a Dispatcher.
type Options struct {
	AppName string
	UserID  string

	// QueryTimeout bounds one dispatch. Zero means no bound.
	QueryTimeout time.Duration

	Tracer  trace.Tracer
	Auditor Auditor
}

// Outcome is the observable result of one dispatch.
type Outcome struct {
	Query    string
	Response string
	RoutedTo string
	Path     []string
	Hops     int
	Latency  time.Duration

	PromptTokens    int
	CandidateTokens int

	Err error
}

// Failed reports whether the dispatch ended with an error.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// Dispatcher sends queries through one topology, each in a fresh session.
type Dispatcher struct {
	topology *Topology
	runner   *runner.Runner
	sessions adksession.Service
	opts     Options
	logger   *logging.Logger
}

// NewDispatcher creates a runner for topology backed by an in-memory session service.
func NewDispatcher(topology *Topology, opts Options) (*Dispatcher, error) {
	if topology == nil || topology.Root == nil {
		return nil, errors.New("topology has no root agent")
	}
	if opts.AppName == "" {
		opts.AppName = defaultAppName
	}
	if opts.UserID == "" {
		opts.UserID = defaultUserID
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/moolen/routebench/internal/routing")
	}

	sessions := adksession.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        opts.AppName,
		Agent:          topology.Root,
		SessionService: sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner for %s: %w", topology.Architecture, err)
	}

	return &Dispatcher{
		topology: topology,
		runner:   r,
		sessions: sessions,
		opts:     opts,
		logger:   logging.GetLogger("routing.dispatch").WithField("architecture", topology.Architecture.String()),
	}, nil
}

// Architecture returns the architecture the dispatcher runs.
func (d *Dispatcher) Architecture() Architecture {
	return d.topology.Architecture
}

// Dispatch routes query through the topology. Failures are reported in
// Outcome.Err with RoutedTo set to ErrorLabel.
func (d *Dispatcher) Dispatch(ctx context.Context, query string) Outcome {
	arch := d.topology.Architecture.String()

	ctx, span := d.opts.Tracer.Start(ctx, "routing.dispatch", trace.WithAttributes(
		attribute.String("routing.architecture", arch),
		attribute.String("routing.query", query),
	))
	defer span.End()
	logger := d.logger.WithContext(ctx)

	if d.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.QueryTimeout)
		defer cancel()
	}

	out := Outcome{Query: query}

	sessionID := uuid.NewString()
	if _, err := d.sessions.Create(ctx, &adksession.CreateRequest{
		AppName:   d.opts.AppName,
		UserID:    d.opts.UserID,
		SessionID: sessionID,
	}); err != nil {
		return fail(logger, span, out, fmt.Errorf("failed to create session: %w", err))
	}

	userContent := &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: query},
		},
	}
	runConfig := agent.RunConfig{
		StreamingMode: agent.StreamingModeNone,
	}

	var (
		response     strings.Builder
		currentAgent string
		runErr       error
	)

	start := time.Now()
	for event, err := range d.runner.Run(ctx, d.opts.UserID, sessionID, userContent, runConfig) {
		if err != nil {
			runErr = err
			break
		}
		if event == nil {
			continue
		}

		if event.Author != "" && event.Author != "user" {
			out.Path = append(out.Path, event.Author)
			if event.Author != currentAgent {
				currentAgent = event.Author
				logger.Debug("Agent activated: %s", currentAgent)
				if d.opts.Auditor != nil {
					if err := d.opts.Auditor.LogAgentActivated(arch, currentAgent); err != nil {
						logger.Warn("Failed to write audit event: %v", err)
					}
				}
			}
		}

		if event.UsageMetadata != nil {
			out.PromptTokens += int(event.UsageMetadata.PromptTokenCount)
			out.CandidateTokens += int(event.UsageMetadata.CandidatesTokenCount)
		}

		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" && !part.Thought {
				response.WriteString(part.Text)
			}
			if part.FunctionCall != nil && part.FunctionCall.Name == transferFunctionName {
				target, _ := part.FunctionCall.Args["agent_name"].(string)
				logger.Debug("Transfer %s -> %s", event.Author, target)
				if d.opts.Auditor != nil {
					if err := d.opts.Auditor.LogAgentTransfer(arch, event.Author, target); err != nil {
						logger.Warn("Failed to write audit event: %v", err)
					}
				}
			}
		}
	}
	out.Latency = time.Since(start)

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	out.Response = response.String()
	out.Hops = CountHops(out.Path)
	if runErr != nil {
		return fail(logger, span, out, fmt.Errorf("agent error: %w", runErr))
	}

	out.RoutedTo = ExtractRoutedTo(out.Response, out.Path)
	span.SetAttributes(
		attribute.String("routing.routed_to", out.RoutedTo),
		attribute.Int("routing.hops", out.Hops),
	)
	return out
}

func fail(logger *logging.Logger, span trace.Span, out Outcome, err error) Outcome {
	out.Err = err
	out.RoutedTo = ErrorLabel
	if out.Hops == 0 {
		out.Hops = CountHops(out.Path)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.ErrorWithErr("Dispatch failed for query %q", err, out.Query)
	return out
}
