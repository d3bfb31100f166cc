package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
	"google.golang.org/adk/model"

	"github.com/moolen/routebench/internal/logging"
)

// Default guard settings.
const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultInterval           = 60 * time.Second
)

// Request outcomes reported to a RequestRecorder.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeCircuitOpen = "circuit_open"
)

// GuardConfig configures rate limiting and circuit breaking.
type GuardConfig struct {
	// RequestsPerMinute caps model calls. Zero disables the limiter.
	RequestsPerMinute int
	Burst             int

	// MaxFailures is the number of consecutive failures that open the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe is allowed.
	OpenTimeout time.Duration
	// Interval clears failure counts while the circuit is closed.
	Interval time.Duration
}

// RequestRecorder counts model requests by outcome.
type RequestRecorder interface {
	RecordLLMRequest(model, outcome string)
}

// Usage is a snapshot of the requests a Guarded model has served.
type Usage struct {
	Requests        int64
	Failures        int64
	PromptTokens    int64
	CandidateTokens int64
}

// Guarded wraps a model with a token bucket limiter and a circuit breaker.
type Guarded struct {
	inner    model.LLM
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[[]*model.LLMResponse]
	recorder RequestRecorder
	logger   *logging.Logger

	requests        atomic.Int64
	failures        atomic.Int64
	promptTokens    atomic.Int64
	candidateTokens atomic.Int64
}

// NewGuarded wraps inner. recorder may be nil.
func NewGuarded(inner model.LLM, cfg GuardConfig, recorder RequestRecorder) *Guarded {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	timeout := cfg.OpenTimeout
	if timeout == 0 {
		timeout = defaultOpenTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	logger := logging.GetLogger("llm.guard")

	g := &Guarded{
		inner:    inner,
		recorder: recorder,
		logger:   logger,
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute)/60.0, burst)
	}

	g.breaker = gobreaker.NewCircuitBreaker[[]*model.LLMResponse](gobreaker.Settings{
		Name:        "llm:" + inner.Name(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A canceled or timed out query says nothing about model health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnWithFields("Circuit breaker state change",
				logging.Field("breaker", name),
				logging.Field("from", from.String()),
				logging.Field("to", to.String()),
			)
		},
	})
	return g
}

// Name returns the wrapped model's name.
func (g *Guarded) Name() string {
	return g.inner.Name()
}

// GenerateContent waits for the limiter, then runs the wrapped call through
// the circuit breaker. Responses are collected before being yielded.
func (g *Guarded) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		g.requests.Add(1)

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				g.failures.Add(1)
				g.record(OutcomeRateLimited)
				yield(nil, fmt.Errorf("rate limiter: %w", err))
				return
			}
		}

		responses, err := g.breaker.Execute(func() ([]*model.LLMResponse, error) {
			var out []*model.LLMResponse
			for resp, err := range g.inner.GenerateContent(ctx, req, stream) {
				if err != nil {
					return nil, err
				}
				out = append(out, resp)
			}
			return out, nil
		})
		if err != nil {
			g.failures.Add(1)
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				g.record(OutcomeCircuitOpen)
				yield(nil, fmt.Errorf("model %q circuit open: %w", g.inner.Name(), err))
				return
			}
			g.record(OutcomeError)
			yield(nil, err)
			return
		}

		g.record(OutcomeSuccess)
		for _, resp := range responses {
			if resp != nil && resp.UsageMetadata != nil {
				g.promptTokens.Add(int64(resp.UsageMetadata.PromptTokenCount))
				g.candidateTokens.Add(int64(resp.UsageMetadata.CandidatesTokenCount))
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

// Usage returns the counters accumulated so far.
func (g *Guarded) Usage() Usage {
	return Usage{
		Requests:        g.requests.Load(),
		Failures:        g.failures.Load(),
		PromptTokens:    g.promptTokens.Load(),
		CandidateTokens: g.candidateTokens.Load(),
	}
}

// State returns the circuit breaker state.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guarded) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordLLMRequest(g.inner.Name(), outcome)
	}
}

var _ model.LLM = (*Guarded)(nil)
