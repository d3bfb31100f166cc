package routing_test

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/llm"
	"github.com/moolen/routebench/internal/logging"
	"github.com/moolen/routebench/internal/routing"
)

type recordingAuditor struct {
	mu        sync.Mutex
	activated []string
	transfers [][2]string
}

func (r *recordingAuditor) LogAgentActivated(_ string, agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activated = append(r.activated, agent)
	return nil
}

func (r *recordingAuditor) LogAgentTransfer(_ string, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, [2]string{from, to})
	return nil
}

type failingLLM struct{ err error }

func (f failingLLM) Name() string { return "failing" }

func (f failingLLM) GenerateContent(context.Context, *model.LLMRequest, bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		yield(nil, f.err)
	}
}

func newDispatcher(t *testing.T, arch routing.Architecture, auditor routing.Auditor) *routing.Dispatcher {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	kw := llm.NewKeywordLLM()
	topo, err := routing.Build(arch, kw, cat)
	require.NoError(t, err)
	kw.Register(topo)

	d, err := routing.NewDispatcher(topo, routing.Options{QueryTimeout: 10 * time.Second, Auditor: auditor})
	require.NoError(t, err)
	return d
}

func TestDispatch_Centralized(t *testing.T) {
	auditor := &recordingAuditor{}
	d := newDispatcher(t, routing.Centralized, auditor)

	out := d.Dispatch(context.Background(), "Reset my password")
	require.NoError(t, out.Err)

	assert.Equal(t, "Reset my password", out.Query)
	assert.Equal(t, "it_support_agent", out.RoutedTo)
	assert.Contains(t, out.Path, routing.CentralCoordinatorName)
	assert.Contains(t, out.Path, "it_support_agent")
	assert.Equal(t, 2, out.Hops)
	assert.Positive(t, out.Latency)
	assert.Contains(t, out.Response, "[ROUTED_TO: it_support_agent]")

	assert.Contains(t, auditor.activated, "it_support_agent")
	assert.Contains(t, auditor.transfers, [2]string{routing.CentralCoordinatorName, "it_support_agent"})
}

func TestDispatch_Distributed(t *testing.T) {
	d := newDispatcher(t, routing.Distributed, nil)

	out := d.Dispatch(context.Background(), "I need to book a flight to Tokyo")
	require.NoError(t, out.Err)

	assert.Equal(t, "travel_flights", out.RoutedTo)
	assert.Equal(t, 3, out.Hops)
	assert.Equal(t, routing.DistributedCoordinatorName, out.Path[0])
	assert.Contains(t, out.Path, "travel_domain")
}

func TestDispatch_Direct(t *testing.T) {
	d := newDispatcher(t, routing.Direct, nil)

	out := d.Dispatch(context.Background(), "Where is my order?")
	require.NoError(t, out.Err)

	assert.Equal(t, "customer_service", out.RoutedTo)
	assert.Equal(t, 1, out.Hops)
	assert.Equal(t, []string{routing.DirectRouterName}, out.Path)
}

func TestDispatch_SessionsAreIndependent(t *testing.T) {
	d := newDispatcher(t, routing.Centralized, nil)

	first := d.Dispatch(context.Background(), "Check my bank balance")
	second := d.Dispatch(context.Background(), "Connect to WiFi")
	require.NoError(t, first.Err)
	require.NoError(t, second.Err)

	assert.Equal(t, "finance_agent", first.RoutedTo)
	assert.Equal(t, "it_support_agent", second.RoutedTo)
	assert.NotContains(t, second.Path, "finance_agent")
}

type failingAuditor struct{}

func (failingAuditor) LogAgentActivated(string, string) error { return errors.New("disk full") }

func (failingAuditor) LogAgentTransfer(string, string, string) error { return errors.New("disk full") }

func TestDispatch_AuditFailuresAreLogged(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "dispatch.log")
	closeLog, err := logging.AddFileSink(logPath)
	require.NoError(t, err)

	d := newDispatcher(t, routing.Centralized, failingAuditor{})
	out := d.Dispatch(context.Background(), "Reset my password")
	require.NoError(t, closeLog())

	require.NoError(t, out.Err, "audit failures do not fail the query")
	assert.Equal(t, "it_support_agent", out.RoutedTo)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Failed to write audit event: disk full")
}

func TestDispatch_ModelFailure(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	topo, err := routing.Build(routing.Direct, failingLLM{err: errors.New("quota exceeded")}, cat)
	require.NoError(t, err)
	d, err := routing.NewDispatcher(topo, routing.Options{})
	require.NoError(t, err)

	out := d.Dispatch(context.Background(), "Reset my password")
	require.Error(t, out.Err)
	assert.True(t, out.Failed())
	assert.Contains(t, out.Err.Error(), "quota exceeded")
	assert.Equal(t, routing.ErrorLabel, out.RoutedTo)
	assert.GreaterOrEqual(t, out.Hops, 1)
}

func TestDispatch_CanceledContext(t *testing.T) {
	d := newDispatcher(t, routing.Centralized, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := d.Dispatch(ctx, "Reset my password")
	require.Error(t, out.Err)
	assert.Equal(t, routing.ErrorLabel, out.RoutedTo)
}

func TestNewDispatcher_RequiresRoot(t *testing.T) {
	_, err := routing.NewDispatcher(&routing.Topology{}, routing.Options{})
	assert.Error(t, err)
}
