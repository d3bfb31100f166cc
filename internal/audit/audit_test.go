package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestLogger_WriteEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	logger, err := NewLogger(logPath, "exp-123")
	require.NoError(t, err)

	require.NoError(t, logger.LogExperimentStart("quick", "mock", 20, 1))
	require.NoError(t, logger.LogRunStart(1, "centralized", 38))
	require.NoError(t, logger.LogQueryStart("centralized", 0, "Reset my password", "it_support"))
	require.NoError(t, logger.LogAgentActivated("centralized", "central_coordinator"))
	require.NoError(t, logger.LogAgentTransfer("centralized", "central_coordinator", "it_support_agent"))
	require.NoError(t, logger.LogQueryRouted("centralized", Routed{
		Query:    "Reset my password",
		Expected: "it_support",
		RoutedTo: "it_support_agent",
		Correct:  true,
		Hops:     2,
		Latency:  1500 * time.Millisecond,
		Path:     []string{"central_coordinator", "it_support_agent"},
	}))
	require.NoError(t, logger.LogQueryError("centralized", "Book a flight", errors.New("quota exceeded")))
	require.NoError(t, logger.LogRunMetrics("centralized", 19, 20, 95, 2.1, 2))
	require.NoError(t, logger.LogExperimentEnd(5*time.Second, false))
	require.NoError(t, logger.Close())

	events := readEvents(t, logPath)
	expectedTypes := []EventType{
		EventTypeExperimentStart,
		EventTypeRunStart,
		EventTypeQueryStart,
		EventTypeAgentActivated,
		EventTypeAgentTransfer,
		EventTypeQueryRouted,
		EventTypeQueryError,
		EventTypeRunMetrics,
		EventTypeExperimentEnd,
	}
	require.Len(t, events, len(expectedTypes))

	for i, event := range events {
		assert.Equal(t, expectedTypes[i], event.Type, "event %d", i)
		assert.Equal(t, "exp-123", event.ExperimentID)
		assert.False(t, event.Timestamp.IsZero())
	}

	assert.Equal(t, 0, events[0].Run, "experiment start precedes any run")
	for _, event := range events[1:] {
		assert.Equal(t, 1, event.Run)
	}

	transfer := events[4]
	assert.Equal(t, "central_coordinator", transfer.Agent)
	assert.Equal(t, "it_support_agent", transfer.Data["to"])

	routed := events[5]
	assert.Equal(t, "it_support_agent", routed.Agent)
	assert.Equal(t, true, routed.Data["correct"])
	assert.Equal(t, float64(1500), routed.Data["latency_ms"])
	assert.Equal(t, float64(2), routed.Data["hops"])

	assert.Equal(t, "quota exceeded", events[6].Data["error"])
}

func TestLogger_RunTagFollowsLatestRun(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	logger, err := NewLogger(logPath, "exp-runs")
	require.NoError(t, err)

	require.NoError(t, logger.LogRunStart(1, "centralized", 38))
	require.NoError(t, logger.LogAgentActivated("centralized", "central_coordinator"))
	require.NoError(t, logger.LogRunStart(2, "distributed", 101))
	require.NoError(t, logger.LogAgentActivated("distributed", "distributed_coordinator"))
	require.NoError(t, logger.Close())

	events := readEvents(t, logPath)
	require.Len(t, events, 4)
	assert.Equal(t, []int{1, 1, 2, 2}, []int{events[0].Run, events[1].Run, events[2].Run, events[3].Run})
	assert.Equal(t, "distributed", events[3].Architecture)
}

func TestLogger_AppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")

	for _, id := range []string{"first", "second"} {
		logger, err := NewLogger(logPath, id)
		require.NoError(t, err)
		require.NoError(t, logger.LogExperimentStart("direct", "mock", 5, 1))
		require.NoError(t, logger.Close())
	}

	events := readEvents(t, logPath)
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].ExperimentID)
	assert.Equal(t, "second", events[1].ExperimentID)
}

func TestNewLogger_InvalidPath(t *testing.T) {
	_, err := NewLogger(filepath.Join(t.TempDir(), "missing", "audit.jsonl"), "exp")
	assert.ErrorContains(t, err, "failed to open audit log file")
}
