// Package audit records every routing decision of an experiment to a JSONL
// file so that runs can be inspected and compared after the fact.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// EventTypeExperimentStart marks the start of an experiment.
	EventTypeExperimentStart EventType = "experiment_start"
	// EventTypeRunStart marks the start of one architecture run.
	EventTypeRunStart EventType = "run_start"
	// EventTypeQueryStart marks a query being dispatched.
	EventTypeQueryStart EventType = "query_start"
	// EventTypeAgentActivated marks when an agent becomes active.
	EventTypeAgentActivated EventType = "agent_activated"
	// EventTypeAgentTransfer logs when control transfers between agents.
	EventTypeAgentTransfer EventType = "agent_transfer"
	// EventTypeQueryRouted records the routing decision for a query.
	EventTypeQueryRouted EventType = "query_routed"
	// EventTypeQueryError records a failed dispatch.
	EventTypeQueryError EventType = "query_error"
	// EventTypeRunMetrics logs the metrics of a finished run.
	EventTypeRunMetrics EventType = "run_metrics"
	// EventTypeExperimentEnd marks the end of an experiment.
	EventTypeExperimentEnd EventType = "experiment_end"
)

// Event represents a single audit log event.
type Event struct {
	Timestamp    time.Time              `json:"timestamp"`
	Type         EventType              `json:"type"`
	ExperimentID string                 `json:"experiment_id"`
	Architecture string                 `json:"architecture,omitempty"`
	Run          int                    `json:"run,omitempty"`
	Agent        string                 `json:"agent,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Routed is the audit view of one routing decision.
type Routed struct {
	Query    string
	Expected string
	RoutedTo string
	Correct  bool
	Hops     int
	Latency  time.Duration
	Path     []string
}

// Logger writes audit events to a JSONL file.
type Logger struct {
	file         *os.File
	writer       *bufio.Writer
	mutex        sync.Mutex
	experimentID string
	run          int
}

// NewLogger creates an audit logger appending to filePath.
func NewLogger(filePath, experimentID string) (*Logger, error) {
	// #nosec G304 -- audit log path is user configuration
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:         file,
		writer:       bufio.NewWriter(file),
		experimentID: experimentID,
	}, nil
}

func (l *Logger) write(event Event) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	event.Timestamp = time.Now()
	event.ExperimentID = l.experimentID
	if event.Run == 0 {
		event.Run = l.run
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	if err := l.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	// Flush immediately so an interrupted experiment keeps its trail.
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush audit log: %w", err)
	}
	return nil
}

// LogExperimentStart logs the experiment configuration.
func (l *Logger) LogExperimentStart(mode, model string, queries, runs int) error {
	return l.write(Event{
		Type: EventTypeExperimentStart,
		Data: map[string]interface{}{
			"mode":    mode,
			"model":   model,
			"queries": queries,
			"runs":    runs,
		},
	})
}

// LogRunStart logs the start of a run and tags later events with its number.
func (l *Logger) LogRunStart(run int, architecture string, agents int) error {
	l.mutex.Lock()
	l.run = run
	l.mutex.Unlock()

	return l.write(Event{
		Type:         EventTypeRunStart,
		Architecture: architecture,
		Run:          run,
		Data: map[string]interface{}{
			"agents": agents,
		},
	})
}

// LogQueryStart logs a query about to be dispatched.
func (l *Logger) LogQueryStart(architecture string, index int, query, expected string) error {
	return l.write(Event{
		Type:         EventTypeQueryStart,
		Architecture: architecture,
		Data: map[string]interface{}{
			"index":    index,
			"query":    query,
			"expected": expected,
		},
	})
}

// LogAgentActivated logs when an agent becomes active.
func (l *Logger) LogAgentActivated(architecture, agent string) error {
	return l.write(Event{
		Type:         EventTypeAgentActivated,
		Architecture: architecture,
		Agent:        agent,
	})
}

// LogAgentTransfer logs when control transfers between agents.
func (l *Logger) LogAgentTransfer(architecture, from, to string) error {
	return l.write(Event{
		Type:         EventTypeAgentTransfer,
		Architecture: architecture,
		Agent:        from,
		Data: map[string]interface{}{
			"to": to,
		},
	})
}

// LogQueryRouted logs the routing decision for a query.
func (l *Logger) LogQueryRouted(architecture string, r Routed) error {
	return l.write(Event{
		Type:         EventTypeQueryRouted,
		Architecture: architecture,
		Agent:        r.RoutedTo,
		Data: map[string]interface{}{
			"query":      r.Query,
			"expected":   r.Expected,
			"routed_to":  r.RoutedTo,
			"correct":    r.Correct,
			"hops":       r.Hops,
			"latency_ms": r.Latency.Milliseconds(),
			"path":       r.Path,
		},
	})
}

// LogQueryError logs a failed dispatch.
func (l *Logger) LogQueryError(architecture, query string, err error) error {
	return l.write(Event{
		Type:         EventTypeQueryError,
		Architecture: architecture,
		Data: map[string]interface{}{
			"query": query,
			"error": err.Error(),
		},
	})
}

// LogRunMetrics logs the metrics of a finished run.
func (l *Logger) LogRunMetrics(architecture string, correct, total int, accuracy, avgLatency, avgHops float64) error {
	return l.write(Event{
		Type:         EventTypeRunMetrics,
		Architecture: architecture,
		Data: map[string]interface{}{
			"correct":       correct,
			"total":         total,
			"accuracy":      accuracy,
			"avg_latency_s": avgLatency,
			"avg_hops":      avgHops,
		},
	})
}

// LogExperimentEnd logs the end of the experiment.
func (l *Logger) LogExperimentEnd(duration time.Duration, interrupted bool) error {
	return l.write(Event{
		Type: EventTypeExperimentEnd,
		Data: map[string]interface{}{
			"duration_ms": duration.Milliseconds(),
			"interrupted": interrupted,
		},
	})
}

// Close flushes pending writes and closes the file.
func (l *Logger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var errs []error
	if err := l.writer.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush audit log: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log file: %w", err))
	}
	return errors.Join(errs...)
}
