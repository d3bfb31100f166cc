// Package report renders experiment results as CSV, markdown and console
// tables, and writes the result artifacts to disk.
package report

import (
	"time"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/evaluate"
)

// Misroute is a query that did not reach its expected domain.
type Misroute struct {
	Run      int
	Query    string
	Expected string
	RoutedTo string
	Error    string
}

// ArchitectureResult holds everything measured for one architecture.
type ArchitectureResult struct {
	Name      string
	Runs      []evaluate.RunMetrics
	Summary   evaluate.Summary
	Misrouted []Misroute
}

// Results is the complete outcome of an experiment.
type Results struct {
	Generated time.Time
	Mode      string
	Model     string
	Queries   []catalog.Query
	// RequestedRuns is the configured run count; fewer runs are recorded
	// when the experiment was interrupted.
	RequestedRuns int
	Architectures []ArchitectureResult
	Comparison    evaluate.Comparison
	Duration      time.Duration
	Interrupted   bool
}

// CompletedRuns is the largest number of runs recorded for any architecture.
func (r Results) CompletedRuns() int {
	n := 0
	for _, a := range r.Architectures {
		n = max(n, len(a.Runs))
	}
	return n
}

// NewMisroutes converts the misrouted entries of one run.
func NewMisroutes(run int, scored []evaluate.Scored) []Misroute {
	var out []Misroute
	for _, s := range evaluate.Misrouted(scored) {
		m := Misroute{
			Run:      run,
			Query:    s.Query,
			Expected: s.Expected,
			RoutedTo: s.RoutedTo,
		}
		if s.Err != nil {
			m.Error = s.Err.Error()
		}
		out = append(out, m)
	}
	return out
}

// runAt returns the metrics of run i and whether the architecture has it.
func (a ArchitectureResult) runAt(i int) (evaluate.RunMetrics, bool) {
	if i < len(a.Runs) {
		return a.Runs[i], true
	}
	return evaluate.RunMetrics{}, false
}
