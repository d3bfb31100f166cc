package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/evaluate"
	"github.com/moolen/routebench/internal/routing"
)

func fixture() Results {
	cen := []evaluate.RunMetrics{
		{Run: 1, Architecture: "Centralized", Correct: 19, Total: 20, Accuracy: 95, AvgLatency: 2.1, AvgHops: 2},
		{Run: 2, Architecture: "Centralized", Correct: 18, Total: 20, Accuracy: 90, AvgLatency: 2.3, AvgHops: 2},
	}
	dist := []evaluate.RunMetrics{
		{Run: 1, Architecture: "Distributed", Correct: 17, Total: 20, Accuracy: 85, AvgLatency: 3.4, AvgHops: 3},
		{Run: 2, Architecture: "Distributed", Correct: 16, Total: 20, Accuracy: 80, AvgLatency: 3.6, AvgHops: 2.9},
	}
	summaries := []evaluate.Summary{
		evaluate.Summarize("Centralized", cen),
		evaluate.Summarize("Distributed", dist),
	}
	return Results{
		Generated: time.Date(2025, 3, 4, 15, 6, 7, 0, time.UTC),
		Mode:      "quick",
		Model:     "mock",
		Queries: []catalog.Query{
			{Text: "Book a flight to Paris", Expected: "travel"},
			{Text: "Check my bank balance, please", Expected: "finance"},
		},
		RequestedRuns: 2,
		Architectures: []ArchitectureResult{
			{
				Name:    "Centralized",
				Runs:    cen,
				Summary: summaries[0],
				Misrouted: []Misroute{
					{Run: 2, Query: "Show my financial report", Expected: "finance", RoutedTo: "data_analytics_agent"},
				},
			},
			{Name: "Distributed", Runs: dist, Summary: summaries[1]},
		},
		Comparison: evaluate.Compare(summaries, 0),
		Duration:   90 * time.Second,
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fixture()))

	// Blank separator lines are skipped by the reader.
	r := csv.NewReader(&buf)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"Routing Experiment Results"}, records[0])
	assert.Equal(t, []string{"Generated: 2025-03-04 15:06:07"}, records[1])
	assert.Equal(t, []string{"Total Queries: 2"}, records[2])
	assert.Equal(t, []string{"Total Runs: 2"}, records[3])
	assert.Equal(t, []string{"RUN SUMMARY"}, records[4])
	assert.Equal(t, []string{"Run", "Cent Accuracy", "Cent Latency (s)", "Cent Hops", "Dist Accuracy", "Dist Latency (s)", "Dist Hops"}, records[5])
	assert.Equal(t, []string{"1", "95.0% (19/20)", "2.10", "2.0", "85.0% (17/20)", "3.40", "3.0"}, records[6])
	assert.Equal(t, []string{"STATISTICS"}, records[8])
	assert.Equal(t, []string{"Accuracy (%)", "92.5", "90.0", "95.0", "82.5", "80.0", "85.0"}, records[10])
	assert.Equal(t, []string{"Latency (s)", "2.20", "2.10", "2.30", "3.50", "3.40", "3.60"}, records[11])

	last := records[len(records)-1]
	assert.Equal(t, []string{"2", "Check my bank balance, please", "finance"}, last)
}

func TestWriteCSV_UnevenRuns(t *testing.T) {
	res := fixture()
	res.Architectures[1].Runs = res.Architectures[1].Runs[:1]

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, res))
	assert.Contains(t, buf.String(), "2,90.0% (18/20),2.30,2.0,,,\n")
}

func TestRenderMarkdown(t *testing.T) {
	md := RenderMarkdown(fixture())

	assert.True(t, strings.HasPrefix(md, "# Routing Experiment Report\n"))
	assert.Contains(t, md, "| Mode | quick |")
	assert.Contains(t, md, "| Runs | 2 of 2 |")
	assert.Contains(t, md, "| Architectures | Centralized, Distributed |")
	assert.Contains(t, md, "| 1 | 95.0% (19/20) | 2.10 | 2.0 | 85.0% (17/20) | 3.40 | 3.0 |")
	assert.Contains(t, md, "| Accuracy (%) | 92.5 / 90.0 / 95.0 | 82.5 / 80.0 / 85.0 |")
	assert.Contains(t, md, "| Accuracy | Centralized |")
	assert.Contains(t, md, "**Centralized**: Best accuracy across the evaluated architectures")
	assert.Contains(t, md, "| Centralized | 2 | Show my financial report | finance | data_analytics_agent |")
	assert.NotContains(t, md, "Interrupted")
}

func TestRenderMarkdown_InterruptedAndEmpty(t *testing.T) {
	md := RenderMarkdown(Results{Mode: "direct", RequestedRuns: 3, Interrupted: true})
	assert.Contains(t, md, "**Interrupted:**")
	assert.Contains(t, md, "| Runs | 0 of 3 |")
	assert.Contains(t, md, "No recommendation")
	assert.Contains(t, md, "## Misrouted Queries\n\nNone.\n")
}

func TestRenderMarkdown_EscapesCells(t *testing.T) {
	res := fixture()
	res.Architectures[1].Misrouted = []Misroute{
		{Run: 1, Query: "a | b", Expected: "hr", RoutedTo: routing.ErrorLabel, Error: "quota exceeded"},
	}
	md := RenderMarkdown(res)
	assert.Contains(t, md, `| Distributed | 1 | a \| b | hr | error (quota exceeded) |`)
}

func TestNewMisroutes(t *testing.T) {
	scored := []evaluate.Scored{
		{Outcome: routing.Outcome{Query: "ok", RoutedTo: "travel_agent"}, Expected: "travel", Correct: true},
		{Outcome: routing.Outcome{Query: "bad", RoutedTo: "hr_agent"}, Expected: "finance"},
		{Outcome: routing.Outcome{Query: "err", RoutedTo: routing.ErrorLabel, Err: errors.New("boom")}, Expected: "hr"},
	}
	got := NewMisroutes(3, scored)
	require.Len(t, got, 2)
	assert.Equal(t, Misroute{Run: 3, Query: "bad", Expected: "finance", RoutedTo: "hr_agent"}, got[0])
	assert.Equal(t, "boom", got[1].Error)
}

func TestRenderTerminal(t *testing.T) {
	out := RenderTerminal(fixture())
	assert.Contains(t, out, "MULTI-RUN COMPARISON (2 runs)")
	assert.Contains(t, out, "95.0% (19/20)")
	assert.Contains(t, out, "avg:92.5 min:90.0 max:95.0")
	assert.Contains(t, out, "RECOMMENDATION:")
	assert.Contains(t, out, "Centralized")
}

func TestFormatQuery(t *testing.T) {
	s := evaluate.Scored{
		Outcome: routing.Outcome{
			Query:    "I need to book a flight to Tokyo for a business conference next month",
			RoutedTo: "travel_flights",
			Hops:     3,
			Latency:  1500 * time.Millisecond,
		},
		Expected: "travel",
		Correct:  true,
	}
	out := FormatQuery(s)
	assert.Contains(t, out, "Query: I need to book a flight to Tokyo for a business co...")
	assert.Contains(t, out, "→ Routed to: travel_flights")
	assert.Contains(t, out, "→ Hops: 3")
	assert.Contains(t, out, "→ Latency: 1.50s")
	assert.NotContains(t, out, "Error")
}

func TestRenderGlamour(t *testing.T) {
	out, err := RenderGlamour("# Routing Experiment Report\n\nSome text.", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "Routing Experiment Report")
	assert.Contains(t, out, "Some text.")
}

func TestDefaultNames(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "experiment_results_20250102_030405.csv", DefaultCSVName(ts))
	assert.Equal(t, "experiment_report_20250102_030405.md", DefaultMarkdownName(ts))
	assert.Equal(t, "experiment_20250102_030405.log", DefaultLogName(ts))
}

func TestWriteAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	res := fixture()
	abs := filepath.Join(t.TempDir(), "report.md")

	paths, err := WriteAll(context.Background(), dir, []Artifact{
		FileArtifact("results.csv", func(w io.Writer) error { return WriteCSV(w, res) }),
		FileArtifact(abs, func(w io.Writer) error {
			_, err := io.WriteString(w, RenderMarkdown(res))
			return err
		}),
	})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "results.csv"), abs}, paths)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestWriteAll_Error(t *testing.T) {
	_, err := WriteAll(context.Background(), t.TempDir(), []Artifact{
		{Path: "broken", Write: func(string) error { return errors.New("disk full") }},
	})
	assert.ErrorContains(t, err, "disk full")
}
