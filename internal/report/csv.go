package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/moolen/routebench/internal/evaluate"
)

// WriteCSV writes the results spreadsheet: a title block, the per-run
// summary, cross-run statistics and the test queries.
func WriteCSV(w io.Writer, r Results) error {
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"Routing Experiment Results"},
		{"Generated: " + r.Generated.Format("2006-01-02 15:04:05")},
		{fmt.Sprintf("Total Queries: %d", len(r.Queries))},
		{fmt.Sprintf("Total Runs: %d", r.CompletedRuns())},
		{},
		{"RUN SUMMARY"},
	}

	header := []string{"Run"}
	for _, a := range r.Architectures {
		short := shortName(a.Name)
		header = append(header, short+" Accuracy", short+" Latency (s)", short+" Hops")
	}
	rows = append(rows, header)

	for i := 0; i < r.CompletedRuns(); i++ {
		row := []string{strconv.Itoa(i + 1)}
		for _, a := range r.Architectures {
			m, ok := a.runAt(i)
			if !ok {
				row = append(row, "", "", "")
				continue
			}
			row = append(row, formatAccuracy(m), fmt.Sprintf("%.2f", m.AvgLatency), fmt.Sprintf("%.1f", m.AvgHops))
		}
		rows = append(rows, row)
	}

	rows = append(rows, []string{}, []string{"STATISTICS"})
	header = []string{"Metric"}
	for _, a := range r.Architectures {
		header = append(header, a.Name+" Avg", a.Name+" Min", a.Name+" Max")
	}
	rows = append(rows, header)
	rows = append(rows,
		statRow("Accuracy (%)", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Accuracy }),
		statRow("Latency (s)", "%.2f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Latency }),
		statRow("Hops", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Hops }),
	)

	rows = append(rows, []string{}, []string{"TEST QUERIES"}, []string{"Index", "Query", "Expected Domain"})
	for i, q := range r.Queries {
		rows = append(rows, []string{strconv.Itoa(i + 1), q.Text, q.Expected})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func statRow(label, format string, archs []ArchitectureResult, pick func(evaluate.Summary) evaluate.Stat) []string {
	row := []string{label}
	for _, a := range archs {
		st := pick(a.Summary)
		row = append(row, fmt.Sprintf(format, st.Avg), fmt.Sprintf(format, st.Min), fmt.Sprintf(format, st.Max))
	}
	return row
}

func formatAccuracy(m evaluate.RunMetrics) string {
	return fmt.Sprintf("%.1f%% (%d/%d)", m.Accuracy, m.Correct, m.Total)
}

// shortName abbreviates long architecture names for column headers.
func shortName(name string) string {
	if len(name) > 6 {
		return name[:4]
	}
	return name
}
