package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/moolen/routebench/internal/evaluate"
)

// RenderMarkdown renders the experiment report as GitHub-flavoured markdown.
func RenderMarkdown(r Results) string {
	var b strings.Builder

	b.WriteString("# Routing Experiment Report\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", r.Generated.Format("2006-01-02 15:04:05"))
	if r.Interrupted {
		b.WriteString("> **Interrupted:** results cover the runs completed before cancellation.\n\n")
	}

	b.WriteString("## Configuration\n\n")
	b.WriteString("| Setting | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Mode | %s |\n", r.Mode)
	fmt.Fprintf(&b, "| Model | %s |\n", r.Model)
	fmt.Fprintf(&b, "| Queries | %d |\n", len(r.Queries))
	fmt.Fprintf(&b, "| Runs | %d of %d |\n", r.CompletedRuns(), r.RequestedRuns)
	fmt.Fprintf(&b, "| Architectures | %s |\n", strings.Join(names(r.Architectures), ", "))
	if r.Duration > 0 {
		fmt.Fprintf(&b, "| Duration | %s |\n", r.Duration.Round(time.Millisecond))
	}
	b.WriteString("\n")

	b.WriteString("## Run Summary\n\n")
	header := []string{"Run"}
	for _, a := range r.Architectures {
		header = append(header, a.Name+" Accuracy", a.Name+" Latency (s)", a.Name+" Hops")
	}
	writeRow(&b, header)
	writeRule(&b, len(header))
	for i := 0; i < r.CompletedRuns(); i++ {
		row := []string{fmt.Sprint(i + 1)}
		for _, a := range r.Architectures {
			m, ok := a.runAt(i)
			if !ok {
				row = append(row, "-", "-", "-")
				continue
			}
			row = append(row, formatAccuracy(m), fmt.Sprintf("%.2f", m.AvgLatency), fmt.Sprintf("%.1f", m.AvgHops))
		}
		writeRow(&b, row)
	}
	b.WriteString("\n")

	b.WriteString("## Statistics\n\n")
	header = []string{"Metric"}
	for _, a := range r.Architectures {
		header = append(header, a.Name+" (avg / min / max)")
	}
	writeRow(&b, header)
	writeRule(&b, len(header))
	writeRow(&b, statCells("Accuracy (%)", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Accuracy }))
	writeRow(&b, statCells("Latency (s)", "%.2f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Latency }))
	writeRow(&b, statCells("Hops", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Hops }))
	b.WriteString("\n")

	c := r.Comparison
	b.WriteString("## Comparison\n\n")
	b.WriteString("| Metric | Winner |\n|---|---|\n")
	fmt.Fprintf(&b, "| Accuracy | %s |\n", c.AccuracyWinner)
	fmt.Fprintf(&b, "| Latency | %s |\n", c.LatencyWinner)
	fmt.Fprintf(&b, "| Hops | %s |\n", c.HopsWinner)
	b.WriteString("\n")

	b.WriteString("## Recommendation\n\n")
	if c.Recommendation == "" {
		b.WriteString("No recommendation: no runs completed.\n\n")
	} else {
		fmt.Fprintf(&b, "**%s**: %s\n\n", c.Recommendation, c.Reason)
	}

	b.WriteString("## Misrouted Queries\n\n")
	var total int
	for _, a := range r.Architectures {
		total += len(a.Misrouted)
	}
	if total == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	writeRow(&b, []string{"Architecture", "Run", "Query", "Expected", "Routed To"})
	writeRule(&b, 5)
	for _, a := range r.Architectures {
		for _, m := range a.Misrouted {
			routed := m.RoutedTo
			if m.Error != "" {
				routed += " (" + m.Error + ")"
			}
			writeRow(&b, []string{a.Name, fmt.Sprint(m.Run), m.Query, m.Expected, routed})
		}
	}
	return b.String()
}

func names(archs []ArchitectureResult) []string {
	out := make([]string, len(archs))
	for i, a := range archs {
		out[i] = a.Name
	}
	return out
}

func statCells(label, format string, archs []ArchitectureResult, pick func(evaluate.Summary) evaluate.Stat) []string {
	row := []string{label}
	for _, a := range archs {
		st := pick(a.Summary)
		row = append(row, fmt.Sprintf(format+" / "+format+" / "+format, st.Avg, st.Min, st.Max))
	}
	return row
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteString("|")
	for _, c := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(c))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func writeRule(b *strings.Builder, n int) {
	b.WriteString("|")
	for i := 0; i < n; i++ {
		b.WriteString("---|")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
