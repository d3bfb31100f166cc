package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/moolen/routebench/internal/evaluate"
)

// Color palette
var (
	colorPrimary = lipgloss.Color("#00D4FF") // Cyan
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorError   = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorDim     = lipgloss.Color("#4B5563") // Darker gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	correctStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)

	wrongStyle = lipgloss.NewStyle().Foreground(colorError).Bold(true)
)

func newTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

// RenderTerminal renders the run summary, statistics and comparison as
// console tables.
func RenderTerminal(r Results) string {
	var b strings.Builder

	title := "COMPARISON"
	if r.CompletedRuns() > 1 {
		title = fmt.Sprintf("MULTI-RUN COMPARISON (%d runs)", r.CompletedRuns())
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	headers := []string{"Run"}
	for _, a := range r.Architectures {
		short := shortName(a.Name)
		headers = append(headers, short+" Accuracy", short+" Latency", short+" Hops")
	}
	var rows [][]string
	for i := 0; i < r.CompletedRuns(); i++ {
		row := []string{fmt.Sprint(i + 1)}
		for _, a := range r.Architectures {
			m, ok := a.runAt(i)
			if !ok {
				row = append(row, "-", "-", "-")
				continue
			}
			row = append(row, formatAccuracy(m), fmt.Sprintf("%.2fs", m.AvgLatency), fmt.Sprintf("%.1f", m.AvgHops))
		}
		rows = append(rows, row)
	}
	b.WriteString(newTable(headers, rows))
	b.WriteString("\n")

	headers = []string{"Statistics"}
	for _, a := range r.Architectures {
		headers = append(headers, a.Name)
	}
	rows = [][]string{
		terminalStats("Accuracy", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Accuracy }),
		terminalStats("Latency", "%.2f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Latency }),
		terminalStats("Hops", "%.1f", r.Architectures, func(s evaluate.Summary) evaluate.Stat { return s.Hops }),
	}
	b.WriteString(newTable(headers, rows))
	b.WriteString("\n")

	c := r.Comparison
	rows = [][]string{
		{"Accuracy", c.AccuracyWinner},
		{"Latency", c.LatencyWinner},
		{"Hops", c.HopsWinner},
	}
	b.WriteString(newTable([]string{"Metric", "Winner"}, rows))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("RECOMMENDATION:"))
	b.WriteString("\n")
	if c.Recommendation != "" {
		fmt.Fprintf(&b, "  → %s\n  → %s\n", c.Recommendation, c.Reason)
	} else {
		b.WriteString(mutedStyle.Render("  no runs completed"))
		b.WriteString("\n")
	}
	return b.String()
}

func terminalStats(label, format string, archs []ArchitectureResult, pick func(evaluate.Summary) evaluate.Stat) []string {
	row := []string{label}
	for _, a := range archs {
		st := pick(a.Summary)
		row = append(row, fmt.Sprintf("avg:"+format+" min:"+format+" max:"+format, st.Avg, st.Min, st.Max))
	}
	return row
}

// FormatQuery renders one verbose per-query result.
func FormatQuery(s evaluate.Scored) string {
	status := correctStyle.Render("✓")
	if !s.Correct {
		status = wrongStyle.Render("✗")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Query: %s\n", status, truncate(s.Query, 50))
	fmt.Fprintf(&b, "  → Routed to: %s\n", s.RoutedTo)
	fmt.Fprintf(&b, "  → Hops: %d\n", s.Hops)
	fmt.Fprintf(&b, "  → Latency: %.2fs\n", s.Latency.Seconds())
	fmt.Fprintf(&b, "  → Expected: %s\n", s.Expected)
	if s.Err != nil {
		fmt.Fprintf(&b, "  → Error: %s\n", mutedStyle.Render(s.Err.Error()))
	}
	return b.String()
}

// FormatRunMetrics renders the accuracy, latency and hops line of one run.
func FormatRunMetrics(m evaluate.RunMetrics) string {
	return fmt.Sprintf("Accuracy: %.1f%% (%d/%d correct)\nAverage Latency: %.2fs\nAverage Hops: %.1f\n",
		m.Accuracy, m.Correct, m.Total, m.AvgLatency, m.AvgHops)
}

// RenderGlamour renders markdown for the terminal.
func RenderGlamour(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
