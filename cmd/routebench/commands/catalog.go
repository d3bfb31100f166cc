package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moolen/routebench/internal/catalog"
	"github.com/moolen/routebench/internal/report"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the domain catalog and test queries",
	Long: `Show the domains, routing hints and test queries the experiment uses.

Examples:
  # Render the embedded catalog
  routebench catalog

  # Validate a custom catalog file
  routebench catalog --catalog my-catalog.yaml --validate
`,
	RunE: runCatalog,
}

var (
	catalogPath     string
	catalogValidate bool
	catalogRaw      bool
	catalogWidth    int
)

func init() {
	catalogCmd.Flags().StringVar(&catalogPath, "catalog", "", "Domain catalog YAML (default: embedded catalog)")
	catalogCmd.Flags().BoolVar(&catalogValidate, "validate", false, "Only validate the catalog and print a summary")
	catalogCmd.Flags().BoolVar(&catalogRaw, "raw", false, "Print markdown without terminal rendering (default when stdout is not a terminal)")
	catalogCmd.Flags().IntVar(&catalogWidth, "width", 0, "Word wrap width for terminal rendering (default: terminal width)")
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	if err := setupLog(logLevelFlags); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	cat, err := loadCatalog(catalogPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if catalogValidate {
		fmt.Fprintf(out, "Catalog OK: %d domains, %d routing hints, %d test queries\n",
			len(cat.Domains), len(cat.Hints), len(cat.Queries))
		return nil
	}

	md := catalogMarkdown(cat)
	if catalogRaw || !isTerminal() {
		fmt.Fprint(out, md)
		return nil
	}
	width := catalogWidth
	if width <= 0 {
		width = terminalWidth(100)
	}
	rendered, err := report.RenderGlamour(md, width)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}

func catalogMarkdown(cat *catalog.Catalog) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Domain Catalog\n\n%d domains, %d test queries.\n\n", len(cat.Domains), len(cat.Queries))

	b.WriteString("## Domains\n\n| Domain | Description | Sub-agents |\n|---|---|---|\n")
	for _, d := range cat.Domains {
		subs := make([]string, len(d.SubAgents))
		for i, s := range d.SubAgents {
			subs[i] = s.Name
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", d.Name, d.Description, strings.Join(subs, ", "))
	}

	if len(cat.Hints) > 0 {
		b.WriteString("\n## Routing Hints\n\n")
		for _, h := range cat.Hints {
			fmt.Fprintf(&b, "- %s → **%s**\n", strings.Join(h.Phrases, ", "), h.Domain)
		}
	}

	b.WriteString("\n## Test Queries\n\n| # | Query | Expected |\n|---|---|---|\n")
	for i, q := range cat.Queries {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", i+1, q.Text, q.Expected)
	}

	counts := catalog.LabelCounts(cat.Queries)
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	b.WriteString("\n## Queries per Domain\n\n")
	for _, l := range labels {
		fmt.Fprintf(&b, "- %s: %d\n", l, counts[l])
	}
	return b.String()
}
