package experiment

import (
	"context"
	"io"

	"github.com/moolen/routebench/internal/metrics"
	"github.com/moolen/routebench/internal/report"
)

// Outputs names the artifacts written after an experiment. Empty CSV and
// Markdown paths fall back to timestamped defaults; an empty Metrics path
// skips the metrics textfile.
type Outputs struct {
	Dir      string
	CSV      string
	Markdown string
	Metrics  string
}

// Save writes the CSV results, the markdown report and, when configured,
// the metrics textfile. It returns the written paths.
func Save(ctx context.Context, res report.Results, out Outputs, m *metrics.Metrics) ([]string, error) {
	csvPath := out.CSV
	if csvPath == "" {
		csvPath = report.DefaultCSVName(res.Generated)
	}
	mdPath := out.Markdown
	if mdPath == "" {
		mdPath = report.DefaultMarkdownName(res.Generated)
	}

	artifacts := []report.Artifact{
		report.FileArtifact(csvPath, func(w io.Writer) error {
			return report.WriteCSV(w, res)
		}),
		report.FileArtifact(mdPath, func(w io.Writer) error {
			_, err := io.WriteString(w, report.RenderMarkdown(res))
			return err
		}),
	}
	if out.Metrics != "" && m != nil {
		artifacts = append(artifacts, report.Artifact{Path: out.Metrics, Write: m.WriteTextfile})
	}

	return report.WriteAll(ctx, out.Dir, artifacts)
}
