package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// TimestampLayout is the timestamp embedded in default artifact names.
const TimestampLayout = "20060102_150405"

// DefaultCSVName returns experiment_results_YYYYMMDD_HHMMSS.csv.
func DefaultCSVName(t time.Time) string {
	return "experiment_results_" + t.Format(TimestampLayout) + ".csv"
}

// DefaultMarkdownName returns experiment_report_YYYYMMDD_HHMMSS.md.
func DefaultMarkdownName(t time.Time) string {
	return "experiment_report_" + t.Format(TimestampLayout) + ".md"
}

// DefaultLogName returns experiment_YYYYMMDD_HHMMSS.log.
func DefaultLogName(t time.Time) string {
	return "experiment_" + t.Format(TimestampLayout) + ".log"
}

// Artifact is one output file of an experiment.
type Artifact struct {
	// Path is resolved against the output directory unless absolute.
	Path  string
	Write func(path string) error
}

// FileArtifact creates an artifact that streams content into a new file.
func FileArtifact(path string, write func(io.Writer) error) Artifact {
	return Artifact{
		Path: path,
		Write: func(p string) (err error) {
			// #nosec G304 -- artifact paths are user configuration
			f, err := os.Create(p)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := f.Close(); err == nil {
					err = cerr
				}
			}()
			return write(f)
		},
	}
}

// WriteAll writes artifacts concurrently into dir and returns their paths in
// input order. Writers that have not started are skipped once one fails.
func WriteAll(ctx context.Context, dir string, artifacts []Artifact) ([]string, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	paths := make([]string, len(artifacts))
	g, ctx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		path := a.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		paths[i] = path

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := a.Write(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}
