package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/routebench/internal/catalog"
)

func TestParseLogLevelFlags(t *testing.T) {
	t.Setenv("LOG_LEVEL_ROUTING_DISPATCH", "debug")

	def, pkgs, err := parseLogLevelFlags([]string{"warn", "llm.guard=error"})
	require.NoError(t, err)
	assert.Equal(t, "warn", def)
	assert.Equal(t, "debug", pkgs["routing.dispatch"])
	assert.Equal(t, "error", pkgs["llm.guard"])

	def, pkgs, err = parseLogLevelFlags([]string{"routing.dispatch=info"})
	require.NoError(t, err)
	assert.Equal(t, "info", def)
	assert.Equal(t, "info", pkgs["routing.dispatch"], "flags override the environment")
}

func TestParseLogLevelFlags_Invalid(t *testing.T) {
	_, _, err := parseLogLevelFlags([]string{"loud"})
	assert.Error(t, err)

	_, _, err = parseLogLevelFlags([]string{"experiment=verbose"})
	assert.ErrorContains(t, err, `package "experiment"`)
}

func TestConvertEnvKeyToPackageName(t *testing.T) {
	assert.Equal(t, "routing.dispatch", convertEnvKeyToPackageName("LOG_LEVEL_ROUTING_DISPATCH"))
	assert.Equal(t, "experiment", convertEnvKeyToPackageName("LOG_LEVEL_EXPERIMENT"))
}

func TestCatalogMarkdown(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)

	md := catalogMarkdown(cat)
	assert.Contains(t, md, "# Domain Catalog")
	assert.Contains(t, md, "| 1 | I need to book a flight to Tokyo | travel |")
	assert.Contains(t, md, "## Routing Hints")
	assert.Contains(t, md, "- travel: ")
}

func TestRunCommand_MockEndToEnd(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"run",
		"--model", "mock",
		"--mode", "direct",
		"--queries", "3",
		"--output-dir", dir,
		"--metrics-file", "routebench.prom",
		"--audit-log", filepath.Join(dir, "audit.jsonl"),
		"--log-level", "error",
		"--log-level", "experiment=info",
	})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, Execute())

	assert.Contains(t, out.String(), "ROUTING EXPERIMENT: direct mode, 3 queries")
	assert.Contains(t, out.String(), "RECOMMENDATION:")
	assert.Contains(t, out.String(), "Results saved to:")

	for _, pattern := range []string{"experiment_results_*.csv", "experiment_report_*.md", "experiment_*.log", "routebench.prom", "audit.jsonl"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		require.NoError(t, err)
		assert.NotEmpty(t, matches, pattern)
	}

	logs, err := filepath.Glob(filepath.Join(dir, "experiment_2*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	logData, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(logData), "Query routed"), "one routing decision per query")
	assert.Contains(t, string(logData), "routed_to")
	assert.Contains(t, string(logData), "latency_s")

	prom, err := os.ReadFile(filepath.Join(dir, "routebench.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `routebench_queries_total{architecture="direct",outcome="correct"} 3`)
}

func TestResolveConfig_TracingTLSFlags(t *testing.T) {
	flags := runCmd.Flags()
	t.Cleanup(func() {
		_ = flags.Set("tracing-endpoint", "")
		_ = flags.Set("tracing-tls-ca", "")
		_ = flags.Set("tracing-tls-insecure", "false")
	})

	require.NoError(t, flags.Set("tracing-endpoint", "collector:4317"))
	require.NoError(t, flags.Set("tracing-tls-insecure", "true"))

	cfg, err := resolveConfig(runCmd)
	require.NoError(t, err)
	assert.Equal(t, "collector:4317", cfg.TracingEndpoint)
	assert.True(t, cfg.TracingTLSInsecure)
	assert.Empty(t, cfg.TracingTLSCAPath)

	require.NoError(t, flags.Set("tracing-tls-ca", "/etc/ca.pem"))
	_, err = resolveConfig(runCmd)
	assert.ErrorContains(t, err, "mutually exclusive")
}
