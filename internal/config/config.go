// Package config holds the experiment configuration and credential loading.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Modes accepted by the experiment.
var validModes = map[string]bool{
	"quick":       true,
	"compare":     true,
	"centralized": true,
	"distributed": true,
	"direct":      true,
}

// Config holds all configuration for an experiment run.
type Config struct {
	// Mode selects which architectures are exercised.
	Mode string `yaml:"mode"`

	// Queries is the number of test queries taken from the start of the query set.
	Queries int `yaml:"queries"`

	// Runs is how many times each architecture is run over the query set.
	Runs int `yaml:"runs"`

	// Output is the CSV results path. Empty means a timestamped name in OutputDir.
	Output string `yaml:"output"`

	// ReportPath is the markdown report path. Empty means a timestamped name in OutputDir.
	ReportPath string `yaml:"report"`

	// OutputDir is where timestamped artifacts are written.
	OutputDir string `yaml:"output_dir"`

	// Model is the Gemini model name, or "mock" for the offline keyword router.
	Model string `yaml:"model"`

	// CatalogPath overrides the embedded domain catalog.
	CatalogPath string `yaml:"catalog"`

	// QueryTimeout bounds a single query dispatch. Zero disables the bound.
	QueryTimeout time.Duration `yaml:"query_timeout"`

	// RequestsPerMinute limits model calls. Zero disables rate limiting.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the rate limiter burst size.
	Burst int `yaml:"burst"`

	// BreakerFailures is the number of consecutive model failures that open
	// the circuit breaker.
	BreakerFailures uint32 `yaml:"breaker_failures"`

	// AuditLogPath enables a JSONL audit trail of every routing event.
	AuditLogPath string `yaml:"audit_log"`

	// MetricsPath writes Prometheus metrics in text format at the end of the run.
	MetricsPath string `yaml:"metrics_file"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export.
	TracingEndpoint string `yaml:"tracing_endpoint"`

	// TracingTLSCAPath is a CA certificate used to verify the tracing endpoint.
	TracingTLSCAPath string `yaml:"tracing_tls_ca"`

	// TracingTLSInsecure enables TLS to the tracing endpoint without
	// certificate verification.
	TracingTLSInsecure bool `yaml:"tracing_tls_insecure"`

	// TraceFile writes spans as JSON to a local file.
	TraceFile string `yaml:"trace_file"`

	// NoLogFile disables the timestamped experiment log file.
	NoLogFile bool `yaml:"no_log_file"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Mode:              "quick",
		Queries:           20,
		Runs:              1,
		OutputDir:         ".",
		Model:             "gemini-2.5-flash",
		QueryTimeout:      2 * time.Minute,
		RequestsPerMinute: 0,
		Burst:             1,
		BreakerFailures:   5,
	}
}

// LoadFile overlays the YAML file at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return base, fmt.Errorf("failed to load config from %q: %w", path, err)
	}

	cfg := base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return base, fmt.Errorf("failed to parse config from %q: %w", path, err)
	}
	return cfg, nil
}

// IsMock reports whether the offline keyword model is selected.
func (c *Config) IsMock() bool {
	return c.Model == "mock"
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !validModes[c.Mode] {
		errs = append(errs, NewConfigError(fmt.Sprintf("mode %q must be one of quick, compare, centralized, distributed, direct", c.Mode)))
	}
	if c.Queries < 1 {
		errs = append(errs, NewConfigError("queries must be at least 1"))
	}
	if c.Runs < 1 {
		errs = append(errs, NewConfigError("runs must be at least 1"))
	}
	if c.Model == "" {
		errs = append(errs, NewConfigError("model must not be empty"))
	}
	if c.QueryTimeout < 0 {
		errs = append(errs, NewConfigError("query timeout must not be negative"))
	}
	if c.RequestsPerMinute < 0 {
		errs = append(errs, NewConfigError("requests per minute must not be negative"))
	}
	if c.RequestsPerMinute > 0 && c.Burst < 1 {
		errs = append(errs, NewConfigError("burst must be at least 1 when rate limiting is enabled"))
	}
	if c.TracingEndpoint == "" && (c.TracingTLSCAPath != "" || c.TracingTLSInsecure) {
		errs = append(errs, NewConfigError("tracing TLS options require a tracing endpoint"))
	}
	if c.TracingTLSCAPath != "" && c.TracingTLSInsecure {
		errs = append(errs, NewConfigError("tracing TLS CA and insecure mode are mutually exclusive"))
	}

	return errors.Join(errs...)
}

// ConfigError represents a configuration error
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return e.message
}
