// Package tracing configures the OpenTelemetry tracer provider used for
// per-query dispatch spans.
package tracing

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/moolen/routebench/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "routebench"

// Provider wraps the OpenTelemetry TracerProvider.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	traceFile      *os.File
	logger         *logging.Logger
	enabled        bool
}

// Config holds tracing configuration. Tracing is enabled when Endpoint or
// File is set.
type Config struct {
	Endpoint    string // OTLP gRPC endpoint (e.g., "localhost:4317")
	TLSCAPath   string // Path to CA certificate for TLS verification (optional)
	TLSInsecure bool   // Skip TLS certificate verification (insecure)
	File        string // Write spans as JSON to this file
	Version     string
}

// Enabled reports whether any exporter is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != "" || c.File != ""
}

// NewProvider creates the tracer provider and installs it globally.
func NewProvider(cfg Config) (*Provider, error) {
	logger := logging.GetLogger("tracing")

	if !cfg.Enabled() {
		logger.Debug("Tracing disabled")
		return &Provider{logger: logger}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	p := &Provider{logger: logger, enabled: true}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}

	if cfg.Endpoint != "" {
		exporter, err := newOTLPExporter(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
		logger.Info("Tracing to OTLP endpoint: %s", cfg.Endpoint)
	}

	if cfg.File != "" {
		// #nosec G304 -- trace file path is user configuration
		file, err := os.Create(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace file: %w", err)
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(file), stdouttrace.WithPrettyPrint())
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to create file exporter: %w", err)
		}
		p.traceFile = file
		opts = append(opts, sdktrace.WithSyncer(exporter))
		logger.Info("Tracing to file: %s", cfg.File)
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		p.closeFile()
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	opts = append(opts, sdktrace.WithResource(res))

	p.tracerProvider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(p.tracerProvider)
	return p, nil
}

func newOTLPExporter(ctx context.Context, cfg Config, logger *logging.Logger) (sdktrace.SpanExporter, error) {
	var dialOptions []grpc.DialOption
	var otlpOptions []otlptracegrpc.Option

	if cfg.TLSCAPath != "" || cfg.TLSInsecure {
		var tlsConfig *tls.Config

		if cfg.TLSInsecure {
			tlsConfig = &tls.Config{
				InsecureSkipVerify: true, // #nosec G402 -- opt-in via --tracing-tls-insecure
				MinVersion:         tls.VersionTLS12,
			}
			logger.Warn("TLS enabled for tracing with certificate verification disabled")
		} else {
			caCert, err := os.ReadFile(cfg.TLSCAPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}

			certPool := x509.NewCertPool()
			if !certPool.AppendCertsFromPEM(caCert) {
				return nil, fmt.Errorf("failed to append CA certificate to pool")
			}

			tlsConfig = &tls.Config{
				RootCAs:    certPool,
				MinVersion: tls.VersionTLS12,
			}
			logger.Debug("TLS enabled for tracing with CA from: %s", cfg.TLSCAPath)
		}

		dialOptions = append(dialOptions, grpc.WithTransportCredentials(credentials.NewTLS(tlsConfig)))
	} else {
		dialOptions = append(dialOptions, grpc.WithTransportCredentials(insecure.NewCredentials()))
		otlpOptions = append(otlpOptions, otlptracegrpc.WithInsecure())
	}

	otlpOptions = append(otlpOptions,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(dialOptions...),
	)

	exporter, err := otlptracegrpc.New(ctx, otlpOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// Stop flushes remaining spans and releases the trace file.
func (p *Provider) Stop(ctx context.Context) error {
	if !p.enabled {
		return nil
	}

	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		p.logger.Error("Error shutting down tracer provider: %v", err)
		errs = append(errs, err)
	}
	if err := p.closeFile(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close trace file: %w", err))
	}
	return errors.Join(errs...)
}

func (p *Provider) closeFile() error {
	if p.traceFile == nil {
		return nil
	}
	err := p.traceFile.Close()
	p.traceFile = nil
	return err
}

// Tracer returns a tracer for instrumenting code.
func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tracerProvider != nil {
		return p.tracerProvider.Tracer(name)
	}
	return otel.GetTracerProvider().Tracer(name)
}

// IsEnabled returns whether tracing is enabled
func (p *Provider) IsEnabled() bool {
	return p.enabled
}
