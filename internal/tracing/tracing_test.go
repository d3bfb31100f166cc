package tracing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(Config{})
	require.NoError(t, err)
	assert.False(t, p.IsEnabled())
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Stop(context.Background()))
}

func TestTLSConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		expectError bool
	}{
		{
			name: "TLS with insecure skip verify",
			cfg: Config{
				Endpoint:    "localhost:4317",
				TLSInsecure: true,
			},
		},
		{
			name: "TLS with missing CA certificate",
			cfg: Config{
				Endpoint:  "localhost:4317",
				TLSCAPath: "/path/to/ca.crt",
			},
			expectError: true,
		},
		{
			name: "No TLS (insecure connection)",
			cfg: Config{
				Endpoint: "localhost:4317",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, provider.IsEnabled())
			// Nothing listens on the endpoint; shutdown must not hang on it.
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_ = provider.Stop(ctx)
		})
	}
}

func TestNewProvider_FileExporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.json")
	p, err := NewProvider(Config{File: path, Version: "test"})
	require.NoError(t, err)
	require.True(t, p.IsEnabled())

	_, span := p.Tracer("routebench/test").Start(context.Background(), "routing.dispatch")
	span.End()
	require.NoError(t, p.Stop(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Name": "routing.dispatch"`)
	assert.Contains(t, string(data), ServiceName)
}

func TestNewProvider_BadFile(t *testing.T) {
	_, err := NewProvider(Config{File: filepath.Join(t.TempDir(), "missing", "spans.json")})
	assert.ErrorContains(t, err, "failed to create trace file")
}
