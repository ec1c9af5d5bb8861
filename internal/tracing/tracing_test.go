package tracing

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	cfg := Config{
		ServiceName: "relovd-search-test",
		Enabled:     false,
	}

	provider, err := NewProvider(cfg)
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if provider == nil {
		t.Fatal("expected provider to be non-nil")
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
}

func TestNewProvider_MissingServiceName(t *testing.T) {
	cfg := Config{
		Enabled:      true,
		SamplingRate: 0.1,
	}

	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestNewProvider_InvalidSamplingRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
	}{
		{"negative", -0.1},
		{"greater than 1", 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				ServiceName:  "relovd-search-test",
				Enabled:      true,
				SamplingRate: tt.rate,
			}

			if _, err := NewProvider(cfg); err == nil {
				t.Fatalf("expected error for sampling rate %f", tt.rate)
			}
		})
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		samplingRate float64
		endpoint     string
	}{
		{"otlp-http with 10% sampling", "otlp-http", 0.1, "localhost:4318"},
		{"otlp-grpc with 100% sampling", "otlp-grpc", 1.0, "localhost:4317"},
		{"default exporter with 0% sampling", "", 0.0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{
				ServiceName:  "relovd-search-test",
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: true,
			}

			provider, err := NewProvider(cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		})
	}
}

func TestNewProvider_UnsupportedExporter(t *testing.T) {
	cfg := Config{
		ServiceName:  "relovd-search-test",
		Enabled:      true,
		ExporterType: "jaeger",
		SamplingRate: 0.1,
	}

	if _, err := NewProvider(cfg); err == nil {
		t.Fatal("expected error for unsupported exporter type")
	}
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	provider := &Provider{}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		t.Errorf("unexpected error on shutdown with nil tp: %v", err)
	}
}
