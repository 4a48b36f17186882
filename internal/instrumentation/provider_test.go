package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		ServiceName:    "meetwise-test",
		ServiceVersion: "1.0.0",
		Enabled:        false,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Gatherer() != nil {
		t.Error("expected no gatherer when disabled")
	}
	// Recording on a disabled provider's metrics must not panic.
	provider.Metrics().RecordOAuthAuth(context.Background(), OAuthResultSuccess)
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_Exporters(t *testing.T) {
	tests := []struct {
		name            string
		metricsExporter string
		tracingExporter string
		endpoint        string
		wantErr         bool
	}{
		{"prometheus without tracing", ExporterPrometheus, ExporterNone, "", false},
		{"stdout both", ExporterStdout, ExporterStdout, "", false},
		{"invalid metrics exporter", "invalid", ExporterNone, "", true},
		{"invalid tracing exporter", ExporterPrometheus, "invalid", "", true},
		{"otlp tracing without endpoint", ExporterPrometheus, ExporterOTLP, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			provider, err := NewProvider(ctx, Config{
				ServiceName:     "meetwise-test",
				ServiceVersion:  "1.0.0",
				Enabled:         true,
				MetricsExporter: tt.metricsExporter,
				TracingExporter: tt.tracingExporter,
				OTLPEndpoint:    tt.endpoint,
			})
			if tt.wantErr {
				if err == nil {
					t.Error("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			defer func() { _ = provider.Shutdown(ctx) }()

			if !provider.Enabled() {
				t.Error("expected provider to be enabled")
			}
			if provider.Metrics() == nil {
				t.Error("expected metrics to be non-nil")
			}
			if hasGatherer := provider.Gatherer() != nil; hasGatherer != (tt.metricsExporter == ExporterPrometheus) {
				t.Errorf("Gatherer() present = %v for exporter %s", hasGatherer, tt.metricsExporter)
			}
		})
	}
}

func TestNewProvider_PrometheusRegistryIsIsolated(t *testing.T) {
	ctx := context.Background()
	newProvider := func() *Provider {
		p, err := NewProvider(ctx, Config{
			ServiceName:     "meetwise-test",
			Enabled:         true,
			MetricsExporter: ExporterPrometheus,
			TracingExporter: ExporterNone,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		t.Cleanup(func() { _ = p.Shutdown(ctx) })
		return p
	}

	first := newProvider()
	second := newProvider()
	first.Metrics().RecordOAuthAuth(ctx, OAuthResultSuccess)

	families, err := first.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "oauth_auth_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected oauth_auth_total in the first registry")
	}

	families, err = second.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "oauth_auth_total" {
			t.Error("second registry must not see the first provider's metrics")
		}
	}
}
