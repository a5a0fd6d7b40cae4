package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProvidersEmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	p, err := NewProviders(ctx, "  ", "authgate-test", false)
	if err != nil {
		t.Fatalf("new providers: %v", err)
	}
	if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
		t.Fatal("expected non-nil providers")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewProvidersWithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters dial lazily, so no collector is needed.
	p, err := NewProviders(ctx, "http://127.0.0.1:4317/v1/traces", "authgate-test", false)
	if err != nil {
		t.Fatalf("new providers: %v", err)
	}
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Fatal("tracer provider not installed")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Shutdown(cancelled)
}

func TestGRPCTarget(t *testing.T) {
	tests := []struct {
		in        string
		target    string
		plaintext bool
		wantErr   bool
	}{
		{"collector:4317", "collector:4317", true, false},
		{"http://collector:4317/v1/traces", "collector:4317", true, false},
		{"https://collector.example.com:4317", "collector.example.com:4317", false, false},
		{"http://", "", false, true},
		{"http://%zz", "", false, true},
	}
	for _, tc := range tests {
		target, plaintext, err := grpcTarget(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if target != tc.target || plaintext != tc.plaintext {
			t.Fatalf("%q: got %q plaintext=%v", tc.in, target, plaintext)
		}
	}
}
