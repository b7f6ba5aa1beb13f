package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracerProviderDisabled(t *testing.T) {
	before := otel.GetTracerProvider()

	shutdown, err := InitTracerProvider(context.Background(), "", "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("Unexpected shutdown error: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("Expected the global provider to stay untouched")
	}
}

func TestInitTracerProviderEnabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed here.
	shutdown, err := InitTracerProvider(context.Background(), "127.0.0.1:4317", "test")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "span")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Shutdown with a cancelled context returns promptly; the export error is expected.
	_ = shutdown(ctx)
}
