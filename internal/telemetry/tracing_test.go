package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpointInstallsPropagator(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "friendfeed"})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	fields := otel.GetTextMapPropagator().Fields()
	found := false
	for _, f := range fields {
		if f == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("trace context propagator not installed: %v", fields)
	}
}

func TestEndpointHost(t *testing.T) {
	for in, want := range map[string]string{
		"otel-collector:4318":         "otel-collector:4318",
		"http://otel-collector:4318/": "otel-collector:4318",
		"https://collector.internal":  "collector.internal",
	} {
		if got := endpointHost(in); got != want {
			t.Fatalf("endpointHost(%q) = %q, want %q", in, got, want)
		}
	}
}
