package otel_test

import (
	"context"
	"testing"

	"github.com/mybullandbear/bull-bear-cloud/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("BULLBEAR_OTEL_ENDPOINT", "")
	t.Setenv("BULLBEAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "edge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("BULLBEAR_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("BULLBEAR_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "edge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no actual export happens.
	t.Setenv("BULLBEAR_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("BULLBEAR_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "edge")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
