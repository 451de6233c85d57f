package services_test

import (
	"context"
	"testing"

	"calldesk/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCallID(ctx, 42)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.CallIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("call id = %d, ok = %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "extract" {
		t.Fatalf("stage = %q, ok = %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("request id = %q, ok = %v", rid, ok)
	}
}

func TestContextEmptyValuesIgnored(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRequestID(ctx, "")

	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected empty stage to be dropped")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected empty request id to be dropped")
	}
	if _, ok := services.CallIDFromContext(ctx); ok {
		t.Fatal("expected missing call id")
	}
}
