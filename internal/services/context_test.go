package services_test

import (
	"context"
	"testing"

	"framewright/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithStage(ctx, "shots_decomposed")
	ctx = services.WithShot(ctx, 3)
	ctx = services.WithFrame(ctx, "shot-003-first")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "shots_decomposed" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if shot, ok := services.ShotFromContext(ctx); !ok || shot != 3 {
		t.Fatalf("unexpected shot: %v %v", shot, ok)
	}
	if frame, ok := services.FrameFromContext(ctx); !ok || frame != "shot-003-first" {
		t.Fatalf("unexpected frame: %v %v", frame, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithShot(ctx, -1)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ShotFromContext(ctx); ok {
		t.Fatal("expected no shot value")
	}
}
