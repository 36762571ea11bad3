package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/graph"
	"framewright/internal/services"
)

func samplePlan() *Plan {
	plan := &Plan{
		RunID:      "r1",
		Script:     "INT. KITCHEN",
		Characters: []graph.Character{{Identifier: "Alice"}},
		Shots: []graph.Shot{{
			ShotBrief:      graph.ShotBrief{Index: 0, IsLast: true, VisualDesc: "Alice waits"},
			FirstFrameDesc: "Alice at the door",
			Variation:      graph.VariationSmall,
		}},
		Cameras: []graph.Camera{{Index: 0, ActiveShotIdxs: []int{0}}},
	}
	plan.markCompleted(StageStoryboarded, 0)
	plan.markCompleted(StageReferencesSelected, 2)
	return plan
}

func TestPlanRoundTripKeepsProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), PlanFileName)
	plan := samplePlan()
	if err := SavePlan(path, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	loaded, err := LoadPlan(path)
	if err != nil {
		t.Fatalf("LoadPlan: %v", err)
	}
	if diff := cmp.Diff(plan, loaded); diff != "" {
		t.Fatalf("plan (-want +got):\n%s", diff)
	}
	if !loaded.Completed(StageReferencesSelected, 2) || loaded.Completed(StageReferencesSelected, 1) {
		t.Fatalf("progress = %v", loaded.Progress)
	}
	if loaded.Stage != StageReferencesSelected || loaded.Wave != 2 {
		t.Fatalf("stage = %s wave %d", loaded.Stage, loaded.Wave)
	}
}

func TestLoadPlanMissing(t *testing.T) {
	_, err := LoadPlan(filepath.Join(t.TempDir(), PlanFileName))
	if !errors.Is(err, ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
}

func TestExportPlanYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportPlan(&buf, samplePlan()); err != nil {
		t.Fatalf("ExportPlan: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"run_id: r1", "variation: small", "first_frame_desc: Alice at the door", "visual_desc: Alice waits"} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "progress") {
		t.Fatalf("export should not carry resume progress:\n%s", out)
	}
}

func TestFrameSlotIsStable(t *testing.T) {
	plan := &Plan{}
	f := graph.Frame{ShotIdx: 3, Kind: graph.FrameLast}
	first := plan.frameSlot(f, 1)
	if again := plan.frameSlot(f, 1); again != first || len(plan.Frames) != 1 {
		t.Fatalf("frameSlot created a duplicate: %v", plan.Frames)
	}
	if plan.Frames[0].Key != "shot-003-last" {
		t.Fatalf("key = %s", plan.Frames[0].Key)
	}
}

func TestStageLabel(t *testing.T) {
	tests := map[Stage]string{
		StageCameraTreeBuilt:        "Camera Tree Built",
		StageTransitionsSynthesized: "Transitions Synthesized",
		StageDone:                   "Done",
		"":                          "",
	}
	for stage, want := range tests {
		if got := stage.Label(); got != want {
			t.Fatalf("Label(%q) = %q, want %q", stage, got, want)
		}
	}
}

func TestStageErrorMessage(t *testing.T) {
	inner := errors.New("quota exceeded")
	err := &StageError{Stage: StageImagesSynthesized, Item: "frame", Failures: []ItemFailure{
		{Index: 2, Attempts: 3, Err: services.Wrap(services.ErrExternalTool, "images_synthesized", "synthesize frame", "shot-001-first", inner)},
		{Index: 5, Attempts: 1, Err: fmt.Errorf("load: %w", errors.New("missing reference"))},
	}}
	want := "images_synthesized: frame 2 failed after 3 attempt(s): quota exceeded; frame 5 failed after 1 attempt(s): missing reference"
	if err.Error() != want {
		t.Fatalf("Error() = %q\nwant %q", err.Error(), want)
	}
	if !errors.Is(err, services.ErrExternalTool) || !errors.Is(err, inner) {
		t.Fatal("StageError should unwrap to every item error")
	}
	if diff := cmp.Diff([]int{2, 5}, err.Indices()); diff != "" {
		t.Fatalf("indices (-want +got):\n%s", diff)
	}
}
