package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"framewright/internal/graph"
	"framewright/internal/ledger"
	"framewright/internal/pipeline"
	"framewright/internal/testsupport"
)

func seedPlan(t *testing.T, env *cliTestEnv, runID string) *pipeline.Plan {
	t.Helper()

	plan := &pipeline.Plan{
		RunID:  runID,
		Stage:  pipeline.StageReferencesSelected,
		Wave:   1,
		Script: "INT. KITCHEN - NIGHT",
		Characters: []graph.Character{
			{Identifier: "Mara", StaticFeatures: "tall, grey coat"},
		},
		Shots: []graph.Shot{
			{ShotBrief: graph.ShotBrief{Index: 0, CamIdx: 0, VisualDesc: "Mara reads the letter"}, Variation: graph.VariationSmall},
			{ShotBrief: graph.ShotBrief{Index: 1, CamIdx: 1, IsLast: true, VisualDesc: "Close on the letter"}},
		},
		Cameras: []graph.Camera{
			{Index: 0, ActiveShotIdxs: []int{0}},
			{Index: 1, ActiveShotIdxs: []int{1}, ParentCamIdx: graph.Ptr(0), ParentShotIdx: graph.Ptr(0)},
		},
		Frames: []pipeline.FramePlan{
			{Key: "shot-000-first", Candidates: 1, References: []graph.Handle{"portraits/char-000-front.png"}, Image: "frames/shot-000-first.png"},
		},
		ShotClips: []pipeline.ShotClipPlan{
			{ShotIdx: 0, Mode: pipeline.ClipModeFirstFrame, Frames: []graph.Handle{"frames/shot-000-first.png"}, Clip: "shots/shot-000.mp4"},
		},
		Progress: []string{"scripted", "characters_extracted"},
	}
	path := pipeline.PlanPath(env.cfg.Paths.RunsDir, runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir run dir: %v", err)
	}
	if err := pipeline.SavePlan(path, plan); err != nil {
		t.Fatalf("SavePlan: %v", err)
	}
	return plan
}

func seedLedger(t *testing.T, env *cliTestEnv) {
	t.Helper()

	store := testsupport.MustOpenLedger(t, env.cfg)
	ctx := context.Background()
	if _, err := store.CreateRun(ctx, "run-done", filepath.Join(env.cfg.Paths.RunsDir, "run-done"), "a letter arrives"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.SetStage(ctx, "run-done", string(pipeline.StageDone), 0); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	if err := store.MarkDone(ctx, "run-done"); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	if _, err := store.CreateRun(ctx, "run-failed", filepath.Join(env.cfg.Paths.RunsDir, "run-failed"), ""); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.SetStage(ctx, "run-failed", string(pipeline.StageImagesSynthesized), 1); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	events := []ledger.StageEvent{
		{RunID: "run-failed", Stage: string(pipeline.StageScripted), Status: ledger.EventCompleted, Duration: 1500 * time.Millisecond},
		{RunID: "run-failed", Stage: string(pipeline.StageImagesSynthesized), Wave: 1, Status: ledger.EventFailed, Message: "shot 2 failed"},
	}
	for _, ev := range events {
		if err := store.RecordStageEvent(ctx, ev); err != nil {
			t.Fatalf("RecordStageEvent: %v", err)
		}
	}
	if err := store.RecordArtifact(ctx, ledger.Artifact{RunID: "run-failed", Handle: "script.txt", Kind: "script"}); err != nil {
		t.Fatalf("RecordArtifact: %v", err)
	}
	if err := store.MarkFailed(ctx, "run-failed", "images_synthesized: shot 2 failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
}

func TestRunsListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	out, _, err = runCLI(t, env.configPath, "--json", "runs", "list")
	if err != nil {
		t.Fatalf("runs list --json: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", out)
	}
}

func TestRunsListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	seedLedger(t, env)

	out, _, err := runCLI(t, env.configPath, "runs", "list")
	if err != nil {
		t.Fatalf("runs list: %v", err)
	}
	requireContains(t, out, "run-done")
	requireContains(t, out, "run-failed")
	requireContains(t, out, "Images Synthesized (wave 1)")

	out, _, err = runCLI(t, env.configPath, "--json", "runs", "list", "--limit", "0")
	if err != nil {
		t.Fatalf("runs list --json: %v", err)
	}
	var runs []ledger.Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	statuses := map[string]ledger.Status{}
	for _, r := range runs {
		statuses[r.ID] = r.Status
	}
	if statuses["run-done"] != ledger.StatusDone || statuses["run-failed"] != ledger.StatusFailed {
		t.Fatalf("unexpected statuses %v", statuses)
	}

	out, _, err = runCLI(t, env.configPath, "runs", "show", "run-failed")
	if err != nil {
		t.Fatalf("runs show: %v", err)
	}
	requireContains(t, out, "Stage history")
	requireContains(t, out, "Scripted")
	requireContains(t, out, "1.5s")
	requireContains(t, out, "shot 2 failed")
	requireContains(t, out, "script.txt")

	if _, _, err := runCLI(t, env.configPath, "runs", "show", "missing"); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestPlanShowAndExport(t *testing.T) {
	env := setupCLITestEnv(t)
	seedPlan(t, env, "run-a")

	out, _, err := runCLI(t, env.configPath, "plan", "show", "run-a")
	if err != nil {
		t.Fatalf("plan show: %v", err)
	}
	requireContains(t, out, "Stage: References Selected (wave 1)")
	requireContains(t, out, "Characters")
	requireContains(t, out, "Mara")
	requireContains(t, out, "Close on the letter")
	requireContains(t, out, "cam 0 @ shot 0")
	requireContains(t, out, "frames/shot-000-first.png")
	requireContains(t, out, "shots/shot-000.mp4")

	out, _, err = runCLI(t, env.configPath, "--json", "plan", "show", "run-a")
	if err != nil {
		t.Fatalf("plan show --json: %v", err)
	}
	var decoded pipeline.Plan
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if decoded.RunID != "run-a" || len(decoded.Shots) != 2 {
		t.Fatalf("unexpected plan %+v", decoded)
	}

	out, _, err = runCLI(t, env.configPath, "plan", "export", "run-a")
	if err != nil {
		t.Fatalf("plan export: %v", err)
	}
	requireContains(t, out, "run_id: run-a")
	requireContains(t, out, "variation: small")

	target := filepath.Join(env.baseDir, "exports", "run-a.yaml")
	out, _, err = runCLI(t, env.configPath, "plan", "export", "run-a", "--out", target)
	if err != nil {
		t.Fatalf("plan export --out: %v", err)
	}
	requireContains(t, out, "Wrote plan to "+target)
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	requireContains(t, string(data), "visual_desc: Mara reads the letter")
}

func TestPlanShowMissingRun(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "plan", "show", "nope")
	if !errors.Is(err, pipeline.ErrNoPlan) {
		t.Fatalf("expected ErrNoPlan, got %v", err)
	}
	if _, _, err := runCLI(t, env.configPath, "plan", "show", "../escape"); err == nil {
		t.Fatal("expected invalid run id error")
	}
}

func TestCheckPassesWithStubbedBinaries(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "check", "--skip-network")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "8 checks passed")
}

func TestCheckReportsMissingCredentials(t *testing.T) {
	env := setupCLITestEnv(t, withoutCredentials())

	out, _, err := runCLI(t, env.configPath, "--json", "check", "--skip-network")
	if !errors.Is(err, errChecksFailed) {
		t.Fatalf("expected errChecksFailed, got %v", err)
	}
	var results []struct {
		Name   string `json:"name"`
		Passed bool   `json:"passed"`
	}
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode results: %v\n%s", err, out)
	}
	failed := map[string]bool{}
	for _, r := range results {
		if !r.Passed {
			failed[r.Name] = true
		}
	}
	for _, name := range []string{"Image service", "Video service", "Judgment LLM"} {
		if !failed[name] {
			t.Fatalf("expected %s to fail, got %v", name, failed)
		}
	}
}

func TestRunRequiresScriptOrIdea(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "run")
	if err == nil {
		t.Fatal("expected error without input")
	}
	requireContains(t, err.Error(), "--script, --idea, or --resume")
}

func TestRunRejectsEmptyScriptFile(t *testing.T) {
	env := setupCLITestEnv(t)
	script := filepath.Join(env.baseDir, "empty.txt")
	if err := os.WriteFile(script, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	_, _, err := runCLI(t, env.configPath, "run", "--script", script)
	if err == nil {
		t.Fatal("expected error for empty script")
	}
	requireContains(t, err.Error(), "is empty")
}

func TestRunRequiresCredentials(t *testing.T) {
	env := setupCLITestEnv(t, withoutCredentials())

	_, _, err := runCLI(t, env.configPath, "run", "--idea", "a letter arrives")
	if err == nil {
		t.Fatal("expected credential error")
	}
	requireContains(t, err.Error(), "llm.api_key is required")
}

func TestLogLevelOverrideIsValidated(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, env.configPath, "--log-level", "loud", "runs", "list")
	if err == nil {
		t.Fatal("expected invalid log level error")
	}
	requireContains(t, err.Error(), "--log-level")
}
