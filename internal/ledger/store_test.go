package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/ledger"
	"framewright/internal/testsupport"
)

func TestRunLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "run-a", "/runs/run-a", "a heist")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if run.Status != ledger.StatusRunning || run.Idea != "a heist" || run.CreatedAt.IsZero() {
		t.Fatalf("unexpected run %#v", run)
	}

	if err := store.SetStage(ctx, "run-a", "references_selected", 1); err != nil {
		t.Fatalf("SetStage: %v", err)
	}
	if err := store.MarkFailed(ctx, "run-a", "images_synthesized: frame 3 failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	got, err := store.GetRun(ctx, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ledger.StatusFailed || got.Stage != "references_selected" || got.Wave != 1 ||
		got.ErrorMessage != "images_synthesized: frame 3 failed" {
		t.Fatalf("unexpected run after failure %#v", got)
	}

	if err := store.Resume(ctx, "run-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkDone(ctx, "run-a"); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetRun(ctx, "run-a")
	if got.Status != ledger.StatusDone || got.ErrorMessage != "" {
		t.Fatalf("unexpected run after done %#v", got)
	}
}

func TestGetRunMissing(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	run, err := store.GetRun(context.Background(), "nope")
	if err != nil || run != nil {
		t.Fatalf("GetRun = %#v, %v", run, err)
	}
	if err := store.SetStage(context.Background(), "nope", "scripted", 0); err == nil {
		t.Fatal("expected error updating a missing run")
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"first", "second", "third"} {
		if _, err := store.CreateRun(ctx, id, "/w/"+id, ""); err != nil {
			t.Fatal(err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	if diff := cmp.Diff([]string{"third", "second"}, ids); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
}

func TestStageEventsAndArtifacts(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.CreateRun(ctx, "r", "/w/r", ""); err != nil {
		t.Fatal(err)
	}
	events := []ledger.StageEvent{
		{RunID: "r", Stage: "scripted", Status: ledger.EventStarted},
		{RunID: "r", Stage: "scripted", Status: ledger.EventCompleted, Duration: 1500 * time.Millisecond},
		{RunID: "r", Stage: "references_selected", Wave: 1, Status: ledger.EventFailed, Message: "boom"},
	}
	for _, ev := range events {
		if err := store.RecordStageEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.StageEvents(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	opts := cmp.Options{
		cmp.FilterPath(func(p cmp.Path) bool {
			name := p.Last().String()
			return name == ".ID" || name == ".CreatedAt"
		}, cmp.Ignore()),
	}
	if diff := cmp.Diff(events, got, opts); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}

	art := ledger.Artifact{RunID: "r", Handle: "cameras/cam-001.png", Kind: "camera", Source: "cam-001"}
	for range 2 {
		if err := store.RecordArtifact(ctx, art); err != nil {
			t.Fatal(err)
		}
	}
	arts, err := store.Artifacts(ctx, "r")
	if err != nil {
		t.Fatal(err)
	}
	if len(arts) != 1 || arts[0].Handle != art.Handle || arts[0].Source != "cam-001" {
		t.Fatalf("unexpected artifacts %#v", arts)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := ledger.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateRun(context.Background(), "keep", "/w", ""); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := ledger.Open(path)
	if err != nil {
		if errors.Is(err, ledger.ErrSchemaMismatch) {
			t.Fatalf("schema mismatch on reopen: %v", err)
		}
		t.Fatal(err)
	}
	defer reopened.Close()
	if run, _ := reopened.GetRun(context.Background(), "keep"); run == nil {
		t.Fatal("run lost after reopen")
	}
}
