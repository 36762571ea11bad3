package decompose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/graph"
	"framewright/internal/judgment"
	"framewright/internal/services"
)

type stubJudge struct {
	resp  judgment.DecomposeResponse
	fail  int
	calls atomic.Int32
	block bool
}

func (s *stubJudge) DecomposeShot(ctx context.Context, _ judgment.DecomposeRequest) (judgment.DecomposeResponse, error) {
	n := int(s.calls.Add(1))
	if s.block {
		<-ctx.Done()
		return judgment.DecomposeResponse{}, ctx.Err()
	}
	if n <= s.fail {
		return judgment.DecomposeResponse{}, judgment.ErrMalformed
	}
	return s.resp, nil
}

var roster = []graph.Character{
	{Identifier: "Alice", StaticFeatures: "tall", DynamicFeatures: "red coat"},
	{Identifier: "Bob", StaticFeatures: "short", DynamicFeatures: "hat"},
}

var brief = graph.ShotBrief{Index: 4, CamIdx: 1, VisualDesc: "<Alice> hands <Bob> a letter."}

func baseResponse() judgment.DecomposeResponse {
	return judgment.DecomposeResponse{
		FirstFrameDesc:    " Alice holds out a letter. ",
		FirstFrameVisible: []int{0, 1, 1, 5},
		LastFrameDesc:     "Bob holds the letter.",
		LastFrameVisible:  []int{-1, 1, 0},
		MotionDesc:        "The woman in red passes the letter.",
		Variation:         graph.VariationMedium,
		VariationReason:   "hands change",
	}
}

func TestDecomposeCleansVisibility(t *testing.T) {
	d := New(&stubJudge{resp: baseResponse()})
	res, err := d.DecomposeDetailed(context.Background(), brief, roster)
	if err != nil {
		t.Fatalf("DecomposeDetailed: %v", err)
	}
	want := graph.Shot{
		ShotBrief:         brief,
		FirstFrameDesc:    "Alice holds out a letter.",
		FirstFrameVisible: []int{0, 1},
		LastFrameDesc:     "Bob holds the letter.",
		LastFrameVisible:  []int{1, 0},
		MotionDesc:        "The woman in red passes the letter.",
		Variation:         graph.VariationMedium,
		VariationReason:   "hands change",
	}
	if diff := cmp.Diff(want, res.Shot); diff != "" {
		t.Fatalf("shot mismatch (-want +got):\n%s", diff)
	}
	if len(res.Warnings) != 2 || !strings.Contains(res.Warnings[0], "index 5") || !strings.Contains(res.Warnings[1], "index -1") {
		t.Fatalf("unexpected warnings %v", res.Warnings)
	}
	if err := res.Shot.ValidateVisible(len(roster)); err != nil {
		t.Fatalf("visibility should be valid: %v", err)
	}
}

func TestDecomposeIsDeterministic(t *testing.T) {
	d := New(&stubJudge{resp: baseResponse()})
	first, err := d.Decompose(context.Background(), brief, roster)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	second, err := d.Decompose(context.Background(), brief, roster)
	if err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if !bytes.Equal(a, b) {
		t.Fatalf("decomposition not byte-identical:\n%s\n%s", a, b)
	}
}

func TestDecomposeRetriesMalformed(t *testing.T) {
	stub := &stubJudge{resp: baseResponse(), fail: 2}
	if _, err := New(stub).Decompose(context.Background(), brief, roster); err != nil {
		t.Fatalf("Decompose: %v", err)
	}
	if got := stub.calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestDecomposeTimeoutExhausts(t *testing.T) {
	stub := &stubJudge{block: true}
	_, err := New(stub, WithTimeout(5*time.Millisecond)).Decompose(context.Background(), brief, roster)
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), "decompose shot 4: failed after 3 attempts") {
		t.Fatalf("error should name the shot and attempts: %v", err)
	}
	if got := stub.calls.Load(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}
