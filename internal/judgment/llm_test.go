package judgment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/graph"
	"framewright/internal/services/llm"
)

type fakeCompleter struct {
	content string
	err     error

	system string
	user   string
	images []llm.Image
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, system, user string) (string, error) {
	f.system, f.user = system, user
	return f.content, f.err
}

func (f *fakeCompleter) CompleteJSONWithImages(_ context.Context, system, user string, images []llm.Image) (string, error) {
	f.system, f.user, f.images = system, user, images
	return f.content, f.err
}

func TestDecomposeShotParses(t *testing.T) {
	fake := &fakeCompleter{content: "```json\n" + `{"ff_desc":"Alice at the door","ff_vis_char_idxs":[0],"lf_desc":"Alice inside","lf_vis_char_idxs":[0,1],"motion_desc":"the woman steps in","variation_type":"Medium","variation_reason":"a new character appears"}` + "\n```"}
	svc := NewLLM(fake)

	got, err := svc.DecomposeShot(context.Background(), DecomposeRequest{
		VisualDesc: "<Alice> walks in to meet <Bob>.",
		Roster:     []string{"Alice: (static) tall; (dynamic) coat", "Bob: (static) short; (dynamic) hat"},
	})
	if err != nil {
		t.Fatalf("DecomposeShot: %v", err)
	}
	want := DecomposeResponse{
		FirstFrameDesc:    "Alice at the door",
		FirstFrameVisible: []int{0},
		LastFrameDesc:     "Alice inside",
		LastFrameVisible:  []int{0, 1},
		MotionDesc:        "the woman steps in",
		Variation:         graph.VariationMedium,
		VariationReason:   "a new character appears",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(fake.user, "1. Bob: (static) short") {
		t.Fatalf("roster not numbered in prompt: %q", fake.user)
	}
}

func TestDecomposeShotMalformed(t *testing.T) {
	tests := map[string]string{
		"not json":          "sorry, I cannot",
		"unknown variation": `{"ff_desc":"a","lf_desc":"b","variation_type":"huge"}`,
		"missing variation": `{"ff_desc":"a","lf_desc":"b"}`,
		"missing frame":     `{"ff_desc":"a","variation_type":"small"}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewLLM(&fakeCompleter{content: content}).DecomposeShot(context.Background(), DecomposeRequest{VisualDesc: "x"})
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestTransportErrorIsNotMalformed(t *testing.T) {
	cause := errors.New("connection reset")
	_, err := NewLLM(&fakeCompleter{err: cause}).AssignCameraParents(context.Background(), CameraTreeRequest{})
	if !errors.Is(err, cause) || errors.Is(err, ErrMalformed) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAssignCameraParentsKeepsNulls(t *testing.T) {
	fake := &fakeCompleter{content: `{"camera_parent_items":[null,{"parent_cam_idx":0,"parent_shot_idx":0,"reason":"same room","is_parent_fully_covers_child":false,"missing_info":"Bob's face"}]}`}
	got, err := NewLLM(fake).AssignCameraParents(context.Background(), CameraTreeRequest{Cameras: []CameraShots{
		{CamIdx: 0, Shots: []string{"Shot 0: wide", "Shot 2: wide again"}},
		{CamIdx: 1, Shots: []string{"Shot 1: close"}},
	}})
	if err != nil {
		t.Fatalf("AssignCameraParents: %v", err)
	}
	if len(got.Assignments) != 2 || got.Assignments[0] != nil {
		t.Fatalf("unexpected assignments %+v", got.Assignments)
	}
	if *got.Assignments[1].ParentCamIdx != 0 || *got.Assignments[1].MissingInfo != "Bob's face" {
		t.Fatalf("unexpected child assignment %+v", got.Assignments[1])
	}
	if !strings.Contains(fake.user, "Camera 1:\nShot 1: close") {
		t.Fatalf("camera blocks missing from prompt: %q", fake.user)
	}
}

func TestFinalizeReferencesLabelsImages(t *testing.T) {
	fake := &fakeCompleter{content: `{"ref_image_indices":[1],"text_prompt":"Follow Image 0."}`}
	got, err := NewLLM(fake).FinalizeReferences(context.Background(), FinalizeRequest{
		Target: "Alice smiles",
		Candidates: []ImageCandidate{
			{Description: "Alice front", MIMEType: "image/png", Data: []byte{1}},
			{Description: "Alice side", MIMEType: "image/png", Data: []byte{2}},
		},
	})
	if err != nil {
		t.Fatalf("FinalizeReferences: %v", err)
	}
	if diff := cmp.Diff(SelectionResponse{Indices: []int{1}, Instruction: "Follow Image 0."}, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if len(fake.images) != 2 || fake.images[1].Label != "Image 1: Alice side" {
		t.Fatalf("unexpected images %+v", fake.images)
	}
}

func TestExtractCharactersRejectsDuplicates(t *testing.T) {
	fake := &fakeCompleter{content: `{"characters":[{"identifier":"<Alice>"},{"identifier":"Alice"}]}`}
	_, err := NewLLM(fake).ExtractCharacters(context.Background(), CharactersRequest{Script: "..."})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestStoryboardAndScript(t *testing.T) {
	fake := &fakeCompleter{content: `{"storyboard":[{"cam_idx":0,"visual_desc":"wide","audio_desc":"rain"},{"cam_idx":1,"visual_desc":"close","is_last":true}]}`}
	board, err := NewLLM(fake).DesignStoryboard(context.Background(), StoryboardRequest{Script: "s", Style: "noir"})
	if err != nil {
		t.Fatalf("DesignStoryboard: %v", err)
	}
	if len(board.Shots) != 2 || !board.Shots[1].IsLast {
		t.Fatalf("unexpected storyboard %+v", board)
	}
	if !strings.Contains(fake.user, "Style: noir") {
		t.Fatalf("style missing from prompt: %q", fake.user)
	}

	_, err = NewLLM(&fakeCompleter{content: `{"script":"  "}`}).WriteScript(context.Background(), ScriptRequest{Idea: "x"})
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for empty script, got %v", err)
	}
}
