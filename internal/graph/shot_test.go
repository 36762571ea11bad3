package graph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseVariation(t *testing.T) {
	tests := map[string]Variation{
		"large":   VariationLarge,
		" Medium": VariationMedium,
		"SMALL":   VariationSmall,
	}
	for in, want := range tests {
		got, err := ParseVariation(in)
		if err != nil || got != want {
			t.Fatalf("ParseVariation(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseVariation("huge"); err == nil {
		t.Fatal("expected error for unknown variation")
	}
}

func TestShotJSONIsFlat(t *testing.T) {
	shot := Shot{
		ShotBrief:         ShotBrief{Index: 3, CamIdx: 1, VisualDesc: "v"},
		FirstFrameDesc:    "first",
		FirstFrameVisible: []int{0},
		Variation:         VariationMedium,
	}
	data, err := json.Marshal(shot)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"index":3`) || !strings.Contains(string(data), `"variation":"medium"`) {
		t.Fatalf("unexpected encoding %s", data)
	}
	var back Shot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(shot, back); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	brief := Shot{ShotBrief: ShotBrief{Index: 0}}
	data, err = json.Marshal(brief)
	if err != nil {
		t.Fatalf("Marshal undecomposed: %v", err)
	}
	if !strings.Contains(string(data), `"variation":""`) {
		t.Fatalf("undecomposed shot should encode empty variation: %s", data)
	}
}

func TestShotFrames(t *testing.T) {
	shot := Shot{
		ShotBrief:         ShotBrief{Index: 2, CamIdx: 1},
		FirstFrameDesc:    "opening",
		FirstFrameVisible: []int{0, 1},
		LastFrameDesc:     "closing",
		LastFrameVisible:  []int{1},
		Variation:         VariationLarge,
	}
	frames := shot.Frames()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	want := Frame{ShotIdx: 2, Kind: FrameLast, CamIdx: 1, Visible: []int{1}, Desc: "closing"}
	if diff := cmp.Diff(want, frames[1]); diff != "" {
		t.Fatalf("last frame mismatch (-want +got):\n%s", diff)
	}
	if frames[0].Key() != "shot-002-first" {
		t.Fatalf("key = %q", frames[0].Key())
	}

	shot.Variation = VariationSmall
	if got := len(shot.Frames()); got != 1 {
		t.Fatalf("small variation should yield one frame, got %d", got)
	}
}

func TestValidateVisible(t *testing.T) {
	shot := Shot{ShotBrief: ShotBrief{Index: 1}, FirstFrameVisible: []int{0, 2}}
	if err := shot.ValidateVisible(3); err != nil {
		t.Fatalf("ValidateVisible: %v", err)
	}
	if err := shot.ValidateVisible(2); err == nil {
		t.Fatal("expected out-of-range index to fail")
	}
}

func TestCharacterString(t *testing.T) {
	c := Character{Identifier: "Alice", StaticFeatures: "tall", DynamicFeatures: "red coat"}
	if got := c.String(); got != "Alice: (static) tall; (dynamic) red coat" {
		t.Fatalf("String() = %q", got)
	}
	if err := ValidateRoster([]Character{c, c}); err == nil {
		t.Fatal("expected duplicate identifier to fail")
	}
}
