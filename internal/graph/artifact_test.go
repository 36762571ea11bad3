package graph

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRewriteReferences(t *testing.T) {
	remap := func(n int) (int, bool) {
		switch n {
		case 0:
			return 1, true
		case 1:
			return 0, true
		case 3:
			return 2, true
		default:
			return 0, false
		}
	}
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"singles", "Image 0 face, Image 1 room, Image 2 coat.", "Image 1 face, Image 0 room, the reference coat."},
		{"plural pair", "Images 1 and 0 share the light.", "Images 0 and 1 share the light."},
		{"singular pair", "Use Image 0 and 3 for the pose.", "Use Images 1 and 2 for the pose."},
		{"comma list", "Images 0, 1, and 3 set the room.", "Images 1, 0 and 2 set the room."},
		{"lowercase", "match image 3 exactly", "match image 2 exactly"},
		{"list loses one", "Images 2 and 3 frame it.", "Image 2 frame it."},
		{"list loses all", "Images 2 and 4 are noise.", "the references are noise."},
		{"upper case", "IMAGES 0 & 1", "IMAGES 1 and 0"},
		{"separate labels", "Image 0 and Image 1", "Image 1 and Image 0"},
		{"repeated position", "Images 3 and 3", "Image 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RewriteReferences(tt.in, remap); got != tt.want {
				t.Fatalf("RewriteReferences = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLocalReferences(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"Image 2 then Image 0", []int{0, 2}},
		{"Images 1 and 2", []int{1, 2}},
		{"image 0 and 3, Image 3", []int{0, 3}},
		{"Images 4, 5 and 6", []int{4, 5, 6}},
		{"no references", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, LocalReferences(tt.in)); diff != "" {
			t.Fatalf("LocalReferences(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestSelectionResultValidate(t *testing.T) {
	tests := []struct {
		name   string
		result SelectionResult
		n      int
		ok     bool
	}{
		{"valid", SelectionResult{Indices: []int{4, 1}, Instruction: "Image 0 and Image 1"}, 5, true},
		{"empty", SelectionResult{}, 0, true},
		{"too many", SelectionResult{Indices: []int{0, 1, 2, 3, 4, 5, 6, 7, 8}}, 9, false},
		{"duplicate", SelectionResult{Indices: []int{1, 1}}, 3, false},
		{"out of range", SelectionResult{Indices: []int{3}}, 3, false},
		{"stale reference", SelectionResult{Indices: []int{0}, Instruction: "Image 1"}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate(tt.n)
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidSelection) {
				t.Fatalf("expected ErrInvalidSelection, got %v", err)
			}
		})
	}
}

func TestSelectionArtifacts(t *testing.T) {
	candidates := []ReferenceArtifact{{Handle: "a"}, {Handle: "b"}, {Handle: "c"}}
	got := SelectionResult{Indices: []int{2, 0}}.Artifacts(candidates)
	if diff := cmp.Diff([]ReferenceArtifact{{Handle: "c"}, {Handle: "a"}}, got); diff != "" {
		t.Fatalf("Artifacts mismatch (-want +got):\n%s", diff)
	}
}
