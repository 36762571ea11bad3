package pipeline

import (
	"fmt"
	"strings"

	"framewright/internal/graph"
)

// Candidates builds the reference list offered to the selector for frame f.
// The order is the portraits of every visible character, then the reference
// stills of the frame's camera and its ancestors (root last), then every
// frame image in the snapshot, oldest first.
func Candidates(snapshot []graph.ReferenceArtifact, plan *Plan, f graph.Frame) []graph.ReferenceArtifact {
	byHandle := make(map[graph.Handle]graph.ReferenceArtifact, len(snapshot))
	for _, a := range snapshot {
		byHandle[a.Handle] = a
	}

	var out []graph.ReferenceArtifact
	for _, c := range f.Visible {
		if c < 0 || c >= len(plan.Portraits) {
			continue
		}
		for _, p := range plan.Portraits[c] {
			if a, ok := byHandle[p.Handle]; ok {
				out = append(out, a)
			}
		}
	}
	for _, camIdx := range graph.Ancestors(plan.Cameras, f.CamIdx) {
		if camIdx < 0 || camIdx >= len(plan.Cameras) || plan.Cameras[camIdx].ReferenceImage == nil {
			continue
		}
		if a, ok := byHandle[*plan.Cameras[camIdx].ReferenceImage]; ok {
			out = append(out, a)
		}
	}
	for _, a := range snapshot {
		if a.Kind == graph.KindFrame {
			out = append(out, a)
		}
	}
	return out
}

// ImagePrompt renders the synthesis prompt for a frame from its selected
// references and the selection instruction.
func ImagePrompt(refs []graph.ReferenceArtifact, instruction, desc string) string {
	var b strings.Builder
	for i, r := range refs {
		fmt.Fprintf(&b, "Image %d: %s\n", i, r.Description)
	}
	if instruction = strings.TrimSpace(instruction); instruction != "" {
		b.WriteString(instruction)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Generate an image based on the following description: %s.", strings.TrimRight(strings.TrimSpace(desc), "."))
	return b.String()
}

// renumberCameras maps storyboard camera ids to dense indices in order of
// first appearance, so the camera filming shot 0 is camera 0.
func renumberCameras(shots []int) ([]int, int) {
	mapping := map[int]int{}
	out := make([]int, len(shots))
	for i, cam := range shots {
		idx, ok := mapping[cam]
		if !ok {
			idx = len(mapping)
			mapping[cam] = idx
		}
		out[i] = idx
	}
	return out, len(mapping)
}

// parentShot picks the shot whose first frame seeds the transition into cam.
func parentShot(cameras []graph.Camera, cam graph.Camera) int {
	if cam.ParentCamIdx == nil {
		return -1
	}
	parent := cameras[*cam.ParentCamIdx]
	if cam.ParentShotIdx != nil && parent.Films(*cam.ParentShotIdx) {
		return *cam.ParentShotIdx
	}
	return parent.FirstShot()
}
