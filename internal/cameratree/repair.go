package cameratree

import (
	"fmt"

	"framewright/internal/graph"
	"framewright/internal/judgment"
)

// RepairKind names a structural fix applied to a judged tree.
type RepairKind string

const (
	RepairForcedRoot     RepairKind = "forced_root"
	RepairInvalidParent  RepairKind = "invalid_parent"
	RepairCycle          RepairKind = "cycle_broken"
	RepairAttachedToRoot RepairKind = "attached_to_root"
)

// Repair records one fix.
type Repair struct {
	Camera int
	Kind   RepairKind
	Detail string
}

// Apply copies cameras, applies assignments by position and repairs the
// result into a forest rooted at camera 0. Missing trailing assignments count
// as nil and extra ones are ignored.
func Apply(cameras []graph.Camera, assignments []*judgment.ParentAssignment) ([]graph.Camera, []Repair) {
	out := make([]graph.Camera, len(cameras))
	var repairs []Repair
	for i, cam := range cameras {
		cam.ActiveShotIdxs = append([]int(nil), cam.ActiveShotIdxs...)
		cam.Detach()
		out[i] = cam

		var a *judgment.ParentAssignment
		if i < len(assignments) {
			a = assignments[i]
		}
		if a == nil || a.ParentCamIdx == nil {
			continue
		}
		parent := *a.ParentCamIdx
		switch {
		case i == 0:
			repairs = append(repairs, Repair{Camera: 0, Kind: RepairForcedRoot,
				Detail: fmt.Sprintf("judged parent %d dropped; camera 0 is always the root", parent)})
			continue
		case parent == i:
			repairs = append(repairs, Repair{Camera: i, Kind: RepairInvalidParent, Detail: "camera named itself as parent"})
			continue
		case parent < 0 || parent >= len(cameras):
			repairs = append(repairs, Repair{Camera: i, Kind: RepairInvalidParent,
				Detail: fmt.Sprintf("parent %d out of range [0,%d)", parent, len(cameras))})
			continue
		}
		out[i].ParentCamIdx = graph.Ptr(parent)
		out[i].ParentShotIdx = copyPtr(a.ParentShotIdx)
		out[i].Reason = copyPtr(a.Reason)
		out[i].ParentFullyCoversChild = copyPtr(a.FullyCovers)
		out[i].MissingInfo = copyPtr(a.MissingInfo)
	}

	repairs = append(repairs, breakCycles(out)...)
	repairs = append(repairs, attachExtraRoots(out)...)
	return out, repairs
}

// breakCycles walks from every camera in index order. When a walk revisits a
// camera on its own path, the loop is cut at the lowest-indexed member whose
// parent has a higher index than itself, so the surviving edges point from
// higher to lower indices.
func breakCycles(cameras []graph.Camera) []Repair {
	var repairs []Repair
	terminates := make([]bool, len(cameras))
	for start := range cameras {
		for {
			onPath := map[int]int{}
			var path []int
			cur := start
			loopStart := -1
			for {
				if terminates[cur] {
					break
				}
				if pos, ok := onPath[cur]; ok {
					loopStart = pos
					break
				}
				onPath[cur] = len(path)
				path = append(path, cur)
				if cameras[cur].ParentCamIdx == nil {
					break
				}
				cur = *cameras[cur].ParentCamIdx
			}
			if loopStart < 0 {
				for _, idx := range path {
					terminates[idx] = true
				}
				break
			}
			cut := upwardMember(cameras, path[loopStart:])
			repairs = append(repairs, Repair{Camera: cut, Kind: RepairCycle,
				Detail: fmt.Sprintf("parent %d closes a loop", *cameras[cut].ParentCamIdx)})
			cameras[cut].Detach()
		}
	}
	return repairs
}

// upwardMember returns the lowest camera on the loop that points at a
// higher-indexed parent. Every loop has one.
func upwardMember(cameras []graph.Camera, loop []int) int {
	cut := -1
	for _, idx := range loop {
		if *cameras[idx].ParentCamIdx > idx && (cut < 0 || idx < cut) {
			cut = idx
		}
	}
	if cut < 0 {
		cut = loop[len(loop)-1]
	}
	return cut
}

func attachExtraRoots(cameras []graph.Camera) []Repair {
	var repairs []Repair
	rootShot := cameras[0].FirstShot()
	for i := 1; i < len(cameras); i++ {
		if !cameras[i].IsRoot() {
			continue
		}
		cameras[i].ParentCamIdx = graph.Ptr(0)
		cameras[i].ParentShotIdx = nil
		if rootShot >= 0 {
			cameras[i].ParentShotIdx = graph.Ptr(rootShot)
		}
		cameras[i].Reason = graph.Ptr(ReviewNote)
		cameras[i].ParentFullyCoversChild = nil
		cameras[i].MissingInfo = nil
		cameras[i].NeedsReview = true
		repairs = append(repairs, Repair{Camera: i, Kind: RepairAttachedToRoot, Detail: "rootless camera attached to camera 0"})
	}
	return repairs
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
