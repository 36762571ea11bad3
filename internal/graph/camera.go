package graph

import (
	"errors"
	"fmt"
)

// Camera is a point of view that films a subset of the scene's shots.
type Camera struct {
	Index          int   `json:"index" yaml:"index"`
	ActiveShotIdxs []int `json:"active_shot_idxs" yaml:"active_shot_idxs"`

	ParentCamIdx           *int    `json:"parent_cam_idx,omitempty" yaml:"parent_cam_idx,omitempty"`
	ParentShotIdx          *int    `json:"parent_shot_idx,omitempty" yaml:"parent_shot_idx,omitempty"`
	Reason                 *string `json:"reason,omitempty" yaml:"reason,omitempty"`
	ParentFullyCoversChild *bool   `json:"parent_fully_covers_child,omitempty" yaml:"parent_fully_covers_child,omitempty"`
	MissingInfo            *string `json:"missing_info,omitempty" yaml:"missing_info,omitempty"`

	// ReferenceImage is grafted once the transition into this camera is extracted.
	ReferenceImage *Handle `json:"reference_image,omitempty" yaml:"reference_image,omitempty"`
	// NeedsReview marks a parent assignment forced by tree repair.
	NeedsReview bool `json:"needs_review,omitempty" yaml:"needs_review,omitempty"`
}

// IsRoot reports whether the camera has no parent.
func (c Camera) IsRoot() bool { return c.ParentCamIdx == nil }

// FirstShot returns the first active shot index, or -1.
func (c Camera) FirstShot() int {
	if len(c.ActiveShotIdxs) == 0 {
		return -1
	}
	return c.ActiveShotIdxs[0]
}

// Films reports whether shotIdx is one of the camera's active shots.
func (c Camera) Films(shotIdx int) bool {
	for _, idx := range c.ActiveShotIdxs {
		if idx == shotIdx {
			return true
		}
	}
	return false
}

// Detach clears the parent pointer and every field that depends on it.
func (c *Camera) Detach() {
	c.ParentCamIdx = nil
	c.ParentShotIdx = nil
	c.Reason = nil
	c.ParentFullyCoversChild = nil
	c.MissingInfo = nil
	c.NeedsReview = false
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

var (
	// ErrNoRoot reports a camera list without a parentless camera 0.
	ErrNoRoot = errors.New("camera forest: camera 0 must be the root")
	// ErrMultipleRoots reports more than one parentless camera.
	ErrMultipleRoots = errors.New("camera forest: more than one root")
	// ErrCycle reports a parent chain that never reaches the root.
	ErrCycle = errors.New("camera forest: cycle")
)

// Validate reports the first violated forest invariant.
func Validate(cameras []Camera) error {
	if len(cameras) == 0 {
		return errors.New("camera forest: no cameras")
	}
	for i, cam := range cameras {
		if cam.Index != i {
			return fmt.Errorf("camera forest: camera at position %d has index %d", i, cam.Index)
		}
		if cam.ParentCamIdx == nil {
			continue
		}
		parent := *cam.ParentCamIdx
		if parent < 0 || parent >= len(cameras) {
			return fmt.Errorf("camera forest: camera %d parent %d out of range", i, parent)
		}
		if parent == i {
			return fmt.Errorf("%w: camera %d is its own parent", ErrCycle, i)
		}
	}
	if !cameras[0].IsRoot() {
		return ErrNoRoot
	}
	for i := 1; i < len(cameras); i++ {
		if cameras[i].IsRoot() {
			return fmt.Errorf("%w: camera %d", ErrMultipleRoots, i)
		}
	}
	if _, err := depths(cameras); err != nil {
		return err
	}
	return nil
}

// Depths returns each camera's distance from the root. Validate first.
func Depths(cameras []Camera) []int {
	out, err := depths(cameras)
	if err != nil {
		return nil
	}
	return out
}

func depths(cameras []Camera) ([]int, error) {
	out := make([]int, len(cameras))
	for i := range cameras {
		depth := 0
		seen := map[int]bool{i: true}
		cur := cameras[i]
		for cur.ParentCamIdx != nil {
			next := *cur.ParentCamIdx
			if next < 0 || next >= len(cameras) {
				return nil, fmt.Errorf("camera forest: camera %d parent %d out of range", cur.Index, next)
			}
			if seen[next] {
				return nil, fmt.Errorf("%w: walk from camera %d revisits camera %d", ErrCycle, i, next)
			}
			seen[next] = true
			depth++
			cur = cameras[next]
		}
		out[i] = depth
	}
	return out, nil
}

// Children returns the indices of cameras whose parent is idx, in index order.
func Children(cameras []Camera, idx int) []int {
	var out []int
	for _, cam := range cameras {
		if cam.ParentCamIdx != nil && *cam.ParentCamIdx == idx {
			out = append(out, cam.Index)
		}
	}
	return out
}

// Roots returns the indices of parentless cameras.
func Roots(cameras []Camera) []int {
	var out []int
	for _, cam := range cameras {
		if cam.IsRoot() {
			out = append(out, cam.Index)
		}
	}
	return out
}

// Ancestors returns idx followed by its parent chain, root last.
func Ancestors(cameras []Camera, idx int) []int {
	out := []int{idx}
	seen := map[int]bool{idx: true}
	for cur := idx; cur >= 0 && cur < len(cameras) && cameras[cur].ParentCamIdx != nil; {
		cur = *cameras[cur].ParentCamIdx
		if seen[cur] || cur < 0 || cur >= len(cameras) {
			break
		}
		seen[cur] = true
		out = append(out, cur)
	}
	return out
}
