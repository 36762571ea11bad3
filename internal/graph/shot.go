package graph

import (
	"fmt"
	"strings"
)

// Variation classifies how much a shot changes between its first and last frame.
type Variation int

const (
	VariationUnknown Variation = iota
	VariationSmall
	VariationMedium
	VariationLarge
)

var variationNames = map[Variation]string{
	VariationSmall:  "small",
	VariationMedium: "medium",
	VariationLarge:  "large",
}

func (v Variation) String() string {
	if name, ok := variationNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVariation maps large, medium or small (any case) to a Variation.
func ParseVariation(s string) (Variation, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for v, name := range variationNames {
		if name == normalized {
			return v, nil
		}
	}
	return VariationUnknown, fmt.Errorf("unknown variation %q", s)
}

// MarshalText encodes an undecomposed shot's variation as the empty string.
func (v Variation) MarshalText() ([]byte, error) {
	if v == VariationUnknown {
		return []byte{}, nil
	}
	return []byte(v.String()), nil
}

func (v *Variation) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*v = VariationUnknown
		return nil
	}
	parsed, err := ParseVariation(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ShotBrief is a storyboard shot before decomposition.
type ShotBrief struct {
	Index      int    `json:"index" yaml:"index"`
	IsLast     bool   `json:"is_last" yaml:"is_last"`
	CamIdx     int    `json:"cam_idx" yaml:"cam_idx"`
	VisualDesc string `json:"visual_desc" yaml:"visual_desc"`
	AudioDesc  string `json:"audio_desc" yaml:"audio_desc"`
}

// Shot is a decomposed shot.
type Shot struct {
	ShotBrief `yaml:",inline"`

	FirstFrameDesc    string `json:"first_frame_desc" yaml:"first_frame_desc"`
	FirstFrameVisible []int  `json:"first_frame_visible" yaml:"first_frame_visible"`
	LastFrameDesc     string `json:"last_frame_desc" yaml:"last_frame_desc"`
	LastFrameVisible  []int  `json:"last_frame_visible" yaml:"last_frame_visible"`
	MotionDesc        string `json:"motion_desc" yaml:"motion_desc"`

	Variation       Variation `json:"variation" yaml:"variation"`
	VariationReason string    `json:"variation_reason" yaml:"variation_reason"`
}

// Decomposed reports whether the shot has been through decomposition.
func (s Shot) Decomposed() bool {
	return s.Variation != VariationUnknown
}

// ValidateVisible checks every visibility index against the roster size.
func (s Shot) ValidateVisible(rosterLen int) error {
	for _, set := range [][]int{s.FirstFrameVisible, s.LastFrameVisible} {
		for _, idx := range set {
			if idx < 0 || idx >= rosterLen {
				return fmt.Errorf("shot %d: character index %d out of range [0,%d)", s.Index, idx, rosterLen)
			}
		}
	}
	return nil
}

// FrameKind distinguishes a shot's opening and closing still.
type FrameKind string

const (
	FrameFirst FrameKind = "first"
	FrameLast  FrameKind = "last"
)

// Frame is a derived view of one still of a shot.
type Frame struct {
	ShotIdx int       `json:"shot_idx" yaml:"shot_idx"`
	Kind    FrameKind `json:"kind" yaml:"kind"`
	CamIdx  int       `json:"cam_idx" yaml:"cam_idx"`
	Visible []int     `json:"visible" yaml:"visible"`
	Desc    string    `json:"desc" yaml:"desc"`
}

// Key identifies the frame in file names and logs, e.g. shot-003-first.
func (f Frame) Key() string {
	return fmt.Sprintf("shot-%03d-%s", f.ShotIdx, f.Kind)
}

// Frame derives the first or last frame view.
func (s Shot) Frame(kind FrameKind) Frame {
	f := Frame{ShotIdx: s.Index, Kind: kind, CamIdx: s.CamIdx}
	switch kind {
	case FrameLast:
		f.Visible = append([]int(nil), s.LastFrameVisible...)
		f.Desc = s.LastFrameDesc
	default:
		f.Kind = FrameFirst
		f.Visible = append([]int(nil), s.FirstFrameVisible...)
		f.Desc = s.FirstFrameDesc
	}
	return f
}

// Frames returns the frames a shot contributes. Small-variation shots only
// need their first frame because the last one is derived by motion.
func (s Shot) Frames() []Frame {
	if s.Variation == VariationSmall {
		return []Frame{s.Frame(FrameFirst)}
	}
	return []Frame{s.Frame(FrameFirst), s.Frame(FrameLast)}
}
