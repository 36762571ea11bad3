package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"framewright/internal/graph"
	"framewright/internal/transition"
)

// PlanFileName is the resume snapshot inside a run workspace.
const PlanFileName = "plan.json"

// PlanExportName is the YAML export written when a run completes.
const PlanExportName = "plan.yaml"

// Plan is everything a run has decided so far.
type Plan struct {
	RunID       string `json:"run_id" yaml:"run_id"`
	Stage       Stage  `json:"stage" yaml:"stage"`
	Wave        int    `json:"wave" yaml:"wave"`
	Idea        string `json:"idea,omitempty" yaml:"idea,omitempty"`
	Requirement string `json:"requirement,omitempty" yaml:"requirement,omitempty"`
	Style       string `json:"style,omitempty" yaml:"style,omitempty"`
	Script      string `json:"script" yaml:"script"`

	Characters []graph.Character `json:"characters" yaml:"characters"`
	// Portraits holds the front, side and back views per character.
	Portraits   [][]graph.ReferenceArtifact `json:"portraits" yaml:"portraits"`
	Shots       []graph.Shot                `json:"shots" yaml:"shots"`
	Cameras     []graph.Camera              `json:"cameras" yaml:"cameras"`
	Frames      []FramePlan                 `json:"frames" yaml:"frames"`
	Transitions []TransitionPlan            `json:"transitions" yaml:"transitions"`
	ShotClips   []ShotClipPlan              `json:"shot_clips" yaml:"shot_clips"`

	// Progress lists completed stage passes; frame stages carry their wave.
	Progress []string `json:"progress" yaml:"-"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// FramePlan is the selection and synthesis record of one frame.
type FramePlan struct {
	Key        string                 `json:"key" yaml:"key"`
	Wave       int                    `json:"wave" yaml:"wave"`
	Frame      graph.Frame            `json:"frame" yaml:"frame"`
	Candidates int                    `json:"candidates" yaml:"candidates"`
	Selection  *graph.SelectionResult `json:"selection,omitempty" yaml:"selection,omitempty"`
	References []graph.Handle         `json:"references,omitempty" yaml:"references,omitempty"`
	Image      graph.Handle           `json:"image,omitempty" yaml:"image,omitempty"`
}

// TransitionPlan records how a child camera obtained its reference still.
type TransitionPlan struct {
	CamIdx        int               `json:"cam_idx" yaml:"cam_idx"`
	ParentCamIdx  int               `json:"parent_cam_idx" yaml:"parent_cam_idx"`
	ParentShotIdx int               `json:"parent_shot_idx" yaml:"parent_shot_idx"`
	Wave          int               `json:"wave" yaml:"wave"`
	Clip          graph.Handle      `json:"clip,omitempty" yaml:"clip,omitempty"`
	Still         graph.Handle      `json:"still,omitempty" yaml:"still,omitempty"`
	Source        transition.Source `json:"source,omitempty" yaml:"source,omitempty"`
	Timestamp     float64           `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// ShotClipPlan records the clip rendered for one shot. Mode is ff2v when
// only the first frame conditions the clip and flf2v when both do.
type ShotClipPlan struct {
	ShotIdx int            `json:"shot_idx" yaml:"shot_idx"`
	Wave    int            `json:"wave" yaml:"wave"`
	Mode    string         `json:"mode" yaml:"mode"`
	Frames  []graph.Handle `json:"frames" yaml:"frames"`
	Clip    graph.Handle   `json:"clip,omitempty" yaml:"clip,omitempty"`
}

// Completed reports whether the stage pass already ran.
func (p *Plan) Completed(s Stage, wave int) bool {
	key := stepKey(s, wave)
	for _, done := range p.Progress {
		if done == key {
			return true
		}
	}
	return false
}

func (p *Plan) markCompleted(s Stage, wave int) {
	if !p.Completed(s, wave) {
		p.Progress = append(p.Progress, stepKey(s, wave))
	}
	p.Stage = s
	p.Wave = wave
}

// frameSlot returns the position of the frame's record, creating it if needed.
func (p *Plan) frameSlot(f graph.Frame, wave int) int {
	key := f.Key()
	for i := range p.Frames {
		if p.Frames[i].Key == key {
			return i
		}
	}
	p.Frames = append(p.Frames, FramePlan{Key: key, Wave: wave, Frame: f})
	return len(p.Frames) - 1
}

func (p *Plan) transitionSlot(camIdx, wave int) int {
	for i := range p.Transitions {
		if p.Transitions[i].CamIdx == camIdx {
			return i
		}
	}
	p.Transitions = append(p.Transitions, TransitionPlan{CamIdx: camIdx, Wave: wave})
	return len(p.Transitions) - 1
}

func (p *Plan) shotClipSlot(shotIdx, wave int) int {
	for i := range p.ShotClips {
		if p.ShotClips[i].ShotIdx == shotIdx {
			return i
		}
	}
	p.ShotClips = append(p.ShotClips, ShotClipPlan{ShotIdx: shotIdx, Wave: wave})
	return len(p.ShotClips) - 1
}

// SavePlan writes the plan as indented JSON, replacing the file atomically.
func SavePlan(path string, plan *Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace plan: %w", err)
	}
	return nil
}

// ErrNoPlan is returned when a workspace has no saved plan.
var ErrNoPlan = errors.New("no saved plan")

// LoadPlan reads a plan written by SavePlan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoPlan, path)
		}
		return nil, fmt.Errorf("read plan: %w", err)
	}
	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", path, err)
	}
	return &plan, nil
}

// PlanPath returns the plan location of a run.
func PlanPath(runsDir, runID string) string {
	return filepath.Join(runsDir, runID, PlanFileName)
}

// ExportPlan writes the plan as YAML.
func ExportPlan(w io.Writer, plan *Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(plan); err != nil {
		return fmt.Errorf("export plan: %w", err)
	}
	return enc.Close()
}

// ExportPlanFile writes the YAML export to path.
func ExportPlanFile(path string, plan *Plan) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := ExportPlan(f, plan); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
