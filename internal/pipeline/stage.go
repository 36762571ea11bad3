package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is a step of the scene state machine.
type Stage string

const (
	StageScripted               Stage = "scripted"
	StageCharactersExtracted    Stage = "characters_extracted"
	StageStoryboarded           Stage = "storyboarded"
	StageCameraTreeBuilt        Stage = "camera_tree_built"
	StageShotsDecomposed        Stage = "shots_decomposed"
	StageReferencesSelected     Stage = "references_selected"
	StageImagesSynthesized      Stage = "images_synthesized"
	StageShotsAnimated          Stage = "shots_animated"
	StageTransitionsSynthesized Stage = "transitions_synthesized"
	StageCamerasExtended        Stage = "cameras_extended"
	StageDone                   Stage = "done"
	StageFailed                 Stage = "failed"
)

// Stages lists the canonical order. The five frame stages repeat per wave.
var Stages = []Stage{
	StageScripted,
	StageCharactersExtracted,
	StageStoryboarded,
	StageCameraTreeBuilt,
	StageShotsDecomposed,
	StageReferencesSelected,
	StageImagesSynthesized,
	StageShotsAnimated,
	StageTransitionsSynthesized,
	StageCamerasExtended,
	StageDone,
}

func (s Stage) String() string { return string(s) }

// PerWave reports whether the stage repeats for every camera wave.
func (s Stage) PerWave() bool {
	switch s {
	case StageReferencesSelected, StageImagesSynthesized, StageShotsAnimated, StageTransitionsSynthesized, StageCamerasExtended:
		return true
	}
	return false
}

var titleCaser = cases.Title(language.English)

// Label renders the stage for humans, e.g. "Camera Tree Built".
func (s Stage) Label() string {
	if s == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// stepKey identifies one executed stage pass in the plan's progress list.
func stepKey(s Stage, wave int) string {
	if s.PerWave() {
		return fmt.Sprintf("%s#%d", s, wave)
	}
	return string(s)
}
