package judgment

import (
	"context"
	"errors"

	"framewright/internal/graph"
)

// ErrMalformed marks a response that decoded but does not fit the schema, or did not decode.
var ErrMalformed = errors.New("malformed judgment response")

// Service is the complete judgment capability.
type Service interface {
	WriteScript(ctx context.Context, req ScriptRequest) (ScriptResponse, error)
	ExtractCharacters(ctx context.Context, req CharactersRequest) (CharactersResponse, error)
	DesignStoryboard(ctx context.Context, req StoryboardRequest) (StoryboardResponse, error)
	AssignCameraParents(ctx context.Context, req CameraTreeRequest) (CameraTreeResponse, error)
	DecomposeShot(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error)
	PrefilterReferences(ctx context.Context, req PrefilterRequest) (SelectionResponse, error)
	FinalizeReferences(ctx context.Context, req FinalizeRequest) (SelectionResponse, error)
}

// ScriptRequest asks for a single-scene script from a one-line idea.
type ScriptRequest struct {
	Idea        string
	Requirement string
	Style       string
}

// ScriptResponse carries the written scene.
type ScriptResponse struct {
	Script string `json:"script"`
}

// CharactersRequest asks for the roster of a script.
type CharactersRequest struct {
	Script string
}

// CharactersResponse lists the extracted characters in order of appearance.
type CharactersResponse struct {
	Characters []graph.Character `json:"characters"`
}

// StoryboardRequest asks for a shot list with camera assignment.
type StoryboardRequest struct {
	Script      string
	Roster      []graph.Character
	Requirement string
	Style       string
}

// StoryboardShot is one planned shot.
type StoryboardShot struct {
	CamIdx     int    `json:"cam_idx"`
	VisualDesc string `json:"visual_desc"`
	AudioDesc  string `json:"audio_desc"`
	IsLast     bool   `json:"is_last"`
}

// StoryboardResponse lists shots in narrative order.
type StoryboardResponse struct {
	Shots []StoryboardShot `json:"storyboard"`
}

// CameraShots is one camera's footage as numbered shot descriptions, in filming order.
type CameraShots struct {
	CamIdx int
	Shots  []string
}

// CameraTreeRequest carries every camera; the tree is judged in one request.
type CameraTreeRequest struct {
	Cameras []CameraShots
}

// ParentAssignment is the judged parent of one camera.
type ParentAssignment struct {
	ParentCamIdx  *int    `json:"parent_cam_idx"`
	ParentShotIdx *int    `json:"parent_shot_idx"`
	Reason        *string `json:"reason"`
	FullyCovers   *bool   `json:"is_parent_fully_covers_child"`
	MissingInfo   *string `json:"missing_info"`
}

// CameraTreeResponse holds one optional assignment per camera, by position.
type CameraTreeResponse struct {
	Assignments []*ParentAssignment `json:"camera_parent_items"`
}

// DecomposeRequest asks to split one shot into first frame, last frame and motion.
type DecomposeRequest struct {
	VisualDesc string
	// Roster holds one rendered line per character; visibility indices refer to it.
	Roster []string
}

// DecomposeResponse is the judged split.
type DecomposeResponse struct {
	FirstFrameDesc    string          `json:"ff_desc"`
	FirstFrameVisible []int           `json:"ff_vis_char_idxs"`
	LastFrameDesc     string          `json:"lf_desc"`
	LastFrameVisible  []int           `json:"lf_vis_char_idxs"`
	MotionDesc        string          `json:"motion_desc"`
	Variation         graph.Variation `json:"variation_type"`
	VariationReason   string          `json:"variation_reason"`
}

// PrefilterRequest is the text-only selection stage.
type PrefilterRequest struct {
	Target       string
	Descriptions []string
}

// ImageCandidate is one full-fidelity candidate for the final selection stage.
type ImageCandidate struct {
	Description string
	MIMEType    string
	Data        []byte
}

// FinalizeRequest is the multimodal selection stage.
type FinalizeRequest struct {
	Target     string
	Candidates []ImageCandidate
}

// SelectionResponse carries indices into the request's candidate list and an
// instruction whose "Image N" references are positions in Indices.
type SelectionResponse struct {
	Indices     []int  `json:"ref_image_indices"`
	Instruction string `json:"text_prompt"`
}
