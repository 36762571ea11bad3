package judgment

import (
	"context"
	"fmt"
	"strings"

	"framewright/internal/graph"
	"framewright/internal/services/llm"
)

// Completer is the chat transport the LLM service needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteJSONWithImages(ctx context.Context, systemPrompt, userPrompt string, images []llm.Image) (string, error)
}

// LLM implements Service on a JSON chat completion client.
type LLM struct {
	client Completer
}

// NewLLM wraps client.
func NewLLM(client Completer) *LLM {
	return &LLM{client: client}
}

var _ Service = (*LLM)(nil)

func (j *LLM) complete(ctx context.Context, op, system, user string, target any) error {
	content, err := j.client.CompleteJSON(ctx, system, user)
	if err != nil {
		return fmt.Errorf("judgment %s: %w", op, err)
	}
	return decode(op, content, target)
}

func decode(op, content string, target any) error {
	if err := llm.DecodeLLMJSON(content, target); err != nil {
		return fmt.Errorf("judgment %s: %w: %v", op, ErrMalformed, err)
	}
	return nil
}

func malformed(op, format string, args ...any) error {
	return fmt.Errorf("judgment %s: %w: %s", op, ErrMalformed, fmt.Sprintf(format, args...))
}

// WriteScript turns a one-line idea into a scene script.
func (j *LLM) WriteScript(ctx context.Context, req ScriptRequest) (ScriptResponse, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Idea: %s", strings.TrimSpace(req.Idea))
	writeOptional(&b, "Requirement", req.Requirement)
	writeOptional(&b, "Style", req.Style)

	var resp ScriptResponse
	if err := j.complete(ctx, "write script", scriptSystemPrompt, b.String(), &resp); err != nil {
		return ScriptResponse{}, err
	}
	resp.Script = strings.TrimSpace(resp.Script)
	if resp.Script == "" {
		return ScriptResponse{}, malformed("write script", "empty script")
	}
	return resp, nil
}

// ExtractCharacters returns the script's roster.
func (j *LLM) ExtractCharacters(ctx context.Context, req CharactersRequest) (CharactersResponse, error) {
	var resp CharactersResponse
	if err := j.complete(ctx, "extract characters", charactersSystemPrompt, "Script:\n"+req.Script, &resp); err != nil {
		return CharactersResponse{}, err
	}
	for i := range resp.Characters {
		resp.Characters[i].Identifier = strings.Trim(strings.TrimSpace(resp.Characters[i].Identifier), "<>")
	}
	if err := graph.ValidateRoster(resp.Characters); err != nil {
		return CharactersResponse{}, malformed("extract characters", "%v", err)
	}
	return resp, nil
}

// DesignStoryboard plans the shot list.
func (j *LLM) DesignStoryboard(ctx context.Context, req StoryboardRequest) (StoryboardResponse, error) {
	var b strings.Builder
	b.WriteString("Characters:\n")
	b.WriteString(graph.RosterLines(req.Roster))
	b.WriteString("\n\nScript:\n")
	b.WriteString(req.Script)
	writeOptional(&b, "\nRequirement", req.Requirement)
	writeOptional(&b, "Style", req.Style)

	var resp StoryboardResponse
	if err := j.complete(ctx, "storyboard", storyboardSystemPrompt, b.String(), &resp); err != nil {
		return StoryboardResponse{}, err
	}
	if len(resp.Shots) == 0 {
		return StoryboardResponse{}, malformed("storyboard", "no shots")
	}
	for i, shot := range resp.Shots {
		if shot.CamIdx < 0 {
			return StoryboardResponse{}, malformed("storyboard", "shot %d has negative cam_idx", i)
		}
		if strings.TrimSpace(shot.VisualDesc) == "" {
			return StoryboardResponse{}, malformed("storyboard", "shot %d has no visual description", i)
		}
	}
	return resp, nil
}

// AssignCameraParents judges the whole camera tree in one request.
func (j *LLM) AssignCameraParents(ctx context.Context, req CameraTreeRequest) (CameraTreeResponse, error) {
	var b strings.Builder
	for i, cam := range req.Cameras {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Camera %d:\n%s", cam.CamIdx, strings.Join(cam.Shots, "\n"))
	}
	var resp CameraTreeResponse
	if err := j.complete(ctx, "camera tree", cameraTreeSystemPrompt, b.String(), &resp); err != nil {
		return CameraTreeResponse{}, err
	}
	return resp, nil
}

// DecomposeShot splits one shot.
func (j *LLM) DecomposeShot(ctx context.Context, req DecomposeRequest) (DecomposeResponse, error) {
	var b strings.Builder
	b.WriteString("Characters:\n")
	for i, line := range req.Roster {
		fmt.Fprintf(&b, "%d. %s\n", i, line)
	}
	b.WriteString("\nShot:\n")
	b.WriteString(req.VisualDesc)

	var resp DecomposeResponse
	if err := j.complete(ctx, "decompose shot", decomposeSystemPrompt, b.String(), &resp); err != nil {
		return DecomposeResponse{}, err
	}
	if resp.Variation == graph.VariationUnknown {
		return DecomposeResponse{}, malformed("decompose shot", "missing variation_type")
	}
	if strings.TrimSpace(resp.FirstFrameDesc) == "" || strings.TrimSpace(resp.LastFrameDesc) == "" {
		return DecomposeResponse{}, malformed("decompose shot", "missing frame description")
	}
	return resp, nil
}

// PrefilterReferences narrows candidates by description only.
func (j *LLM) PrefilterReferences(ctx context.Context, req PrefilterRequest) (SelectionResponse, error) {
	var b strings.Builder
	b.WriteString("<SEQ_DESC>\n")
	for i, desc := range req.Descriptions {
		fmt.Fprintf(&b, "Image %d: %s\n", i, desc)
	}
	b.WriteString("</SEQ_DESC>\n\nTarget frame: ")
	b.WriteString(req.Target)

	var resp SelectionResponse
	if err := j.complete(ctx, "prefilter references", prefilterSystemPrompt, b.String(), &resp); err != nil {
		return SelectionResponse{}, err
	}
	return resp, nil
}

// FinalizeReferences makes the final selection with the images attached.
func (j *LLM) FinalizeReferences(ctx context.Context, req FinalizeRequest) (SelectionResponse, error) {
	images := make([]llm.Image, len(req.Candidates))
	for i, c := range req.Candidates {
		images[i] = llm.Image{
			Label:    fmt.Sprintf("Image %d: %s", i, c.Description),
			MIMEType: c.MIMEType,
			Data:     c.Data,
		}
	}
	user := "The candidate images follow, each after its description.\n\nTarget frame: " + req.Target

	content, err := j.client.CompleteJSONWithImages(ctx, finalizeSystemPrompt, user, images)
	if err != nil {
		return SelectionResponse{}, fmt.Errorf("judgment finalize references: %w", err)
	}
	var resp SelectionResponse
	if err := decode("finalize references", content, &resp); err != nil {
		return SelectionResponse{}, err
	}
	return resp, nil
}

func writeOptional(b *strings.Builder, label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		fmt.Fprintf(b, "\n%s: %s", label, value)
	}
}
