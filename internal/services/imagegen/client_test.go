package imagegen

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type fakeModels struct {
	resp     *genai.GenerateContentResponse
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText("here you go"),
			genai.NewPartFromBytes(data, "image/png"),
		}, genai.RoleModel),
	}}}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGenerateImageWritesFirstInlineImage(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "front.png")
	if err := os.WriteFile(ref, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	models := &fakeModels{resp: imageResponse([]byte("generated"))}
	client := newWithGenerator(Config{Model: "m"}, models)
	out := filepath.Join(dir, "frames", "shot-000-first.png")

	if err := client.GenerateImage(context.Background(), "Image 0: Alice, front view", []string{ref}, out); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil || string(data) != "generated" {
		t.Fatalf("output %q, %v", data, err)
	}
	if models.model != "m" {
		t.Fatalf("model = %q", models.model)
	}
	parts := models.contents[0].Parts
	if len(parts) != 2 || parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "image/png" {
		t.Fatalf("reference part missing: %+v", parts)
	}
	if !strings.HasSuffix(parts[1].Text, "Aspect ratio 16:9, 1600x900.") {
		t.Fatalf("prompt = %q", parts[1].Text)
	}
	if got := models.config.ResponseModalities; len(got) != 2 || got[0] != "IMAGE" {
		t.Fatalf("modalities = %v", got)
	}
}

func TestGenerateImageWithoutImagePart(t *testing.T) {
	models := &fakeModels{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: genai.NewContentFromText("I cannot draw that", genai.RoleModel),
	}}}}
	client := newWithGenerator(Config{}, models)
	out := filepath.Join(t.TempDir(), "x.png")
	err := client.GenerateImage(context.Background(), "p", nil, out)
	if !errors.Is(err, ErrNoImage) || !strings.Contains(err.Error(), "I cannot draw that") {
		t.Fatalf("unexpected error %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("nothing should be written")
	}
}

func TestGenerateImageMissingReference(t *testing.T) {
	models := &fakeModels{}
	client := newWithGenerator(Config{}, models)
	if err := client.GenerateImage(context.Background(), "p", []string{filepath.Join(t.TempDir(), "nope.png")}, "out.png"); err == nil {
		t.Fatal("expected error")
	}
	if models.contents != nil {
		t.Fatal("model should not be called")
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1600, 900, "16:9"},
		{1024, 1024, "1:1"},
		{0, 0, "16:9"},
	}
	for _, tt := range tests {
		if got := newWithGenerator(Config{Width: tt.w, Height: tt.h}, nil).AspectRatio(); got != tt.want {
			t.Fatalf("%dx%d: got %q want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
