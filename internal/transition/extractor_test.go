package transition

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"framewright/internal/media/ffprobe"
	"framewright/internal/media/scenecut"
	"framewright/internal/services"
)

type frameGrab struct {
	video string
	t     float64
	out   string
}

type fakeCutter struct {
	scenes []scenecut.Scene
	err    error
	grabs  []frameGrab
	splits int
}

func (f *fakeCutter) Detect(context.Context, string) ([]scenecut.Scene, error) {
	return f.scenes, f.err
}

func (f *fakeCutter) Split(_ context.Context, videoPath string, scenes []scenecut.Scene, outDir string) ([]string, error) {
	f.splits++
	out := make([]string, len(scenes))
	for i := range scenes {
		out[i] = outDir + "/" + scenecut.SceneFileName(videoPath, i+1)
	}
	return out, nil
}

func (f *fakeCutter) ExtractFrame(_ context.Context, videoPath string, t float64, outPath string) error {
	f.grabs = append(f.grabs, frameGrab{video: videoPath, t: t, out: outPath})
	return nil
}

type fakeInspector struct {
	result ffprobe.Result
	calls  int
}

func (f *fakeInspector) Inspect(context.Context, string) (ffprobe.Result, error) {
	f.calls++
	return f.result, nil
}

func durationResult(duration, rate string) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", AvgFrameRate: rate}},
		Format:  ffprobe.Format{Duration: duration},
	}
}

func TestExtractSecondScene(t *testing.T) {
	cutter := &fakeCutter{scenes: []scenecut.Scene{{Start: 0, End: 2.4}, {Start: 2.4, End: 5}}}
	media := &fakeInspector{}
	res, err := NewExtractor(cutter, media, nil).ExtractNewCameraFrame(context.Background(), "/w/transitions/cam-001.mp4", "/w/cameras/cam-001.png")
	if err != nil {
		t.Fatalf("ExtractNewCameraFrame: %v", err)
	}
	want := Result{Path: "/w/cameras/cam-001.png", Source: SourceSecondScene, Timestamp: 2.4, SceneCount: 2}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	wantGrab := frameGrab{video: "/w/transitions/cam-001-scenes/cam-001-Scene-002.mp4", t: 0, out: "/w/cameras/cam-001.png"}
	if diff := cmp.Diff([]frameGrab{wantGrab}, cutter.grabs, cmp.AllowUnexported(frameGrab{})); diff != "" {
		t.Fatalf("grab mismatch (-want +got):\n%s", diff)
	}
	if media.calls != 0 {
		t.Fatal("ffprobe should not run when a second scene exists")
	}
}

func TestExtractFallsBackToLastFrame(t *testing.T) {
	cutter := &fakeCutter{scenes: []scenecut.Scene{{Start: 0, End: 5}}}
	media := &fakeInspector{result: durationResult("5.000000", "16/1")}
	res, err := NewExtractor(cutter, media, nil).ExtractNewCameraFrame(context.Background(), "/w/t.mp4", "/w/c.png")
	if err != nil {
		t.Fatalf("ExtractNewCameraFrame: %v", err)
	}
	if res.Source != SourceLastFrame || res.Timestamp != 4.9375 || res.SceneCount != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if cutter.splits != 0 || len(cutter.grabs) != 1 || cutter.grabs[0].video != "/w/t.mp4" {
		t.Fatalf("unexpected cutter use: splits=%d grabs=%+v", cutter.splits, cutter.grabs)
	}
}

func TestLastFrameTimestamp(t *testing.T) {
	tests := []struct {
		duration, fps, want float64
	}{
		{5, 16, 4.9375},
		{0.01, 16, 0},
		{5, 0, 0},
		{5, -3, 0},
	}
	for _, tt := range tests {
		if got := LastFrameTimestamp(tt.duration, tt.fps); got != tt.want {
			t.Fatalf("LastFrameTimestamp(%v, %v) = %v, want %v", tt.duration, tt.fps, got, tt.want)
		}
	}
}

func TestExtractDetectFailure(t *testing.T) {
	cutter := &fakeCutter{err: errors.New("ffmpeg missing")}
	_, err := NewExtractor(cutter, &fakeInspector{}, nil).ExtractNewCameraFrame(context.Background(), "/w/t.mp4", "/w/c.png")
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "ffmpeg missing") {
		t.Fatalf("unexpected error %v", err)
	}
}

type fakeVideo struct {
	fails   int
	calls   int
	prompt  string
	frames  []string
	outPath string
}

func (f *fakeVideo) GenerateVideo(_ context.Context, prompt string, frames []string, outPath string) error {
	f.calls++
	f.prompt, f.frames, f.outPath = prompt, frames, outPath
	if f.calls <= f.fails {
		return errors.New("task failed")
	}
	return nil
}

func TestSynthesizePromptAndFrame(t *testing.T) {
	video := &fakeVideo{fails: 1}
	err := NewSynthesizer(video, nil, 3).Synthesize(context.Background(), Input{
		ParentShotDesc:   "Wide shot of the kitchen.",
		ChildShotDesc:    "Close-up of Bob",
		ParentFirstFrame: "frames/shot-000-first.png",
		OutPath:          "/w/transitions/cam-001.mp4",
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	want := "Two shots. The transition between the shots is a cut to. The style of the two shots should be consistent.\n" +
		"The first shot description: Wide shot of the kitchen.\n" +
		"The second shot description: Close-up of Bob."
	if video.prompt != want {
		t.Fatalf("prompt = %q", video.prompt)
	}
	if video.calls != 2 || len(video.frames) != 1 || video.frames[0] != "frames/shot-000-first.png" {
		t.Fatalf("calls=%d frames=%v", video.calls, video.frames)
	}
}

func TestSynthesizeRequiresFrame(t *testing.T) {
	err := NewSynthesizer(&fakeVideo{}, nil, 3).Synthesize(context.Background(), Input{OutPath: "x"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
