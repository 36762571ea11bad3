package ffprobe

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "audio"},
			{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "24000/1001", Width: 1280, Height: 720},
		},
		Format: Format{Duration: "5.041"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.DurationSeconds() != 5.041 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if fps := result.FPS(); math.Abs(fps-23.976) > 0.001 {
		t.Fatalf("unexpected fps: %v", fps)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "x/y", RFrameRate: "16/0"}},
		Format:  Format{Duration: "bad"},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.FPS() != 0 {
		t.Fatalf("expected fps 0, got %v", result.FPS())
	}
	if (Result{}).FPS() != 0 {
		t.Fatal("expected fps 0 without a video stream")
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{Streams: []Stream{{CodecType: "video", Duration: "4.5"}}}
	if result.DurationSeconds() != 4.5 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
}

func TestInspectUsesRunner(t *testing.T) {
	var gotArgs []string
	p := &Inspector{Binary: "/opt/ffprobe", Run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(`{"streams":[{"codec_type":"video","avg_frame_rate":"16/1"}],"format":{"duration":"5.000000"}}`), nil
	}}
	result, err := p.Inspect(context.Background(), "clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.FPS() != 16 || result.DurationSeconds() != 5 {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotArgs[0] != "/opt/ffprobe" || gotArgs[len(gotArgs)-1] != "clip.mp4" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}

func TestInspectErrors(t *testing.T) {
	failing := &Inspector{Run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: no such file")
	}}
	if _, err := failing.Inspect(context.Background(), "x.mp4"); err == nil || !strings.Contains(err.Error(), "no such file") {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := failing.Inspect(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
	garbage := &Inspector{Run: func(context.Context, string, ...string) ([]byte, error) { return []byte("{"), nil }}
	if _, err := garbage.Inspect(context.Background(), "x.mp4"); err == nil || !strings.Contains(err.Error(), "ffprobe parse") {
		t.Fatalf("unexpected error %v", err)
	}
}
