// Package transition turns a parent camera's footage into a new camera's
// first look.
//
// Synthesizer asks the video service for a cut from the parent shot to the
// child shot, conditioned on the parent shot's first frame. Extractor then
// segments the clip: the first frame of the second scene is the new camera's
// reference image. When no cut is found the last frame of the clip is used,
// taken one frame before the end to stay clear of end-of-stream artifacts.
package transition

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"framewright/internal/logging"
	"framewright/internal/media/ffprobe"
	"framewright/internal/media/scenecut"
	"framewright/internal/services"
)

const stageName = "cameras_extended"

// Source says which policy produced the still.
type Source string

const (
	SourceSecondScene Source = "second_scene"
	SourceLastFrame   Source = "last_frame"
)

type sceneCutter interface {
	Detect(ctx context.Context, path string) ([]scenecut.Scene, error)
	Split(ctx context.Context, videoPath string, scenes []scenecut.Scene, outDir string) ([]string, error)
	ExtractFrame(ctx context.Context, videoPath string, t float64, outPath string) error
}

type mediaInspector interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Result describes the extracted still.
type Result struct {
	Path       string  `json:"path"`
	Source     Source  `json:"source"`
	Timestamp  float64 `json:"timestamp"`
	SceneCount int     `json:"scene_count"`
}

// Extractor picks the new camera frame out of a transition clip.
type Extractor struct {
	cutter sceneCutter
	media  mediaInspector
	logger *slog.Logger
}

// NewExtractor constructs an Extractor.
func NewExtractor(cutter sceneCutter, media mediaInspector, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{cutter: cutter, media: media, logger: logging.NewComponentLogger(logger, "transition")}
}

// ExtractNewCameraFrame writes the still to outPath.
func (e *Extractor) ExtractNewCameraFrame(ctx context.Context, videoPath, outPath string) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	scenes, err := e.cutter.Detect(ctx, videoPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "detect scenes", filepath.Base(videoPath), err)
	}

	if len(scenes) >= 2 {
		dir := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + "-scenes"
		clips, err := e.cutter.Split(ctx, videoPath, scenes, dir)
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "split scenes", filepath.Base(videoPath), err)
		}
		if len(clips) < 2 {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "split scenes",
				fmt.Sprintf("expected %d clips, got %d", len(scenes), len(clips)), nil)
		}
		if err := e.cutter.ExtractFrame(ctx, clips[1], 0, outPath); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, stageName, "extract frame", filepath.Base(clips[1]), err)
		}
		res := Result{Path: outPath, Source: SourceSecondScene, Timestamp: scenes[1].Start, SceneCount: len(scenes)}
		logDecision(logger, res, "second scene found")
		return res, nil
	}

	info, err := e.media.Inspect(ctx, videoPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "inspect clip", filepath.Base(videoPath), err)
	}
	duration := info.DurationSeconds()
	if math.IsNaN(duration) || duration < 0 {
		return Result{}, services.Wrap(services.ErrValidation, stageName, "inspect clip", "unusable duration", nil)
	}
	t := LastFrameTimestamp(duration, info.FPS())
	if err := e.cutter.ExtractFrame(ctx, videoPath, t, outPath); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "extract frame", filepath.Base(videoPath), err)
	}
	res := Result{Path: outPath, Source: SourceLastFrame, Timestamp: t, SceneCount: len(scenes)}
	logDecision(logger, res, "single scene, using last frame")
	return res, nil
}

// LastFrameTimestamp is max(0, duration - 1/fps). A non-positive fps yields 0.
func LastFrameTimestamp(duration, fps float64) float64 {
	if fps <= 0 || math.IsNaN(fps) {
		return 0
	}
	return math.Max(0, duration-1/fps)
}

func logDecision(logger *slog.Logger, res Result, reason string) {
	logging.Decision(logger, "camera frame extracted", "camera_frame_source", string(res.Source), reason,
		logging.String(logging.FieldEventType, "camera_frame_extracted"),
		logging.Float64("timestamp", res.Timestamp),
		logging.Int("scenes", res.SceneCount),
	)
}
