package pipeline

import (
	"context"
	"fmt"
	"strings"

	"framewright/internal/artifacts"
	"framewright/internal/graph"
	"framewright/internal/ledger"
	"framewright/internal/logging"
	"framewright/internal/retry"
	"framewright/internal/services"
)

// Clip modes, named after the video model family each one selects.
const (
	ClipModeFirstFrame     = "ff2v"
	ClipModeFirstLastFrame = "flf2v"
)

// ShotClipPrompt is the motion description, or the visual description when
// decomposition left motion empty.
func ShotClipPrompt(s graph.Shot) string {
	if motion := strings.TrimSpace(s.MotionDesc); motion != "" {
		return motion
	}
	return strings.TrimSpace(s.VisualDesc)
}

func clipMode(frames int) string {
	if frames <= 1 {
		return ClipModeFirstFrame
	}
	return ClipModeFirstLastFrame
}

// animateShots renders one clip per shot of the wave. Small-variation shots
// are conditioned on their first frame, the rest on first and last.
func (o *Orchestrator) animateShots(ctx context.Context, r *run, w *waveSet) error {
	p := r.plan
	if len(w.shots) > 0 && o.deps.Clips == nil {
		return services.Wrap(services.ErrConfiguration, string(StageShotsAnimated), "animate shot", "no video service configured", nil)
	}
	slots := make(map[int]int, len(w.shots))
	for _, idx := range w.shots {
		slots[idx] = p.shotClipSlot(idx, w.index)
	}
	return o.fanOut(ctx, StageShotsAnimated, "shot", w.shots, func(ctx context.Context, idx int) error {
		cp := &p.ShotClips[slots[idx]]
		shot := p.Shots[idx]
		logger := logging.WithContext(ctx, o.logger).With(logging.Int(logging.FieldShot, idx))

		frames := shot.Frames()
		cp.Frames = make([]graph.Handle, len(frames))
		framePaths := make([]string, len(frames))
		for i, f := range frames {
			h := artifacts.FrameHandle(f)
			if !r.ws.Exists(h) {
				return services.Wrap(services.ErrNotFound, string(StageShotsAnimated), "animate shot", fmt.Sprintf("shot %d frame %s", idx, h), nil)
			}
			path, err := r.ws.Resolve(h)
			if err != nil {
				return err
			}
			cp.Frames[i] = h
			framePaths[i] = path
		}
		cp.Mode = clipMode(len(frames))

		clip := artifacts.ShotClipHandle(idx)
		if r.ws.Exists(clip) {
			logger.Debug("shot clip exists; skipping")
			cp.Clip = clip
			return nil
		}
		outPath, err := r.ws.Resolve(clip)
		if err != nil {
			return err
		}
		prompt := ShotClipPrompt(shot)
		err = retry.Do(ctx, o.policy(logger, 0, "shot clip"), fmt.Sprintf("animate shot %d", idx), func(ctx context.Context) error {
			return o.deps.Clips.GenerateVideo(ctx, prompt, framePaths, outPath)
		})
		if err != nil {
			return services.Wrap(services.ErrExternalTool, string(StageShotsAnimated), "animate shot", fmt.Sprintf("shot %d", idx), err)
		}
		cp.Clip = clip
		o.ledgerCall(ctx, r, "record artifact", func(l runLedger) error {
			return l.RecordArtifact(ctx, ledger.Artifact{
				RunID:       r.id,
				Handle:      string(clip),
				Kind:        "shot_clip",
				Source:      fmt.Sprintf("shot-%03d", idx),
				Description: prompt,
			})
		})
		logger.Info("shot clip rendered", logging.String("mode", cp.Mode))
		return nil
	})
}
