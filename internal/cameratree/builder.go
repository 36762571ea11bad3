// Package cameratree turns judged parent assignments into a camera forest
// with exactly one root.
//
// The judgment is trusted for meaning but not for structure. Build applies
// the returned pointers and then repairs, in order: forced root,
// self or out-of-range parents, cycles, and extra roots. Every repair is
// logged as a camera_tree_repair warning and reported in the result.
package cameratree

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"framewright/internal/graph"
	"framewright/internal/judgment"
	"framewright/internal/logging"
	"framewright/internal/retry"
	"framewright/internal/services"
)

const stageName = "camera_tree_built"

// ReviewNote replaces the justification of a camera forced onto the root.
const ReviewNote = "attached to root camera by tree repair; parent assignment needs human review"

type parentAssigner interface {
	AssignCameraParents(ctx context.Context, req judgment.CameraTreeRequest) (judgment.CameraTreeResponse, error)
}

// Builder enriches storyboard cameras with their parents.
type Builder struct {
	judge    parentAssigner
	logger   *slog.Logger
	attempts int
	timeout  time.Duration
}

// Option customizes a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithAttempts sets the judgment attempt budget.
func WithAttempts(n int) Option {
	return func(b *Builder) { b.attempts = n }
}

// WithTimeout bounds each judgment attempt.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// New constructs a Builder.
func New(judge parentAssigner, opts ...Option) *Builder {
	b := &Builder{judge: judge, logger: logging.NewNop(), attempts: retry.DefaultAttempts}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.NewComponentLogger(b.logger, "cameratree")
	return b
}

// Build asks for every camera's parent in one request and returns the repaired forest.
func (b *Builder) Build(ctx context.Context, cameras []graph.Camera, shotsByIndex map[int]graph.ShotBrief) ([]graph.Camera, error) {
	if len(cameras) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "build camera tree", "no cameras", nil)
	}
	for i, cam := range cameras {
		if cam.Index != i {
			return nil, services.Wrap(services.ErrValidation, stageName, "build camera tree",
				fmt.Sprintf("camera at position %d has index %d", i, cam.Index), nil)
		}
	}

	req := Request(cameras, shotsByIndex)
	logger := logging.WithContext(ctx, b.logger)

	resp, err := retry.Value(ctx, retry.Policy{
		Attempts: b.attempts,
		Timeout:  b.timeout,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "camera tree judgment failed; retrying", "judgment_retry",
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "camera tree request will be resent unchanged"),
			)
		},
	}, "assign camera parents", func(ctx context.Context) (judgment.CameraTreeResponse, error) {
		return b.judge.AssignCameraParents(ctx, req)
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "assign camera parents", "judgment exhausted", err)
	}

	out, repairs := Apply(cameras, resp.Assignments)
	for _, r := range repairs {
		logging.WarnWithContext(logger, "camera tree repaired", "camera_tree_repair",
			logging.Int(logging.FieldCamera, r.Camera),
			logging.String("repair", string(r.Kind)),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldErrorHint, "review the camera tree in plan show"),
			logging.String(logging.FieldImpact, "camera parent was replaced by a deterministic repair"),
		)
	}
	if err := graph.Validate(out); err != nil {
		// Apply guarantees a valid forest; reaching this is a bug.
		return nil, services.Wrap(services.ErrValidation, stageName, "validate camera tree", "repair left an invalid forest", err)
	}
	logger.Info("camera tree built",
		logging.String(logging.FieldEventType, "camera_tree_built"),
		logging.Int("cameras", len(out)),
		logging.Int("repairs", len(repairs)),
	)
	return out, nil
}

// Request renders each camera's shots as "Shot i: visual_desc" blocks in filming order.
func Request(cameras []graph.Camera, shotsByIndex map[int]graph.ShotBrief) judgment.CameraTreeRequest {
	req := judgment.CameraTreeRequest{Cameras: make([]judgment.CameraShots, len(cameras))}
	for i, cam := range cameras {
		blocks := make([]string, 0, len(cam.ActiveShotIdxs))
		for _, idx := range cam.ActiveShotIdxs {
			desc := strings.TrimSpace(shotsByIndex[idx].VisualDesc)
			blocks = append(blocks, fmt.Sprintf("Shot %d: %s", idx, desc))
		}
		req.Cameras[i] = judgment.CameraShots{CamIdx: cam.Index, Shots: blocks}
	}
	return req
}
