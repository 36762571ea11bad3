// Package decompose splits a storyboard shot into its first frame, last frame
// and motion, with a variation classification.
package decompose

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

const stageName = "shots_decomposed"

// DefaultTimeout bounds one judgment call.
const DefaultTimeout = 150 * time.Second

type shotJudge interface {
	DecomposeShot(ctx context.Context, req judgment.DecomposeRequest) (judgment.DecomposeResponse, error)
}

// Decomposer materializes decomposed shots.
type Decomposer struct {
	judge    shotJudge
	logger   *slog.Logger
	attempts int
	timeout  time.Duration
}

// Option customizes a Decomposer.
type Option func(*Decomposer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decomposer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithAttempts sets the attempt budget per shot.
func WithAttempts(n int) Option {
	return func(d *Decomposer) { d.attempts = n }
}

// WithTimeout sets the per-call deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Decomposer) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// New constructs a Decomposer.
func New(judge shotJudge, opts ...Option) *Decomposer {
	d := &Decomposer{
		judge:    judge,
		logger:   logging.NewNop(),
		attempts: retry.DefaultAttempts,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = logging.NewComponentLogger(d.logger, "decompose")
	return d
}

// Result is a decomposed shot plus the repairs applied to it.
type Result struct {
	Shot     graph.Shot
	Warnings []string
}

// Decompose returns the decomposed shot.
func (d *Decomposer) Decompose(ctx context.Context, brief graph.ShotBrief, roster []graph.Character) (graph.Shot, error) {
	res, err := d.DecomposeDetailed(ctx, brief, roster)
	return res.Shot, err
}

// DecomposeDetailed returns the decomposed shot and any warnings.
func (d *Decomposer) DecomposeDetailed(ctx context.Context, brief graph.ShotBrief, roster []graph.Character) (Result, error) {
	ctx = services.WithShot(ctx, brief.Index)
	logger := logging.WithContext(ctx, d.logger)

	req := judgment.DecomposeRequest{
		VisualDesc: brief.VisualDesc,
		Roster:     make([]string, len(roster)),
	}
	for i, c := range roster {
		req.Roster[i] = c.String()
	}

	resp, err := retry.Value(ctx, retry.Policy{
		Attempts: d.attempts,
		Timeout:  d.timeout,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "shot decomposition failed; retrying", "judgment_retry",
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "decomposition request will be resent"),
			)
		},
	}, fmt.Sprintf("decompose shot %d", brief.Index), func(ctx context.Context) (judgment.DecomposeResponse, error) {
		return d.judge.DecomposeShot(ctx, req)
	})
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, stageName, "decompose shot", "judgment exhausted", err)
	}

	var warnings []string
	first, dropped := cleanVisible(resp.FirstFrameVisible, len(roster))
	warnings = append(warnings, droppedWarnings("first", dropped, len(roster))...)
	last, dropped := cleanVisible(resp.LastFrameVisible, len(roster))
	warnings = append(warnings, droppedWarnings("last", dropped, len(roster))...)
	for _, w := range warnings {
		logging.WarnWithContext(logger, "character index dropped", "character_index_dropped",
			logging.String("detail", w),
			logging.String(logging.FieldErrorHint, "check the roster against the shot description"),
			logging.String(logging.FieldImpact, "character not treated as visible in the frame"),
		)
	}

	shot := graph.Shot{
		ShotBrief:         brief,
		FirstFrameDesc:    strings.TrimSpace(resp.FirstFrameDesc),
		FirstFrameVisible: first,
		LastFrameDesc:     strings.TrimSpace(resp.LastFrameDesc),
		LastFrameVisible:  last,
		MotionDesc:        strings.TrimSpace(resp.MotionDesc),
		Variation:         resp.Variation,
		VariationReason:   strings.TrimSpace(resp.VariationReason),
	}
	logger.Debug("shot decomposed",
		logging.String("variation", shot.Variation.String()),
		logging.Ints("first_visible", shot.FirstFrameVisible),
		logging.Ints("last_visible", shot.LastFrameVisible),
	)
	return Result{Shot: shot, Warnings: warnings}, nil
}

// cleanVisible drops out-of-range indices and collapses duplicates, keeping
// first appearance order. The result is never nil.
func cleanVisible(indices []int, rosterLen int) ([]int, []int) {
	out := make([]int, 0, len(indices))
	var dropped []int
	seen := make(map[int]bool, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= rosterLen {
			dropped = append(dropped, idx)
			continue
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	return out, dropped
}

func droppedWarnings(frame string, dropped []int, rosterLen int) []string {
	out := make([]string, 0, len(dropped))
	for _, idx := range dropped {
		out = append(out, fmt.Sprintf("%s frame: character index %d outside roster [0,%d)", frame, idx, rosterLen))
	}
	return out
}
