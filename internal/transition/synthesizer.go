package transition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"framewright/internal/logging"
	"framewright/internal/retry"
	"framewright/internal/services"
)

const transitionStage = "transitions_synthesized"

type videoGenerator interface {
	GenerateVideo(ctx context.Context, prompt string, framePaths []string, outPath string) error
}

// Synthesizer renders the cut from a parent shot into a child camera.
type Synthesizer struct {
	video    videoGenerator
	logger   *slog.Logger
	attempts int
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(video videoGenerator, logger *slog.Logger, attempts int) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{video: video, logger: logging.NewComponentLogger(logger, "transition"), attempts: attempts}
}

// Input names the two shots and the parent's first frame.
type Input struct {
	ParentShotDesc   string
	ChildShotDesc    string
	ParentFirstFrame string
	OutPath          string
}

// Prompt renders the transition request.
func Prompt(parentShotDesc, childShotDesc string) string {
	var b strings.Builder
	b.WriteString("Two shots. The transition between the shots is a cut to. The style of the two shots should be consistent.")
	fmt.Fprintf(&b, "\nThe first shot description: %s.", strings.TrimRight(strings.TrimSpace(parentShotDesc), "."))
	fmt.Fprintf(&b, "\nThe second shot description: %s.", strings.TrimRight(strings.TrimSpace(childShotDesc), "."))
	return b.String()
}

// Synthesize writes the transition clip to in.OutPath.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) error {
	if strings.TrimSpace(in.ParentFirstFrame) == "" {
		return services.Wrap(services.ErrValidation, transitionStage, "synthesize transition", "parent first frame missing", nil)
	}
	prompt := Prompt(in.ParentShotDesc, in.ChildShotDesc)
	logger := logging.WithContext(ctx, s.logger)
	err := retry.Do(ctx, retry.Policy{
		Attempts: s.attempts,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "transition synthesis failed; retrying", "video_retry",
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "a new video task will be created"),
			)
		},
	}, "synthesize transition", func(ctx context.Context) error {
		return s.video.GenerateVideo(ctx, prompt, []string{in.ParentFirstFrame}, in.OutPath)
	})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, transitionStage, "synthesize transition", "video service exhausted", err)
	}
	return nil
}
