// Package portraits renders the front, side and back reference portraits of
// every character in the roster.
//
// The front view is generated from the character's features and the scene
// style. The side and back views are conditioned on the front view so the
// three stay consistent.
package portraits

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"framewright/internal/artifacts"
	"framewright/internal/graph"
	"framewright/internal/logging"
	"framewright/internal/retry"
	"framewright/internal/services"
)

const stageName = "characters_extracted"

// View is a portrait orientation.
type View string

const (
	ViewFront View = "front"
	ViewSide  View = "side"
	ViewBack  View = "back"
)

// Views lists the orientations in candidate order.
var Views = []View{ViewFront, ViewSide, ViewBack}

type imageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, refPaths []string, outPath string) error
}

type workspace interface {
	Resolve(h graph.Handle) (string, error)
	Exists(h graph.Handle) bool
}

// Generator produces portraits into a workspace.
type Generator struct {
	images   imageGenerator
	ws       workspace
	logger   *slog.Logger
	attempts int
}

// New constructs a Generator. attempts <= 0 uses the retry default.
func New(images imageGenerator, ws workspace, logger *slog.Logger, attempts int) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		images:   images,
		ws:       ws,
		logger:   logging.NewComponentLogger(logger, "portraits"),
		attempts: attempts,
	}
}

// Description is the artifact text shown to the reference selector.
func Description(c graph.Character, v View) string {
	return fmt.Sprintf("A %s-view portrait of %s.", v, c.Identifier)
}

// Prompt renders the synthesis prompt for one view.
func Prompt(c graph.Character, v View, style string) string {
	switch v {
	case ViewSide:
		return fmt.Sprintf("Generate a full-body, side-view portrait of character %s based on the provided front-view portrait, "+
			"with a pure white background. The character should be centered in the image, occupying most of the frame. "+
			"Facing left. Standing with arms relaxed at sides.", c.Identifier)
	case ViewBack:
		return fmt.Sprintf("Generate a full-body, back-view portrait of character %s based on the provided front-view portrait, "+
			"with a pure white background. The character should be centered in the image, occupying most of the frame. "+
			"No facial features should be visible.", c.Identifier)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "Generate a full-body, front-view portrait of character %s based on the following description, "+
			"with a pure white background. The character should be centered in the image, occupying most of the frame. "+
			"Gazing straight ahead. Standing with arms relaxed at sides. Natural expression.", c.Identifier)
		fmt.Fprintf(&b, "\nFeatures: (static) %s; (dynamic) %s", c.StaticFeatures, c.DynamicFeatures)
		if style = strings.TrimSpace(style); style != "" {
			fmt.Fprintf(&b, "\nStyle: %s", style)
		}
		return b.String()
	}
}

// Generate renders the three views of character idx and returns their
// artifacts in Views order. Views already on disk are reused.
func (g *Generator) Generate(ctx context.Context, idx int, c graph.Character, style string) ([]graph.ReferenceArtifact, error) {
	logger := logging.WithContext(ctx, g.logger).With(logging.String("character", c.Identifier))

	front := artifacts.PortraitHandle(idx, string(ViewFront))
	frontPath, err := g.render(ctx, logger, c, ViewFront, style, front, nil)
	if err != nil {
		return nil, err
	}

	var group errgroup.Group
	for _, v := range []View{ViewSide, ViewBack} {
		group.Go(func() error {
			_, err := g.render(ctx, logger, c, v, style, artifacts.PortraitHandle(idx, string(v)), []string{frontPath})
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]graph.ReferenceArtifact, 0, len(Views))
	for _, v := range Views {
		out = append(out, graph.ReferenceArtifact{
			Handle:      artifacts.PortraitHandle(idx, string(v)),
			Description: Description(c, v),
			Kind:        graph.KindPortrait,
			Source:      c.Identifier + "/" + string(v),
		})
	}
	logger.Info("portraits ready", logging.Int("views", len(out)))
	return out, nil
}

func (g *Generator) render(ctx context.Context, logger *slog.Logger, c graph.Character, v View, style string, h graph.Handle, refs []string) (string, error) {
	path, err := g.ws.Resolve(h)
	if err != nil {
		return "", err
	}
	if g.ws.Exists(h) {
		logger.Debug("portrait exists; skipping", logging.String("view", string(v)))
		return path, nil
	}
	prompt := Prompt(c, v, style)
	err = retry.Do(ctx, retry.Policy{
		Attempts: g.attempts,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "portrait synthesis failed; retrying", "image_retry",
				logging.String("view", string(v)),
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the view is requested again"),
			)
		},
	}, fmt.Sprintf("portrait %s %s", c.Identifier, v), func(ctx context.Context) error {
		return g.images.GenerateImage(ctx, prompt, refs, path)
	})
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, stageName, "render portrait", fmt.Sprintf("%s %s view", c.Identifier, v), err)
	}
	return path, nil
}
