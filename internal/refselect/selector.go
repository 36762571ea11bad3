// Package refselect chooses a bounded set of reference artifacts for one
// frame through a two-stage cascade.
//
// Large candidate lists first go through a text-only pre-filter; the
// survivors, with their images, go to the final filter. Each stage answers in
// its own local indices. The selector owns the bookkeeping that maps final
// positions back to the caller's candidate list and keeps the instruction's
// "Image N" references pointing at positions in the returned subset.
package refselect

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"framewright/internal/graph"
	"framewright/internal/judgment"
	"framewright/internal/logging"
	"framewright/internal/retry"
	"framewright/internal/services"
)

const stageName = "references_selected"

// PrefilterThreshold is the candidate count from which the pre-filter runs.
const PrefilterThreshold = 8

type referenceJudge interface {
	PrefilterReferences(ctx context.Context, req judgment.PrefilterRequest) (judgment.SelectionResponse, error)
	FinalizeReferences(ctx context.Context, req judgment.FinalizeRequest) (judgment.SelectionResponse, error)
}

// ImageLoader resolves an artifact handle to image bytes and their MIME type.
type ImageLoader interface {
	Load(handle graph.Handle) ([]byte, string, error)
}

// Shrinker downsizes an image payload before it is sent to the final stage.
type Shrinker func(data []byte) ([]byte, string, error)

// Selector runs the cascade.
type Selector struct {
	judge    referenceJudge
	loader   ImageLoader
	shrink   Shrinker
	logger   *slog.Logger
	attempts int
	timeout  time.Duration
}

// Option customizes a Selector.
type Option func(*Selector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithShrinker sets the payload downscaler.
func WithShrinker(shrink Shrinker) Option {
	return func(s *Selector) { s.shrink = shrink }
}

// WithAttempts sets the attempt budget per stage.
func WithAttempts(n int) Option {
	return func(s *Selector) { s.attempts = n }
}

// WithTimeout bounds each judgment attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Selector) { s.timeout = d }
}

// New constructs a Selector.
func New(judge referenceJudge, loader ImageLoader, opts ...Option) *Selector {
	s := &Selector{judge: judge, loader: loader, logger: logging.NewNop(), attempts: retry.DefaultAttempts}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.NewComponentLogger(s.logger, "refselect")
	return s
}

// Select returns at most graph.MaxReferences original candidate indices and an
// instruction local to them.
func (s *Selector) Select(ctx context.Context, candidates []graph.ReferenceArtifact, target string) (graph.SelectionResult, error) {
	result, _, err := s.SelectDetailed(ctx, candidates, target)
	return result, err
}

// SelectDetailed also returns the mapping used, for inspection.
func (s *Selector) SelectDetailed(ctx context.Context, candidates []graph.ReferenceArtifact, target string) (graph.SelectionResult, Mapping, error) {
	logger := logging.WithContext(ctx, s.logger)
	if len(candidates) == 0 {
		return graph.SelectionResult{Indices: []int{}}, Mapping{}, nil
	}

	stage2 := IdentityMapping(len(candidates))
	if len(candidates) >= PrefilterThreshold {
		survivors, err := s.prefilter(ctx, logger, candidates, target)
		if err != nil {
			return graph.SelectionResult{}, Mapping{}, err
		}
		stage2 = survivors
	}

	req := judgment.FinalizeRequest{Target: target, Candidates: make([]judgment.ImageCandidate, len(stage2))}
	for local, orig := range stage2 {
		c, err := s.payload(candidates[orig])
		if err != nil {
			return graph.SelectionResult{}, Mapping{}, err
		}
		req.Candidates[local] = c
	}

	type finalOut struct {
		result  graph.SelectionResult
		mapping Mapping
	}
	out, err := retry.Value(ctx, s.policy(logger, "final"), "finalize references", func(ctx context.Context) (finalOut, error) {
		resp, err := s.judge.FinalizeReferences(ctx, req)
		if err != nil {
			return finalOut{}, err
		}
		result, mapping := Remap(stage2, resp.Indices, resp.Instruction)
		if len(resp.Indices) > 0 && len(result.Indices) == 0 {
			return finalOut{}, fmt.Errorf("%w: no valid final index in %v", judgment.ErrMalformed, resp.Indices)
		}
		return finalOut{result: result, mapping: mapping}, nil
	})
	if err != nil {
		return graph.SelectionResult{}, Mapping{}, services.Wrap(services.ErrExternalTool, stageName, "finalize references", "judgment exhausted", err)
	}

	if err := out.result.Validate(len(candidates)); err != nil {
		return graph.SelectionResult{}, Mapping{}, services.Wrap(services.ErrValidation, stageName, "selection bookkeeping", "remapped selection is invalid", err)
	}
	logger.Debug("references selected",
		logging.Int("candidates", len(candidates)),
		logging.Int("stage2", len(stage2)),
		logging.Ints("selected", out.result.Indices),
	)
	return out.result, out.mapping, nil
}

func (s *Selector) prefilter(ctx context.Context, logger *slog.Logger, candidates []graph.ReferenceArtifact, target string) ([]int, error) {
	req := judgment.PrefilterRequest{Target: target, Descriptions: make([]string, len(candidates))}
	for i, c := range candidates {
		req.Descriptions[i] = c.Description
	}
	survivors, err := retry.Value(ctx, s.policy(logger, "prefilter"), "prefilter references", func(ctx context.Context) ([]int, error) {
		resp, err := s.judge.PrefilterReferences(ctx, req)
		if err != nil {
			return nil, err
		}
		survivors := PrefilterSurvivors(resp.Indices, len(candidates))
		if len(survivors) == 0 {
			return nil, fmt.Errorf("%w: no valid pre-filter index in %v", judgment.ErrMalformed, resp.Indices)
		}
		return survivors, nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "prefilter references", "judgment exhausted", err)
	}
	logger.Debug("pre-filter narrowed candidates",
		logging.Int("candidates", len(candidates)),
		logging.Ints("survivors", survivors),
	)
	return survivors, nil
}

func (s *Selector) payload(a graph.ReferenceArtifact) (judgment.ImageCandidate, error) {
	data, mime, err := s.loader.Load(a.Handle)
	if err != nil {
		return judgment.ImageCandidate{}, services.Wrap(services.ErrNotFound, stageName, "load reference", string(a.Handle), err)
	}
	if s.shrink != nil {
		if data, mime, err = s.shrink(data); err != nil {
			return judgment.ImageCandidate{}, services.Wrap(services.ErrValidation, stageName, "thumbnail reference", string(a.Handle), err)
		}
	}
	return judgment.ImageCandidate{Description: a.Description, MIMEType: mime, Data: data}, nil
}

func (s *Selector) policy(logger *slog.Logger, stage string) retry.Policy {
	return retry.Policy{
		Attempts: s.attempts,
		Timeout:  s.timeout,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, "reference selection failed; retrying", "judgment_retry",
				logging.String("cascade_stage", stage),
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "selection request will be resent"),
			)
		},
	}
}
