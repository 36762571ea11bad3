package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"framewright/internal/artifacts"
	"framewright/internal/graph"
	"framewright/internal/judgment"
	"framewright/internal/ledger"
	"framewright/internal/logging"
	"framewright/internal/portraits"
	"framewright/internal/retry"
	"framewright/internal/services"
	"framewright/internal/transition"
)

type imageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, refPaths []string, outPath string) error
}

type transitionSynthesizer interface {
	Synthesize(ctx context.Context, in transition.Input) error
}

type clipRenderer interface {
	GenerateVideo(ctx context.Context, prompt string, framePaths []string, outPath string) error
}

type frameExtractor interface {
	ExtractNewCameraFrame(ctx context.Context, videoPath, outPath string) (transition.Result, error)
}

type runLedger interface {
	CreateRun(ctx context.Context, id, workspace, idea string) (*ledger.Run, error)
	GetRun(ctx context.Context, id string) (*ledger.Run, error)
	SetStage(ctx context.Context, id, stage string, wave int) error
	MarkFailed(ctx context.Context, id, message string) error
	MarkDone(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	RecordStageEvent(ctx context.Context, ev ledger.StageEvent) error
	RecordArtifact(ctx context.Context, a ledger.Artifact) error
}

// Dependencies are the collaborators of an Orchestrator. Ledger may be nil.
type Dependencies struct {
	Judge       judgment.Service
	Images      imageGenerator
	Transitions transitionSynthesizer
	Clips       clipRenderer
	Extractor   frameExtractor
	Ledger      runLedger
	Logger      *slog.Logger
}

// Options tune the orchestrator.
type Options struct {
	RunsDir          string
	Concurrency      int
	Attempts         int
	JudgmentTimeout  time.Duration
	DecomposeTimeout time.Duration
	Shrinker         func([]byte) ([]byte, string, error)
}

// Input starts or resumes a scene. Script wins over Idea when both are set.
type Input struct {
	Script      string
	Idea        string
	Requirement string
	Style       string
	// RunID names a new run; a fresh UUID is used when empty.
	RunID string
	// ResumeRunID continues a saved run instead of starting one.
	ResumeRunID string
}

// Result describes a finished run.
type Result struct {
	RunID     string
	Workspace string
	Plan      *Plan
}

// Orchestrator runs scenes.
type Orchestrator struct {
	deps   Dependencies
	opts   Options
	logger *slog.Logger
}

// New constructs an Orchestrator.
func New(deps Dependencies, opts Options) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Attempts < 1 {
		opts.Attempts = retry.DefaultAttempts
	}
	if opts.Shrinker == nil {
		opts.Shrinker = artifacts.Thumbnail
	}
	return &Orchestrator{deps: deps, opts: opts, logger: logging.NewComponentLogger(logger, "pipeline")}
}

// run is the mutable state of one scene production.
type run struct {
	id      string
	ws      *artifacts.Workspace
	plan    *Plan
	library *artifacts.Library
	logger  *slog.Logger
}

// Run produces one scene. On failure the plan and every artifact written so
// far stay on disk, and the returned error names the failed stage.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	r, err := o.open(ctx, in)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := r.ws.Unlock(); err != nil {
			r.logger.Debug("workspace unlock failed", logging.Error(err))
		}
	}()

	ctx = services.WithRunID(ctx, r.id)
	r.logger = logging.WithContext(ctx, o.logger)

	if err := o.execute(ctx, r); err != nil {
		r.plan.Error = err.Error()
		r.plan.Stage = StageFailed
		o.savePlan(r)
		lctx := context.WithoutCancel(ctx)
		o.ledgerCall(lctx, r, "mark failed", func(l runLedger) error { return l.MarkFailed(lctx, r.id, err.Error()) })
		return &Result{RunID: r.id, Workspace: r.ws.Root(), Plan: r.plan}, err
	}

	o.ledgerCall(ctx, r, "mark done", func(l runLedger) error { return l.MarkDone(ctx, r.id) })
	r.logger.Info("scene complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("shots", len(r.plan.Shots)),
		logging.Int("cameras", len(r.plan.Cameras)),
		logging.Int("frames", len(r.plan.Frames)),
	)
	return &Result{RunID: r.id, Workspace: r.ws.Root(), Plan: r.plan}, nil
}

func (o *Orchestrator) open(ctx context.Context, in Input) (*run, error) {
	resume := strings.TrimSpace(in.ResumeRunID)
	id := resume
	if id == "" {
		id = strings.TrimSpace(in.RunID)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if resume == "" && strings.TrimSpace(in.Script) == "" && strings.TrimSpace(in.Idea) == "" {
		return nil, services.Wrap(services.ErrValidation, string(StageScripted), "start run", "a script or an idea is required", nil)
	}

	ws, err := artifacts.Open(o.opts.RunsDir, id)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "open workspace", id, err)
	}
	if err := ws.Lock(); err != nil {
		return nil, err
	}

	r := &run{id: id, ws: ws, logger: o.logger}
	if resume != "" {
		plan, err := LoadPlan(filepath.Join(ws.Root(), PlanFileName))
		if err != nil {
			_ = ws.Unlock()
			return nil, services.Wrap(services.ErrNotFound, "", "resume run", id, err)
		}
		plan.Error = ""
		r.plan = plan
		o.ledgerCall(ctx, r, "resume", func(l runLedger) error {
			existing, err := l.GetRun(ctx, id)
			if err != nil {
				return err
			}
			if existing == nil {
				_, err = l.CreateRun(ctx, id, ws.Root(), plan.Idea)
				return err
			}
			return l.Resume(ctx, id)
		})
	} else {
		r.plan = &Plan{RunID: id, Idea: in.Idea, Requirement: in.Requirement, Style: in.Style, Script: strings.TrimSpace(in.Script)}
		o.ledgerCall(ctx, r, "create run", func(l runLedger) error {
			_, err := l.CreateRun(ctx, id, ws.Root(), in.Idea)
			return err
		})
	}
	r.library = artifacts.NewLibrary(rebuildLibrary(r.plan)...)
	return r, nil
}

// rebuildLibrary restores the append order of a saved plan: portraits, then
// frame images and camera stills in the order they were produced.
func rebuildLibrary(plan *Plan) []graph.ReferenceArtifact {
	var out []graph.ReferenceArtifact
	for _, views := range plan.Portraits {
		out = append(out, views...)
	}
	maxWave := -1
	for _, f := range plan.Frames {
		maxWave = max(maxWave, f.Wave)
	}
	for _, t := range plan.Transitions {
		maxWave = max(maxWave, t.Wave)
	}
	for wave := 0; wave <= maxWave; wave++ {
		for _, f := range plan.Frames {
			if f.Wave == wave && f.Image != "" {
				out = append(out, frameArtifact(f))
			}
		}
		for _, t := range plan.Transitions {
			if t.Wave == wave && t.Still != "" {
				out = append(out, cameraArtifact(plan, t))
			}
		}
	}
	return out
}

func frameArtifact(f FramePlan) graph.ReferenceArtifact {
	return graph.ReferenceArtifact{Handle: f.Image, Description: f.Frame.Desc, Kind: graph.KindFrame, Source: f.Key}
}

func cameraArtifact(plan *Plan, t TransitionPlan) graph.ReferenceArtifact {
	desc := ""
	if t.CamIdx >= 0 && t.CamIdx < len(plan.Cameras) {
		if first := plan.Cameras[t.CamIdx].FirstShot(); first >= 0 && first < len(plan.Shots) {
			desc = plan.Shots[first].FirstFrameDesc
		}
	}
	return graph.ReferenceArtifact{Handle: t.Still, Description: desc, Kind: graph.KindCamera, Source: fmt.Sprintf("cam-%03d", t.CamIdx)}
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	linear := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StageScripted, o.script},
		{StageCharactersExtracted, o.extractCharacters},
		{StageStoryboarded, o.storyboard},
		{StageCameraTreeBuilt, o.buildCameraTree},
		{StageShotsDecomposed, o.decomposeShots},
	}
	for _, step := range linear {
		if err := o.step(ctx, r, step.stage, 0, step.fn); err != nil {
			return err
		}
	}

	depths := graph.Depths(r.plan.Cameras)
	if depths == nil {
		return services.Wrap(services.ErrValidation, string(StageCameraTreeBuilt), "order waves", "camera tree is not a valid forest", nil)
	}
	maxDepth := 0
	for _, d := range depths {
		maxDepth = max(maxDepth, d)
	}
	for wave := 0; wave <= maxDepth; wave++ {
		w := newWave(r.plan, depths, wave)
		segment := []struct {
			stage Stage
			fn    func(context.Context, *run, *waveSet) error
		}{
			{StageReferencesSelected, o.selectReferences},
			{StageImagesSynthesized, o.synthesizeImages},
			{StageShotsAnimated, o.animateShots},
			{StageTransitionsSynthesized, o.synthesizeTransitions},
			{StageCamerasExtended, o.extendCameras},
		}
		for _, step := range segment {
			fn := step.fn
			if err := o.step(ctx, r, step.stage, wave, func(ctx context.Context, r *run) error {
				return fn(ctx, r, w)
			}); err != nil {
				return err
			}
		}
	}
	return o.step(ctx, r, StageDone, 0, o.finish)
}

// step runs one stage pass with logging, ledger bookkeeping, and a plan save.
func (o *Orchestrator) step(ctx context.Context, r *run, stage Stage, wave int, fn func(context.Context, *run) error) error {
	if r.plan.Completed(stage, wave) {
		r.logger.Debug("stage already complete; skipping", logging.String(logging.FieldStage, string(stage)), logging.Int("wave", wave))
		return nil
	}
	stageCtx := services.WithStage(ctx, string(stage))
	logger := logging.WithContext(stageCtx, o.logger)
	if stage.PerWave() {
		logger = logger.With(logging.Int("wave", wave))
	}

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	o.ledgerCall(ctx, r, "set stage", func(l runLedger) error { return l.SetStage(ctx, r.id, string(stage), wave) })
	o.recordEvent(ctx, r, stage, wave, ledger.EventStarted, "", 0)

	start := time.Now()
	err := fn(stageCtx, r)
	elapsed := time.Since(start)
	if err != nil {
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.Error(err),
			logging.Duration("duration", elapsed),
			logging.String(logging.FieldErrorHint, "inspect plan.json and rerun with --resume"),
			logging.String(logging.FieldImpact, "the scene stops at this stage"),
		)
		o.recordEvent(ctx, r, stage, wave, ledger.EventFailed, err.Error(), elapsed)
		return err
	}

	r.plan.markCompleted(stage, wave)
	o.savePlan(r)
	o.recordEvent(ctx, r, stage, wave, ledger.EventCompleted, "", elapsed)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", elapsed),
	)
	return nil
}

// fanOut runs fn for every position under the concurrency limit. Siblings are
// not cancelled when one fails; failures are collected after the barrier.
func (o *Orchestrator) fanOut(ctx context.Context, stage Stage, item string, indices []int, fn func(ctx context.Context, idx int) error) error {
	errs := make([]error, len(indices))
	var group errgroup.Group
	group.SetLimit(o.opts.Concurrency)
	for pos, idx := range indices {
		group.Go(func() error {
			errs[pos] = fn(ctx, idx)
			return nil
		})
	}
	_ = group.Wait()

	var failures []ItemFailure
	for pos, err := range errs {
		if err != nil {
			failures = append(failures, ItemFailure{Index: indices[pos], Attempts: retry.Attempts(err), Err: err})
		}
	}
	if len(failures) > 0 {
		return &StageError{Stage: stage, Item: item, Failures: failures}
	}
	return nil
}

func (o *Orchestrator) policy(logger *slog.Logger, timeout time.Duration, what string) retry.Policy {
	return retry.Policy{
		Attempts: o.opts.Attempts,
		Timeout:  timeout,
		OnRetry: func(attempt int, err error) {
			logging.WarnWithContext(logger, what+" failed; retrying", "judgment_retry",
				logging.Int(logging.FieldAttempts, attempt),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the request is sent again unchanged"),
			)
		},
	}
}

func (o *Orchestrator) savePlan(r *run) {
	if err := SavePlan(filepath.Join(r.ws.Root(), PlanFileName), r.plan); err != nil {
		r.logger.Warn("plan save failed", logging.Error(err))
	}
}

func (o *Orchestrator) recordEvent(ctx context.Context, r *run, stage Stage, wave int, status ledger.EventStatus, message string, elapsed time.Duration) {
	o.ledgerCall(ctx, r, "record stage event", func(l runLedger) error {
		return l.RecordStageEvent(ctx, ledger.StageEvent{
			RunID:    r.id,
			Stage:    string(stage),
			Wave:     wave,
			Status:   status,
			Message:  message,
			Duration: elapsed,
		})
	})
}

func (o *Orchestrator) recordArtifacts(ctx context.Context, r *run, items ...graph.ReferenceArtifact) {
	for _, a := range items {
		o.ledgerCall(ctx, r, "record artifact", func(l runLedger) error {
			return l.RecordArtifact(ctx, ledger.Artifact{
				RunID:       r.id,
				Handle:      string(a.Handle),
				Kind:        string(a.Kind),
				Source:      a.Source,
				Description: a.Description,
			})
		})
	}
}

// ledgerCall runs a best-effort ledger write. The plan on disk is the source
// of truth for resume, so ledger errors are logged and not returned.
func (o *Orchestrator) ledgerCall(ctx context.Context, r *run, what string, fn func(runLedger) error) {
	if o.deps.Ledger == nil {
		return
	}
	if err := fn(o.deps.Ledger); err != nil && !errors.Is(err, context.Canceled) {
		logging.WarnWithContext(logging.WithContext(ctx, r.logger), "ledger "+what+" failed", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "runs list may show stale state"),
		)
	}
}

// portraitGenerator is built per run since it writes into the run workspace.
func (o *Orchestrator) portraitGenerator(r *run) *portraits.Generator {
	return portraits.New(o.deps.Images, r.ws, o.logger, o.opts.Attempts)
}
