package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"framewright/internal/artifacts"
	"framewright/internal/cameratree"
	"framewright/internal/decompose"
	"framewright/internal/graph"
	"framewright/internal/judgment"
	"framewright/internal/ledger"
	"framewright/internal/logging"
	"framewright/internal/refselect"
	"framewright/internal/retry"
	"framewright/internal/services"
	"framewright/internal/transition"
)

// ScriptHandle is the script artifact written by the Scripted stage.
const ScriptHandle graph.Handle = "script.txt"

func (o *Orchestrator) script(ctx context.Context, r *run) error {
	p := r.plan
	logger := logging.WithContext(ctx, o.logger)
	if strings.TrimSpace(p.Script) == "" {
		resp, err := retry.Value(ctx, o.policy(logger, o.opts.JudgmentTimeout, "script judgment"), "write script",
			func(ctx context.Context) (judgment.ScriptResponse, error) {
				return o.deps.Judge.WriteScript(ctx, judgment.ScriptRequest{Idea: p.Idea, Requirement: p.Requirement, Style: p.Style})
			})
		if err != nil {
			return services.Wrap(services.ErrExternalTool, string(StageScripted), "write script", "judgment exhausted", err)
		}
		p.Script = strings.TrimSpace(resp.Script)
		if p.Script == "" {
			return services.Wrap(services.ErrValidation, string(StageScripted), "write script", "judgment returned an empty script", nil)
		}
		logger.Info("script written", logging.Int("chars", len(p.Script)))
	}
	if err := r.ws.WriteFile(ScriptHandle, []byte(p.Script+"\n")); err != nil {
		return services.Wrap(services.ErrConfiguration, string(StageScripted), "write script", "workspace write failed", err)
	}
	o.ledgerCall(ctx, r, "record artifact", func(l runLedger) error {
		return l.RecordArtifact(ctx, ledger.Artifact{RunID: r.id, Handle: string(ScriptHandle), Kind: "script"})
	})
	return nil
}

func (o *Orchestrator) extractCharacters(ctx context.Context, r *run) error {
	p := r.plan
	logger := logging.WithContext(ctx, o.logger)
	if p.Characters == nil {
		resp, err := retry.Value(ctx, o.policy(logger, o.opts.JudgmentTimeout, "character judgment"), "extract characters",
			func(ctx context.Context) (judgment.CharactersResponse, error) {
				resp, err := o.deps.Judge.ExtractCharacters(ctx, judgment.CharactersRequest{Script: p.Script})
				if err != nil {
					return resp, err
				}
				if err := graph.ValidateRoster(resp.Characters); err != nil {
					return resp, fmt.Errorf("%w: %w", judgment.ErrMalformed, err)
				}
				return resp, nil
			})
		if err != nil {
			return services.Wrap(services.ErrExternalTool, string(StageCharactersExtracted), "extract characters", "judgment exhausted", err)
		}
		p.Characters = append([]graph.Character{}, resp.Characters...)
		logger.Info("characters extracted", logging.Int("characters", len(p.Characters)))
	}
	if len(p.Portraits) != len(p.Characters) {
		p.Portraits = make([][]graph.ReferenceArtifact, len(p.Characters))
	}

	gen := o.portraitGenerator(r)
	err := o.fanOut(ctx, StageCharactersExtracted, "character", sequence(len(p.Characters)), func(ctx context.Context, idx int) error {
		views, err := gen.Generate(ctx, idx, p.Characters[idx], p.Style)
		if err != nil {
			return err
		}
		p.Portraits[idx] = views
		return nil
	})
	for _, views := range p.Portraits {
		o.addArtifacts(ctx, r, views...)
	}
	return err
}

func (o *Orchestrator) storyboard(ctx context.Context, r *run) error {
	p := r.plan
	logger := logging.WithContext(ctx, o.logger)
	resp, err := retry.Value(ctx, o.policy(logger, o.opts.JudgmentTimeout, "storyboard judgment"), "design storyboard",
		func(ctx context.Context) (judgment.StoryboardResponse, error) {
			resp, err := o.deps.Judge.DesignStoryboard(ctx, judgment.StoryboardRequest{
				Script:      p.Script,
				Roster:      p.Characters,
				Requirement: p.Requirement,
				Style:       p.Style,
			})
			if err == nil && len(resp.Shots) == 0 {
				err = fmt.Errorf("%w: storyboard has no shots", judgment.ErrMalformed)
			}
			return resp, err
		})
	if err != nil {
		return services.Wrap(services.ErrExternalTool, string(StageStoryboarded), "design storyboard", "judgment exhausted", err)
	}

	ids := make([]int, len(resp.Shots))
	for i, s := range resp.Shots {
		ids[i] = s.CamIdx
	}
	camIdx, cameraCount := renumberCameras(ids)

	shots := make([]graph.Shot, len(resp.Shots))
	cameras := make([]graph.Camera, cameraCount)
	for i := range cameras {
		cameras[i] = graph.Camera{Index: i, ActiveShotIdxs: []int{}}
	}
	for i, s := range resp.Shots {
		isLast := i == len(resp.Shots)-1
		if s.IsLast != isLast {
			logging.WarnWithContext(logger, "storyboard last-shot flag corrected", "storyboard_repair",
				logging.Int("shot", i),
				logging.Bool("judged", s.IsLast),
				logging.String(logging.FieldImpact, "only the final shot is marked last"),
			)
		}
		shots[i] = graph.Shot{ShotBrief: graph.ShotBrief{
			Index:      i,
			IsLast:     isLast,
			CamIdx:     camIdx[i],
			VisualDesc: strings.TrimSpace(s.VisualDesc),
			AudioDesc:  strings.TrimSpace(s.AudioDesc),
		}}
		cameras[camIdx[i]].ActiveShotIdxs = append(cameras[camIdx[i]].ActiveShotIdxs, i)
	}
	p.Shots = shots
	p.Cameras = cameras
	logger.Info("storyboard designed", logging.Int("shots", len(shots)), logging.Int("cameras", len(cameras)))
	return nil
}

func (o *Orchestrator) buildCameraTree(ctx context.Context, r *run) error {
	p := r.plan
	briefs := make(map[int]graph.ShotBrief, len(p.Shots))
	for _, s := range p.Shots {
		briefs[s.Index] = s.ShotBrief
	}
	builder := cameratree.New(o.deps.Judge,
		cameratree.WithLogger(o.logger),
		cameratree.WithAttempts(o.opts.Attempts),
		cameratree.WithTimeout(o.opts.JudgmentTimeout),
	)
	cameras, err := builder.Build(ctx, p.Cameras, briefs)
	if err != nil {
		return err
	}
	p.Cameras = cameras
	return nil
}

func (o *Orchestrator) decomposeShots(ctx context.Context, r *run) error {
	p := r.plan
	opts := []decompose.Option{decompose.WithLogger(o.logger), decompose.WithAttempts(o.opts.Attempts)}
	if o.opts.DecomposeTimeout > 0 {
		opts = append(opts, decompose.WithTimeout(o.opts.DecomposeTimeout))
	}
	decomposer := decompose.New(o.deps.Judge, opts...)

	var pending []int
	for i, s := range p.Shots {
		if !s.Decomposed() {
			pending = append(pending, i)
		}
	}
	return o.fanOut(ctx, StageShotsDecomposed, "shot", pending, func(ctx context.Context, idx int) error {
		shot, err := decomposer.Decompose(ctx, p.Shots[idx].ShotBrief, p.Characters)
		if err != nil {
			return err
		}
		p.Shots[idx] = shot
		return nil
	})
}

// waveSet is the work of one camera-tree depth.
type waveSet struct {
	index int
	// shots are the shot indices filmed by this depth's cameras.
	shots []int
	// frameSlots are positions in Plan.Frames, in shot order.
	frameSlots []int
	// children are the cameras of the next depth.
	children []int
}

func newWave(plan *Plan, depths []int, wave int) *waveSet {
	w := &waveSet{index: wave}
	for _, s := range plan.Shots {
		if s.CamIdx < 0 || s.CamIdx >= len(depths) || depths[s.CamIdx] != wave {
			continue
		}
		w.shots = append(w.shots, s.Index)
		for _, f := range s.Frames() {
			w.frameSlots = append(w.frameSlots, plan.frameSlot(f, wave))
		}
	}
	for cam, d := range depths {
		if d == wave+1 {
			w.children = append(w.children, cam)
		}
	}
	return w
}

// earlierFrames drops frame images produced in this wave or later, which
// only exist in the library after a resume.
func earlierFrames(snapshot []graph.ReferenceArtifact, plan *Plan, wave int) []graph.ReferenceArtifact {
	late := map[string]bool{}
	for _, f := range plan.Frames {
		if f.Wave >= wave {
			late[f.Key] = true
		}
	}
	out := snapshot[:0:0]
	for _, a := range snapshot {
		if a.Kind == graph.KindFrame && late[a.Source] {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (o *Orchestrator) selectReferences(ctx context.Context, r *run, w *waveSet) error {
	p := r.plan
	snapshot := earlierFrames(r.library.Snapshot(), p, w.index)
	selector := refselect.New(o.deps.Judge, r.ws,
		refselect.WithLogger(o.logger),
		refselect.WithShrinker(o.opts.Shrinker),
		refselect.WithAttempts(o.opts.Attempts),
		refselect.WithTimeout(o.opts.JudgmentTimeout),
	)
	return o.fanOut(ctx, StageReferencesSelected, "frame", w.frameSlots, func(ctx context.Context, slot int) error {
		fp := &p.Frames[slot]
		if fp.Selection != nil {
			return nil
		}
		ctx = services.WithFrame(ctx, fp.Key)
		candidates := Candidates(snapshot, p, fp.Frame)
		result, err := selector.Select(ctx, candidates, fp.Frame.Desc)
		if err != nil {
			return err
		}
		refs := result.Artifacts(candidates)
		fp.Candidates = len(candidates)
		fp.References = make([]graph.Handle, len(refs))
		for i, a := range refs {
			fp.References[i] = a.Handle
		}
		fp.Selection = &result
		return nil
	})
}

func (o *Orchestrator) synthesizeImages(ctx context.Context, r *run, w *waveSet) error {
	p := r.plan
	err := o.fanOut(ctx, StageImagesSynthesized, "frame", w.frameSlots, func(ctx context.Context, slot int) error {
		fp := &p.Frames[slot]
		ctx = services.WithFrame(ctx, fp.Key)
		logger := logging.WithContext(ctx, o.logger)
		handle := artifacts.FrameHandle(fp.Frame)
		if r.ws.Exists(handle) {
			logger.Debug("frame image exists; skipping")
			fp.Image = handle
			return nil
		}
		if fp.Selection == nil {
			return services.Wrap(services.ErrValidation, string(StageImagesSynthesized), "synthesize frame", fp.Key+" has no reference selection", nil)
		}

		refs := make([]graph.ReferenceArtifact, 0, len(fp.References))
		refPaths := make([]string, 0, len(fp.References))
		for _, h := range fp.References {
			a, ok := r.library.Lookup(h)
			if !ok {
				return services.Wrap(services.ErrNotFound, string(StageImagesSynthesized), "synthesize frame", fmt.Sprintf("%s reference %s", fp.Key, h), nil)
			}
			path, err := r.ws.Resolve(h)
			if err != nil {
				return err
			}
			refs = append(refs, a)
			refPaths = append(refPaths, path)
		}
		outPath, err := r.ws.Resolve(handle)
		if err != nil {
			return err
		}
		prompt := ImagePrompt(refs, fp.Selection.Instruction, fp.Frame.Desc)
		err = retry.Do(ctx, o.policy(logger, 0, "frame synthesis"), "synthesize "+fp.Key, func(ctx context.Context) error {
			return o.deps.Images.GenerateImage(ctx, prompt, refPaths, outPath)
		})
		if err != nil {
			return services.Wrap(services.ErrExternalTool, string(StageImagesSynthesized), "synthesize frame", fp.Key, err)
		}
		fp.Image = handle
		logger.Info("frame image synthesized", logging.Int("references", len(refs)))
		return nil
	})
	for _, slot := range w.frameSlots {
		if p.Frames[slot].Image != "" {
			o.addArtifacts(ctx, r, frameArtifact(p.Frames[slot]))
		}
	}
	return err
}

func (o *Orchestrator) synthesizeTransitions(ctx context.Context, r *run, w *waveSet) error {
	p := r.plan
	logger := logging.WithContext(ctx, o.logger)
	if len(w.children) == 0 {
		logger.Debug("no cameras in the next wave")
		return nil
	}
	slots := make(map[int]int, len(w.children))
	for _, cam := range w.children {
		slots[cam] = p.transitionSlot(cam, w.index)
	}
	return o.fanOut(ctx, StageTransitionsSynthesized, "camera", w.children, func(ctx context.Context, cam int) error {
		tp := &p.Transitions[slots[cam]]
		child := p.Cameras[cam]
		ps := parentShot(p.Cameras, child)
		first := child.FirstShot()
		if ps < 0 || ps >= len(p.Shots) || first < 0 || first >= len(p.Shots) {
			return services.Wrap(services.ErrValidation, string(StageTransitionsSynthesized), "synthesize transition",
				fmt.Sprintf("camera %d has no usable parent shot", cam), nil)
		}
		tp.ParentCamIdx = *child.ParentCamIdx
		tp.ParentShotIdx = ps

		clip := artifacts.TransitionHandle(cam)
		if r.ws.Exists(clip) {
			tp.Clip = clip
			return nil
		}
		parentFrame := artifacts.FrameHandle(p.Shots[ps].Frame(graph.FrameFirst))
		if !r.ws.Exists(parentFrame) {
			return services.Wrap(services.ErrNotFound, string(StageTransitionsSynthesized), "synthesize transition",
				fmt.Sprintf("first frame of parent shot %d", ps), nil)
		}
		framePath, err := r.ws.Resolve(parentFrame)
		if err != nil {
			return err
		}
		clipPath, err := r.ws.Resolve(clip)
		if err != nil {
			return err
		}
		if err := o.deps.Transitions.Synthesize(ctx, transition.Input{
			ParentShotDesc:   p.Shots[ps].VisualDesc,
			ChildShotDesc:    p.Shots[first].VisualDesc,
			ParentFirstFrame: framePath,
			OutPath:          clipPath,
		}); err != nil {
			return err
		}
		tp.Clip = clip
		o.ledgerCall(ctx, r, "record artifact", func(l runLedger) error {
			return l.RecordArtifact(ctx, ledger.Artifact{RunID: r.id, Handle: string(clip), Kind: "transition", Source: fmt.Sprintf("cam-%03d", cam)})
		})
		return nil
	})
}

func (o *Orchestrator) extendCameras(ctx context.Context, r *run, w *waveSet) error {
	p := r.plan
	logger := logging.WithContext(ctx, o.logger)
	children := append([]int(nil), w.children...)
	sort.Ints(children)
	for _, cam := range children {
		slot := p.transitionSlot(cam, w.index)
		tp := &p.Transitions[slot]
		still := artifacts.CameraHandle(cam)
		if !r.ws.Exists(still) {
			if tp.Clip == "" {
				return services.Wrap(services.ErrNotFound, string(StageCamerasExtended), "extend camera",
					fmt.Sprintf("camera %d has no transition clip", cam), nil)
			}
			clipPath, err := r.ws.Resolve(tp.Clip)
			if err != nil {
				return err
			}
			stillPath, err := r.ws.Resolve(still)
			if err != nil {
				return err
			}
			res, err := o.deps.Extractor.ExtractNewCameraFrame(ctx, clipPath, stillPath)
			if err != nil {
				return &StageError{Stage: StageCamerasExtended, Item: "camera", Failures: []ItemFailure{{Index: cam, Attempts: 1, Err: err}}}
			}
			tp.Source = res.Source
			tp.Timestamp = res.Timestamp
		}
		tp.Still = still
		p.Cameras[cam].ReferenceImage = graph.Ptr(still)
		o.addArtifacts(ctx, r, cameraArtifact(p, *tp))
		logger.Info("camera reference grafted",
			logging.Int(logging.FieldCamera, cam),
			logging.String("source", string(tp.Source)),
			logging.Float64("timestamp", tp.Timestamp),
		)
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, r *run) error {
	if err := ExportPlanFile(r.ws.Path(PlanExportName), r.plan); err != nil {
		return services.Wrap(services.ErrConfiguration, string(StageDone), "export plan", "", err)
	}
	return nil
}

// addArtifacts appends artifacts the library does not hold yet and records them.
func (o *Orchestrator) addArtifacts(ctx context.Context, r *run, items ...graph.ReferenceArtifact) {
	for _, a := range items {
		if _, ok := r.library.Lookup(a.Handle); ok {
			continue
		}
		r.library.Append(a)
		o.recordArtifacts(ctx, r, a)
	}
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
