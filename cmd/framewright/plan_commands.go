package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"framewright/internal/config"
	"framewright/internal/graph"
	"framewright/internal/pipeline"
)

const descWrapWidth = 60

func newPlanCommand(ctx *commandContext) *cobra.Command {
	planCmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect the saved plan of a run",
	}
	planCmd.AddCommand(newPlanShowCommand(ctx))
	planCmd.AddCommand(newPlanExportCommand(ctx))
	return planCmd
}

func newPlanShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the characters, shots, cameras and frames of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadRunPlan(ctx, args[0])
			if err != nil {
				return err
			}
			if ctx.jsonMode() {
				return writeJSON(cmd, plan)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:   %s\n", plan.RunID)
			fmt.Fprintf(out, "Stage: %s\n", stageSummary(plan))
			if plan.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", plan.Error)
			}
			for _, spec := range planTables(plan) {
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(spec))
			}
			return nil
		},
	}
}

func newPlanExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Write the plan of a run as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadRunPlan(ctx, args[0])
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outPath)
			if target == "" {
				return pipeline.ExportPlan(cmd.OutOrStdout(), plan)
			}
			expanded, err := config.ExpandPath(target)
			if err != nil {
				return fmt.Errorf("resolve output path: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := pipeline.ExportPlanFile(expanded, plan); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote plan to %s\n", expanded)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file (default: stdout)")
	return cmd
}

func loadRunPlan(ctx *commandContext, runID string) (*pipeline.Plan, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	return pipeline.LoadPlan(pipeline.PlanPath(cfg.Paths.RunsDir, runID))
}

func stageSummary(plan *pipeline.Plan) string {
	label := plan.Stage.Label()
	if label == "" {
		return "not started"
	}
	if plan.Stage.PerWave() {
		return fmt.Sprintf("%s (wave %d)", label, plan.Wave)
	}
	return label
}

func planTables(plan *pipeline.Plan) []tableSpec {
	var specs []tableSpec
	if len(plan.Characters) > 0 {
		specs = append(specs, characterTable(plan.Characters))
	}
	if len(plan.Shots) > 0 {
		specs = append(specs, shotTable(plan.Shots))
	}
	if len(plan.Cameras) > 0 {
		specs = append(specs, cameraTable(plan.Cameras))
	}
	if len(plan.Frames) > 0 {
		specs = append(specs, frameTable(plan.Frames))
	}
	if len(plan.ShotClips) > 0 {
		specs = append(specs, shotClipTable(plan.ShotClips))
	}
	return specs
}

func characterTable(roster []graph.Character) tableSpec {
	rows := make([][]string, len(roster))
	for i, c := range roster {
		rows[i] = []string{strconv.Itoa(i), c.Identifier, c.StaticFeatures}
	}
	return tableSpec{
		Title:      "Characters",
		Headers:    []string{"#", "Identifier", "Static features"},
		Aligns:     []columnAlignment{alignRight, alignLeft, alignLeft},
		Rows:       rows,
		WrapColumn: 3,
		WrapWidth:  descWrapWidth,
	}
}

func shotTable(shots []graph.Shot) tableSpec {
	rows := make([][]string, len(shots))
	for i, s := range shots {
		variation := "-"
		if s.Decomposed() {
			variation = s.Variation.String()
		}
		last := ""
		if s.IsLast {
			last = "yes"
		}
		rows[i] = []string{strconv.Itoa(s.Index), strconv.Itoa(s.CamIdx), variation, last, s.VisualDesc}
	}
	return tableSpec{
		Title:      "Shots",
		Headers:    []string{"Shot", "Camera", "Variation", "Last", "Visual"},
		Aligns:     []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignLeft},
		Rows:       rows,
		WrapColumn: 5,
		WrapWidth:  descWrapWidth,
	}
}

func cameraTable(cameras []graph.Camera) tableSpec {
	rows := make([][]string, len(cameras))
	for i, c := range cameras {
		parent := "root"
		if c.ParentCamIdx != nil {
			parent = fmt.Sprintf("cam %d", *c.ParentCamIdx)
			if c.ParentShotIdx != nil {
				parent += fmt.Sprintf(" @ shot %d", *c.ParentShotIdx)
			}
		}
		if c.NeedsReview {
			parent += " (review)"
		}
		still := "-"
		if c.ReferenceImage != nil {
			still = string(*c.ReferenceImage)
		}
		rows[i] = []string{strconv.Itoa(c.Index), joinInts(c.ActiveShotIdxs), parent, still}
	}
	return tableSpec{
		Title:   "Cameras",
		Headers: []string{"Camera", "Shots", "Parent", "Reference still"},
		Aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
		Rows:    rows,
	}
}

func frameTable(frames []pipeline.FramePlan) tableSpec {
	rows := make([][]string, len(frames))
	for i, f := range frames {
		image := "-"
		if f.Image != "" {
			image = string(f.Image)
		}
		rows[i] = []string{
			f.Key,
			strconv.Itoa(f.Wave),
			strconv.Itoa(f.Candidates),
			strconv.Itoa(len(f.References)),
			image,
		}
	}
	return tableSpec{
		Title:   "Frames",
		Headers: []string{"Frame", "Wave", "Candidates", "Refs", "Image"},
		Aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
		Rows:    rows,
	}
}

func shotClipTable(clips []pipeline.ShotClipPlan) tableSpec {
	rows := make([][]string, len(clips))
	for i, c := range clips {
		clip := "-"
		if c.Clip != "" {
			clip = string(c.Clip)
		}
		rows[i] = []string{strconv.Itoa(c.ShotIdx), strconv.Itoa(c.Wave), c.Mode, clip}
	}
	return tableSpec{
		Title:   "Shot clips",
		Headers: []string{"Shot", "Wave", "Mode", "Clip"},
		Aligns:  []columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
		Rows:    rows,
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
