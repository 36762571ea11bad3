package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"framewright/internal/ledger"
	"framewright/internal/pipeline"
	"framewright/internal/preflight"
)

type runFlags struct {
	scriptPath    string
	idea          string
	requirement   string
	style         string
	runID         string
	resume        string
	skipPreflight bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Produce a scene from a script or an idea",
		Long: "Run the full scene pipeline. Pass --script with a screenplay file or --idea with a\n" +
			"one-line story idea. Use --resume to continue a run that stopped part way.",
		Example: "  framewright run --idea \"two siblings argue over a letter\" --style \"warm film noir\"\n" +
			"  framewright run --resume 3f1c0e7a-1b1d-4d35-9d8e-0c30f3f3c8a1",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in, err := flags.input()
			if err != nil {
				return err
			}
			if err := cfg.ValidateCredentials(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !flags.skipPreflight {
				results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{})
				if failed := preflight.Failed(results); len(failed) > 0 {
					for _, line := range preflightLines(results, shouldColorize(out)) {
						fmt.Fprintln(cmd.ErrOrStderr(), line)
					}
					return fmt.Errorf("preflight failed: %d check(s) did not pass", len(failed))
				}
			}

			logger, err := ctx.newLogger()
			if err != nil {
				return err
			}

			return ctx.withLedger(func(store *ledger.Store) error {
				orch, err := buildOrchestrator(cmd.Context(), cfg, store, logger)
				if err != nil {
					return err
				}
				res, runErr := orch.Run(cmd.Context(), in)
				if res != nil {
					if ctx.jsonMode() {
						if err := writeJSON(cmd, runSummary(res, runErr)); err != nil {
							return err
						}
					} else {
						printRunSummary(cmd, res, runErr)
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&flags.scriptPath, "script", "", "Screenplay file to produce")
	cmd.Flags().StringVar(&flags.idea, "idea", "", "Story idea to write a script from")
	cmd.Flags().StringVar(&flags.requirement, "requirement", "", "Constraints for the script writer (length, cast)")
	cmd.Flags().StringVar(&flags.style, "style", "", "Visual style applied to every image")
	cmd.Flags().StringVar(&flags.runID, "run-id", "", "Name for a new run (default: random UUID)")
	cmd.Flags().StringVar(&flags.resume, "resume", "", "Continue the saved run with this id")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip dependency and service checks")
	cmd.MarkFlagsMutuallyExclusive("resume", "run-id")
	cmd.MarkFlagsMutuallyExclusive("resume", "script")
	cmd.MarkFlagsMutuallyExclusive("resume", "idea")
	return cmd
}

func (f runFlags) input() (pipeline.Input, error) {
	in := pipeline.Input{
		Idea:        strings.TrimSpace(f.idea),
		Requirement: strings.TrimSpace(f.requirement),
		Style:       strings.TrimSpace(f.style),
		RunID:       strings.TrimSpace(f.runID),
		ResumeRunID: strings.TrimSpace(f.resume),
	}
	if path := strings.TrimSpace(f.scriptPath); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return pipeline.Input{}, fmt.Errorf("read script: %w", err)
		}
		in.Script = strings.TrimSpace(string(data))
		if in.Script == "" {
			return pipeline.Input{}, fmt.Errorf("script file %s is empty", path)
		}
	}
	if in.ResumeRunID == "" && in.Script == "" && in.Idea == "" {
		return pipeline.Input{}, errors.New("pass --script, --idea, or --resume")
	}
	return in, nil
}

type runSummaryView struct {
	RunID     string `json:"run_id"`
	Workspace string `json:"workspace"`
	Stage     string `json:"stage"`
	Shots     int    `json:"shots"`
	Cameras   int    `json:"cameras"`
	Frames    int    `json:"frames"`
	Error     string `json:"error,omitempty"`
}

func runSummary(res *pipeline.Result, runErr error) runSummaryView {
	view := runSummaryView{RunID: res.RunID, Workspace: res.Workspace}
	if res.Plan != nil {
		view.Stage = string(res.Plan.Stage)
		view.Shots = len(res.Plan.Shots)
		view.Cameras = len(res.Plan.Cameras)
		view.Frames = len(res.Plan.Frames)
	}
	if runErr != nil {
		view.Error = runErr.Error()
	}
	return view
}

func printRunSummary(cmd *cobra.Command, res *pipeline.Result, runErr error) {
	out := cmd.OutOrStdout()
	view := runSummary(res, runErr)
	if runErr != nil {
		fmt.Fprintf(out, "Run %s did not finish; artifacts so far are in %s\n", view.RunID, view.Workspace)
		fmt.Fprintf(out, "Resume with: framewright run --resume %s\n", view.RunID)
		return
	}
	fmt.Fprintf(out, "Run %s complete: %d shots, %d cameras, %d frames\n", view.RunID, view.Shots, view.Cameras, view.Frames)
	fmt.Fprintf(out, "Workspace: %s\n", view.Workspace)
}
