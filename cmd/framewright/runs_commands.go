package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"framewright/internal/ledger"
	"framewright/internal/pipeline"
)

const timestampLayout = "2006-01-02 15:04"

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Browse the run ledger",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	return runsCmd
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					if runs == nil {
						runs = []*ledger.Run{}
					}
					return writeJSON(cmd, runs)
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(runsTable(runs)))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the stage history and artifacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(store *ledger.Store) error {
				id := args[0]
				run, err := store.GetRun(cmd.Context(), id)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", id)
				}
				events, err := store.StageEvents(cmd.Context(), id)
				if err != nil {
					return err
				}
				artifacts, err := store.Artifacts(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonMode() {
					return writeJSON(cmd, struct {
						Run       *ledger.Run         `json:"run"`
						Events    []ledger.StageEvent `json:"events"`
						Artifacts []ledger.Artifact   `json:"artifacts"`
					}{run, nonNil(events), nonNil(artifacts)})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(runsTable([]*ledger.Run{run})))
				if len(events) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(eventsTable(events)))
				}
				if len(artifacts) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(artifactsTable(artifacts)))
				}
				return nil
			})
		},
	}
}

func runsTable(runs []*ledger.Run) tableSpec {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		stage := pipeline.Stage(r.Stage).Label()
		if pipeline.Stage(r.Stage).PerWave() {
			stage = fmt.Sprintf("%s (wave %d)", stage, r.Wave)
		}
		rows[i] = []string{
			r.ID,
			string(r.Status),
			stage,
			formatTimestamp(r.UpdatedAt),
			r.ErrorMessage,
		}
	}
	return tableSpec{
		Title:      "Runs",
		Headers:    []string{"Run", "Status", "Stage", "Updated", "Error"},
		Rows:       rows,
		WrapColumn: 5,
		WrapWidth:  descWrapWidth,
	}
}

func eventsTable(events []ledger.StageEvent) tableSpec {
	rows := make([][]string, len(events))
	for i, ev := range events {
		wave := ""
		if pipeline.Stage(ev.Stage).PerWave() {
			wave = strconv.Itoa(ev.Wave)
		}
		duration := ""
		if ev.Duration > 0 {
			duration = ev.Duration.Round(time.Millisecond).String()
		}
		rows[i] = []string{pipeline.Stage(ev.Stage).Label(), wave, string(ev.Status), duration, ev.Message}
	}
	return tableSpec{
		Title:      "Stage history",
		Headers:    []string{"Stage", "Wave", "Status", "Duration", "Message"},
		Aligns:     []columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignLeft},
		Rows:       rows,
		WrapColumn: 5,
		WrapWidth:  descWrapWidth,
	}
}

func artifactsTable(items []ledger.Artifact) tableSpec {
	rows := make([][]string, len(items))
	for i, a := range items {
		rows[i] = []string{a.Handle, a.Kind, a.Source}
	}
	return tableSpec{
		Title:   "Artifacts",
		Headers: []string{"Handle", "Kind", "Source"},
		Rows:    rows,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timestampLayout)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
