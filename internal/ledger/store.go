package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = "id, status, stage, wave, workspace, idea, error_message, created_at, updated_at"

// CreateRun inserts a running row for id.
func (s *Store) CreateRun(ctx context.Context, id, workspace, idea string) (*Run, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, status, stage, wave, workspace, idea, created_at, updated_at)
        VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
		id, StatusRunning, "", workspace, nullableString(idea), timestamp, timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// GetRun fetches a run by identifier. It returns nil when absent.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SetStage records the stage and wave the run has reached.
func (s *Store) SetStage(ctx context.Context, id, stage string, wave int) error {
	return s.updateRun(ctx, `UPDATE runs SET stage = ?, wave = ?, updated_at = ? WHERE id = ?`,
		id, stage, wave, now(), id)
}

// MarkFailed stores the terminal error message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.updateRun(ctx, `UPDATE runs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		id, StatusFailed, message, now(), id)
}

// MarkDone completes the run.
func (s *Store) MarkDone(ctx context.Context, id string) error {
	return s.updateRun(ctx, `UPDATE runs SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		id, StatusDone, now(), id)
}

// Resume flips a failed or interrupted run back to running.
func (s *Store) Resume(ctx context.Context, id string) error {
	return s.updateRun(ctx, `UPDATE runs SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?`,
		id, StatusRunning, now(), id)
}

func (s *Store) updateRun(ctx context.Context, query, id string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// RecordStageEvent appends one stage history row.
func (s *Store) RecordStageEvent(ctx context.Context, ev StageEvent) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO stage_events (run_id, stage, wave, status, message, duration_ms, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.RunID, ev.Stage, ev.Wave, ev.Status, nullableString(ev.Message), ev.Duration.Milliseconds(), now(),
	); err != nil {
		return fmt.Errorf("insert stage event: %w", err)
	}
	return nil
}

// StageEvents returns a run's history in insertion order.
func (s *Store) StageEvents(ctx context.Context, runID string) ([]StageEvent, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, stage, wave, status, message, duration_ms, created_at
        FROM stage_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list stage events: %w", err)
	}
	defer rows.Close()

	var events []StageEvent
	for rows.Next() {
		var (
			ev         StageEvent
			status     string
			message    sql.NullString
			durationMS int64
			createdRaw string
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Stage, &ev.Wave, &status, &message, &durationMS, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan stage event: %w", err)
		}
		ev.Status = EventStatus(status)
		ev.Message = message.String
		ev.Duration = time.Duration(durationMS) * time.Millisecond
		if created, err := parseTimeString(createdRaw); err == nil {
			ev.CreatedAt = created
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// RecordArtifact attributes a file to a run. Re-recording a handle is a no-op.
func (s *Store) RecordArtifact(ctx context.Context, a Artifact) error {
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO artifacts (run_id, handle, kind, source, description, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id, handle) DO NOTHING`,
		a.RunID, a.Handle, a.Kind, nullableString(a.Source), nullableString(a.Description), now(),
	); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// Artifacts lists a run's recorded artifacts in insertion order.
func (s *Store) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT run_id, handle, kind, source, description, created_at
        FROM artifacts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var (
			a           Artifact
			source      sql.NullString
			description sql.NullString
			createdRaw  string
		)
		if err := rows.Scan(&a.RunID, &a.Handle, &a.Kind, &source, &description, &createdRaw); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Source = source.String
		a.Description = description.String
		if created, err := parseTimeString(createdRaw); err == nil {
			a.CreatedAt = created
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
