package store

import (
	"context"
	"fmt"
)

// RecordBuild persists a build and its steps in one transaction. Recording
// is idempotent on build ID: replaying a build that is already in history is
// a no-op, steps included.
func (s *Store) RecordBuild(ctx context.Context, b *Build) error {
	if b.ID == "" {
		return fmt.Errorf("build has no ID")
	}
	formats, err := encodeStrings(b.Formats)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO builds (
			id, project, manifest_path, manifest_digest, plan_digest,
			version_slug, formats, status, error, started_at_ms, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		b.ID, b.Project, b.ManifestPath, b.ManifestDigest, b.PlanDigest,
		b.Version, formats, b.Status, b.Error,
		timeToMS(b.StartedAt), b.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert build %s: %w", b.ID, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert build %s: %w", b.ID, err)
	}
	if inserted == 0 {
		// Already recorded; the steps were written in the same transaction
		// as the original row.
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (
			build_id, seq, phase, name, kind, command,
			status, exit_code, started_at_ms, duration_ms, log_tail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id, seq) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare step insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range b.Steps {
		command, err := encodeStrings(st.Command)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			b.ID, st.Seq, st.Phase, st.Name, st.Kind, command,
			st.Status, st.ExitCode, timeToMS(st.StartedAt),
			st.Duration.Milliseconds(), st.LogTail); err != nil {
			return fmt.Errorf("insert step %d of build %s: %w", st.Seq, b.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit build %s: %w", b.ID, err)
	}
	return nil
}

// Prune deletes all but the newest keep builds; their steps cascade away.
// Returns the number of builds removed. keep == 0 clears the history.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM builds
		WHERE id NOT IN (
			SELECT id FROM builds
			ORDER BY started_at_ms DESC, id DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune builds: %w", err)
	}
	return removed, nil
}
