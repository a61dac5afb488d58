package store

import (
	"context"
	"fmt"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const buildColumns = `
	id, project, manifest_path, manifest_digest, plan_digest,
	version_slug, formats, status, error, started_at_ms, duration_ms`

// RecentBuilds returns up to limit builds, newest first. Ordering is by
// start time with the ID as tiebreaker, so history listings are stable.
// Steps are not attached; use GetBuild for the full record. Returns an
// empty slice, never nil, when the history is empty.
func (s *Store) RecentBuilds(ctx context.Context, limit int) ([]Build, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+buildColumns+`
		FROM builds
		ORDER BY started_at_ms DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	builds := make([]Build, 0, limit)
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate builds: %w", err)
	}
	return builds, nil
}

// GetBuild returns one build with its steps in sequence order.
// Unknown IDs surface as sql.ErrNoRows.
func (s *Store) GetBuild(ctx context.Context, id string) (*Build, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+buildColumns+`
		FROM builds
		WHERE id = ?`, id)
	b, err := scanBuild(row)
	if err != nil {
		return nil, err
	}

	steps, err := s.buildSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Steps = steps
	return &b, nil
}

func (s *Store) buildSteps(ctx context.Context, buildID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, seq, phase, name, kind, command,
		       status, exit_code, started_at_ms, duration_ms, log_tail
		FROM steps
		WHERE build_id = ?
		ORDER BY seq ASC`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query steps of %s: %w", buildID, err)
	}
	defer rows.Close()

	steps := make([]Step, 0, 16)
	for rows.Next() {
		var (
			st         Step
			command    string
			startedMS  int64
			durationMS int64
		)
		if err := rows.Scan(&st.BuildID, &st.Seq, &st.Phase, &st.Name, &st.Kind,
			&command, &st.Status, &st.ExitCode, &startedMS, &durationMS,
			&st.LogTail); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if st.Command, err = decodeStrings(command); err != nil {
			return nil, err
		}
		st.StartedAt = msToTime(startedMS)
		st.Duration = msToDuration(durationMS)
		steps = append(steps, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps of %s: %w", buildID, err)
	}
	return steps, nil
}

func scanBuild(row rowScanner) (Build, error) {
	var (
		b          Build
		formats    string
		startedMS  int64
		durationMS int64
	)
	if err := row.Scan(&b.ID, &b.Project, &b.ManifestPath, &b.ManifestDigest,
		&b.PlanDigest, &b.Version, &formats, &b.Status, &b.Error,
		&startedMS, &durationMS); err != nil {
		return Build{}, err
	}
	var err error
	if b.Formats, err = decodeStrings(formats); err != nil {
		return Build{}, err
	}
	b.StartedAt = msToTime(startedMS)
	b.Duration = msToDuration(durationMS)
	return b, nil
}
