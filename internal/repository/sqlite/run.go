package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hostfold/internal/domain"
)

// SaveRunSummary upserts a correlation run record. The engine saves the
// row when the run starts and again with final counts when it finishes.
func (r *Repository) SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO correlation_runs (id, started_at, finished_at,
			hosts_examined, hosts_merged, identities_created, conflicts_raised, pairs_skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			hosts_examined = excluded.hosts_examined,
			hosts_merged = excluded.hosts_merged,
			identities_created = excluded.identities_created,
			conflicts_raised = excluded.conflicts_raised,
			pairs_skipped = excluded.pairs_skipped
	`, summary.ID, summary.StartedAt, timePtrToNull(summary.FinishedAt),
		summary.HostsExamined, summary.HostsMerged, summary.DeviceIdentitiesCreated,
		summary.ConflictsRaised, summary.PairsSkipped)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

// ListRunSummaries returns the most recent runs, newest first
func (r *Repository) ListRunSummaries(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, hosts_examined, hosts_merged,
			identities_created, conflicts_raised, pairs_skipped
		FROM correlation_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.RunSummary
	for rows.Next() {
		var s domain.RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &finished,
			&s.HostsExamined, &s.HostsMerged, &s.DeviceIdentitiesCreated,
			&s.ConflictsRaised, &s.PairsSkipped); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		s.FinishedAt = nullToTimePtr(finished)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
