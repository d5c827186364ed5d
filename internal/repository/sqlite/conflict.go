package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hostfold/internal/domain"
)

// CreateConflict inserts a new pending conflict. The partial unique
// index on (host_a_id, host_b_id, field) for pending rows makes the
// insert fail if the same disagreement is already open.
func (r *Repository) CreateConflict(ctx context.Context, conflict *domain.Conflict) error {
	status := conflict.Status
	if status == "" {
		status = domain.ConflictStatusPending
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, host_a_id, host_b_id, field, value_a, value_b,
			score, status, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, conflict.ID, conflict.HostAID, conflict.HostBID, conflict.Field,
		stringToNull(conflict.ValueA), stringToNull(conflict.ValueB),
		conflict.Score, string(status), conflict.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conflict: %w", err)
	}
	return nil
}

// GetConflict retrieves a single conflict by ID, or nil if absent
func (r *Repository) GetConflict(ctx context.Context, id string) (*domain.Conflict, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE id = ?`, id)

	var cr conflictRow
	if err := row.Scan(cr.scanArgs()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conflict: %w", err)
	}
	return cr.toDomain(), nil
}

// ListConflicts returns conflicts filtered by status; pass "" for all
func (r *Repository) ListConflicts(ctx context.Context, status domain.ConflictStatus) ([]domain.Conflict, error) {
	query := `SELECT ` + conflictColumns + ` FROM conflicts ORDER BY detected_at, id`
	args := []interface{}{}
	if status != "" {
		query = `SELECT ` + conflictColumns + ` FROM conflicts WHERE status = ? ORDER BY detected_at, id`
		args = append(args, string(status))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer rows.Close()

	var conflicts []domain.Conflict
	for rows.Next() {
		var cr conflictRow
		if err := rows.Scan(cr.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}
		conflicts = append(conflicts, *cr.toDomain())
	}
	return conflicts, rows.Err()
}

// FindPendingConflict looks for an open conflict on a field between two
// hosts, regardless of which host was recorded first
func (r *Repository) FindPendingConflict(ctx context.Context, hostAID, hostBID, field string) (*domain.Conflict, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conflictColumns+` FROM conflicts
		WHERE status = 'pending' AND field = ?
		  AND ((host_a_id = ? AND host_b_id = ?) OR (host_a_id = ? AND host_b_id = ?))
	`, field, hostAID, hostBID, hostBID, hostAID)

	var cr conflictRow
	if err := row.Scan(cr.scanArgs()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query pending conflict: %w", err)
	}
	return cr.toDomain(), nil
}

// ResolveConflict marks a pending conflict resolved with the chosen value
func (r *Repository) ResolveConflict(ctx context.Context, id, resolvedValue, resolvedBy string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conflicts SET status = 'resolved', resolved_value = ?, resolved_by = ?,
			resolved_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = 'pending'
	`, stringToNull(resolvedValue), stringToNull(resolvedBy), id)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("conflict %s not found or not pending", id)
	}
	return nil
}

// ResolvePendingForPair closes every remaining open conflict between two
// hosts with the given terminal resolution (e.g. after their merge)
func (r *Repository) ResolvePendingForPair(ctx context.Context, hostAID, hostBID, resolution string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conflicts SET status = 'resolved', resolved_by = ?,
			resolved_at = CURRENT_TIMESTAMP
		WHERE status = 'pending'
		  AND ((host_a_id = ? AND host_b_id = ?) OR (host_a_id = ? AND host_b_id = ?))
	`, stringToNull(resolution), hostAID, hostBID, hostBID, hostAID)
	if err != nil {
		return fmt.Errorf("failed to close pair conflicts: %w", err)
	}
	return nil
}
