package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hostfold/internal/domain"
)

// CreateHost inserts a new host with its tag and source sets
func (r *Repository) CreateHost(ctx context.Context, host *domain.Host) error {
	args, err := hostWriteArgs(host)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO hosts (id, ipv4, ipv6, mac, hostname, fqdn, netbios,
			os_name, os_version, os_family, os_confidence, device_type, vendor, subnet,
			open_ports, active, device_identity_id, merged_into, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, append([]interface{}{host.ID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to insert host: %w", err)
	}

	if err := replaceSet(ctx, r.db, "host_tags", "tag", host.ID, host.Tags); err != nil {
		return fmt.Errorf("failed to write host tags: %w", err)
	}
	if err := replaceSet(ctx, r.db, "host_sources", "source", host.ID, host.Sources); err != nil {
		return fmt.Errorf("failed to write host sources: %w", err)
	}
	return nil
}

// GetHost retrieves a single host by ID, or nil if it does not exist
func (r *Repository) GetHost(ctx context.Context, id string) (*domain.Host, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE id = ?`, id)

	var hr hostRow
	if err := row.Scan(hr.scanArgs()...); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query host: %w", err)
	}

	host, err := hr.toDomain()
	if err != nil {
		return nil, err
	}
	return r.attachSets(ctx, host)
}

// UpdateHost rewrites all columns of an existing host
func (r *Repository) UpdateHost(ctx context.Context, host *domain.Host) error {
	args, err := hostWriteArgs(host)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE hosts SET ipv4 = ?, ipv6 = ?, mac = ?, hostname = ?, fqdn = ?, netbios = ?,
			os_name = ?, os_version = ?, os_family = ?, os_confidence = ?,
			device_type = ?, vendor = ?, subnet = ?, open_ports = ?, active = ?,
			device_identity_id = ?, merged_into = ?, first_seen = ?, last_seen = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, append(args, host.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update host: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("host %s not found", host.ID)
	}
	return nil
}

// ListActiveHosts returns all active hosts with their tag/source sets
func (r *Repository) ListActiveHosts(ctx context.Context) ([]domain.Host, error) {
	return r.queryHosts(ctx, `SELECT `+hostColumns+` FROM hosts WHERE active = 1 ORDER BY id`)
}

// ListHosts returns hosts, optionally including merged-away inactive rows
func (r *Repository) ListHosts(ctx context.Context, includeInactive bool) ([]domain.Host, error) {
	if includeInactive {
		return r.queryHosts(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY id`)
	}
	return r.ListActiveHosts(ctx)
}

// FindActiveByIP returns active hosts carrying the IP as either address family
func (r *Repository) FindActiveByIP(ctx context.Context, ip string) ([]domain.Host, error) {
	return r.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE active = 1 AND (ipv4 = ? OR ipv6 = ?) ORDER BY id`,
		ip, ip)
}

// FindActiveByMAC returns active hosts with the given (normalized) MAC
func (r *Repository) FindActiveByMAC(ctx context.Context, mac string) ([]domain.Host, error) {
	normalized := domain.NormalizeMAC(mac)
	if normalized == "" {
		return nil, nil
	}
	return r.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE active = 1 AND mac = ? ORDER BY id`, normalized)
}

// ReplaceHostTags rewrites the derived tag set for a host
func (r *Repository) ReplaceHostTags(ctx context.Context, hostID string, tags []string) error {
	return replaceSet(ctx, r.db, "host_tags", "tag", hostID, tags)
}

// ReplaceHostSources rewrites the source-marker set for a host
func (r *Repository) ReplaceHostSources(ctx context.Context, hostID string, sources []string) error {
	return replaceSet(ctx, r.db, "host_sources", "source", hostID, sources)
}

// ListMergedInto returns the inactive hosts that were folded into the
// given primary, oldest merge first
func (r *Repository) ListMergedInto(ctx context.Context, primaryID string) ([]domain.Host, error) {
	return r.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE merged_into = ? ORDER BY updated_at, id`, primaryID)
}

// ApplyMerge commits the full effect of a merge plan in one transaction:
// the primary's new value and unioned sets, and the secondary's
// deactivation. A constraint violation rolls the whole pair back.
func (r *Repository) ApplyMerge(ctx context.Context, plan *domain.MergePlan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	args, err := hostWriteArgs(&plan.Primary)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE hosts SET ipv4 = ?, ipv6 = ?, mac = ?, hostname = ?, fqdn = ?, netbios = ?,
			os_name = ?, os_version = ?, os_family = ?, os_confidence = ?,
			device_type = ?, vendor = ?, subnet = ?, open_ports = ?, active = ?,
			device_identity_id = ?, merged_into = ?, first_seen = ?, last_seen = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1
	`, append(args, plan.PrimaryID)...)
	if err != nil {
		return fmt.Errorf("failed to update primary: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("primary host %s not found or inactive", plan.PrimaryID)
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE hosts SET active = 0, merged_into = ?, device_identity_id = NULL,
			device_linked_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1
	`, plan.PrimaryID, plan.SecondaryID)
	if err != nil {
		return fmt.Errorf("failed to deactivate secondary: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("secondary host %s not found or inactive", plan.SecondaryID)
	}

	if err := replaceSet(ctx, tx, "host_tags", "tag", plan.PrimaryID, plan.Tags); err != nil {
		return fmt.Errorf("failed to union tags: %w", err)
	}
	if err := replaceSet(ctx, tx, "host_sources", "source", plan.PrimaryID, plan.Sources); err != nil {
		return fmt.Errorf("failed to union sources: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit merge: %w", err)
	}
	return nil
}

// queryHosts runs a host SELECT and attaches tag/source sets to each row
func (r *Repository) queryHosts(ctx context.Context, query string, args ...interface{}) ([]domain.Host, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	var hosts []domain.Host
	for rows.Next() {
		var hr hostRow
		if err := rows.Scan(hr.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		host, err := hr.toDomain()
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, *host)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hosts: %w", err)
	}

	for i := range hosts {
		if _, err := r.attachSets(ctx, &hosts[i]); err != nil {
			return nil, err
		}
	}
	return hosts, nil
}

func (r *Repository) attachSets(ctx context.Context, host *domain.Host) (*domain.Host, error) {
	tags, err := loadSet(ctx, r.db, "host_tags", "tag", host.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	sources, err := loadSet(ctx, r.db, "host_sources", "source", host.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	host.Tags = tags
	host.Sources = sources
	return host, nil
}
