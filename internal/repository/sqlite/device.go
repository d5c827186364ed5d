package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"hostfold/internal/domain"
)

// CreateDeviceIdentity inserts a new device identity
func (r *Repository) CreateDeviceIdentity(ctx context.Context, identity *domain.DeviceIdentity) error {
	mac := domain.NormalizeMAC(identity.MAC)
	if mac == "" {
		return fmt.Errorf("device identity requires a valid MAC, got %q", identity.MAC)
	}

	deviceType := identity.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_identities (id, mac, device_type, vendor)
		VALUES (?, ?, ?, ?)
	`, identity.ID, mac, string(deviceType), stringToNull(identity.Vendor))
	if err != nil {
		return fmt.Errorf("failed to insert device identity: %w", err)
	}
	return nil
}

// GetDeviceIdentity retrieves a device identity by ID, or nil if absent
func (r *Repository) GetDeviceIdentity(ctx context.Context, id string) (*domain.DeviceIdentity, error) {
	return r.queryOneIdentity(ctx,
		`SELECT id, mac, device_type, vendor, created_at, updated_at
		 FROM device_identities WHERE id = ?`, id)
}

// GetDeviceIdentityByMAC retrieves a device identity by its normalized MAC
func (r *Repository) GetDeviceIdentityByMAC(ctx context.Context, mac string) (*domain.DeviceIdentity, error) {
	normalized := domain.NormalizeMAC(mac)
	if normalized == "" {
		return nil, nil
	}
	return r.queryOneIdentity(ctx,
		`SELECT id, mac, device_type, vendor, created_at, updated_at
		 FROM device_identities WHERE mac = ?`, normalized)
}

// UpdateDeviceIdentity rewrites the mutable fields of a device identity
func (r *Repository) UpdateDeviceIdentity(ctx context.Context, identity *domain.DeviceIdentity) error {
	deviceType := identity.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE device_identities SET device_type = ?, vendor = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(deviceType), stringToNull(identity.Vendor), identity.ID)
	if err != nil {
		return fmt.Errorf("failed to update device identity: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("device identity %s not found", identity.ID)
	}
	return nil
}

// ListDeviceIdentities returns all device identities with their member host IDs
func (r *Repository) ListDeviceIdentities(ctx context.Context) ([]domain.DeviceIdentity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, mac, device_type, vendor, created_at, updated_at
		 FROM device_identities ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query device identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.DeviceIdentity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating device identities: %w", err)
	}

	for i := range identities {
		if err := r.attachHostIDs(ctx, &identities[i]); err != nil {
			return nil, err
		}
	}
	return identities, nil
}

// LinkHost attaches a host to a device identity. The column-level
// membership means a host can belong to at most one identity; linking
// an already-linked host overwrites nothing and fails upstream in the
// service layer, which checks first.
func (r *Repository) LinkHost(ctx context.Context, deviceID, hostID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE hosts SET device_identity_id = ?, device_linked_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND active = 1
	`, deviceID, hostID)
	if err != nil {
		return fmt.Errorf("failed to link host: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("host %s not found or inactive", hostID)
	}
	return nil
}

// UnlinkHost detaches a host from a device identity. The host itself
// is untouched otherwise.
func (r *Repository) UnlinkHost(ctx context.Context, deviceID, hostID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE hosts SET device_identity_id = NULL, device_linked_at = NULL,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND device_identity_id = ?
	`, hostID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to unlink host: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("host %s is not linked to device %s", hostID, deviceID)
	}
	return nil
}

// ListHostsByDevice returns the active hosts linked to a device
// identity, in link order
func (r *Repository) ListHostsByDevice(ctx context.Context, deviceID string) ([]domain.Host, error) {
	return r.queryHosts(ctx,
		`SELECT `+hostColumns+` FROM hosts
		 WHERE device_identity_id = ? AND active = 1
		 ORDER BY device_linked_at, id`, deviceID)
}

func (r *Repository) queryOneIdentity(ctx context.Context, query string, args ...interface{}) (*domain.DeviceIdentity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query device identity: %w", err)
	}

	if !rows.Next() {
		err := rows.Err()
		rows.Close()
		return nil, err
	}

	identity, err := scanIdentity(rows)
	// The pool is capped at one connection; release it before the
	// membership query below or that query blocks forever
	rows.Close()
	if err != nil {
		return nil, err
	}
	if err := r.attachHostIDs(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func scanIdentity(rows *sql.Rows) (*domain.DeviceIdentity, error) {
	var identity domain.DeviceIdentity
	var deviceType string
	var vendor sql.NullString
	if err := rows.Scan(&identity.ID, &identity.MAC, &deviceType, &vendor,
		&identity.CreatedAt, &identity.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan device identity: %w", err)
	}
	identity.DeviceType = domain.DeviceType(deviceType)
	identity.Vendor = nullToString(vendor)
	return &identity, nil
}

func (r *Repository) attachHostIDs(ctx context.Context, identity *domain.DeviceIdentity) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM hosts
		WHERE device_identity_id = ? AND active = 1
		ORDER BY device_linked_at, id
	`, identity.ID)
	if err != nil {
		return fmt.Errorf("failed to query linked hosts: %w", err)
	}
	defer rows.Close()

	identity.HostIDs = nil
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan linked host id: %w", err)
		}
		identity.HostIDs = append(identity.HostIDs, id)
	}
	return rows.Err()
}
