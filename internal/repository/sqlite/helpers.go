package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"hostfold/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullToTimePtr safely converts sql.NullTime to *time.Time
func nullToTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		return &nt.Time
	}
	return nil
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timePtrToNull safely converts *time.Time to sql.NullTime
func timePtrToNull(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ============================================================================
// Host Row Scanner
// ============================================================================

// hostRow holds all columns from a host query for scanning
type hostRow struct {
	ID             string
	IPv4           sql.NullString
	IPv6           sql.NullString
	MAC            sql.NullString
	Hostname       sql.NullString
	FQDN           sql.NullString
	NetBIOS        sql.NullString
	OSName         sql.NullString
	OSVersion      sql.NullString
	OSFamily       sql.NullString
	OSConfidence   float64
	DeviceType     string
	Vendor         sql.NullString
	Subnet         sql.NullString
	OpenPortsJSON  sql.NullString
	Active         int
	DeviceIdentity sql.NullString
	MergedInto     sql.NullString
	FirstSeen      sql.NullTime
	LastSeen       sql.NullTime
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// hostColumns is the SELECT column list for host queries.
// scanArgs must match this order exactly.
const hostColumns = `id, ipv4, ipv6, mac, hostname, fqdn, netbios,
	os_name, os_version, os_family, os_confidence, device_type, vendor, subnet,
	open_ports, active, device_identity_id, merged_into,
	first_seen, last_seen, created_at, updated_at`

// scanArgs returns pointers to all fields for sql.Scan()
func (r *hostRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.IPv4,
		&r.IPv6,
		&r.MAC,
		&r.Hostname,
		&r.FQDN,
		&r.NetBIOS,
		&r.OSName,
		&r.OSVersion,
		&r.OSFamily,
		&r.OSConfidence,
		&r.DeviceType,
		&r.Vendor,
		&r.Subnet,
		&r.OpenPortsJSON,
		&r.Active,
		&r.DeviceIdentity,
		&r.MergedInto,
		&r.FirstSeen,
		&r.LastSeen,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
}

// toDomain converts the scanned row to a domain.Host
func (r *hostRow) toDomain() (*domain.Host, error) {
	host := &domain.Host{
		ID:       r.ID,
		IPv4:     nullToString(r.IPv4),
		IPv6:     nullToString(r.IPv6),
		MAC:      nullToString(r.MAC),
		Hostname: nullToString(r.Hostname),
		FQDN:     nullToString(r.FQDN),
		NetBIOS:  nullToString(r.NetBIOS),
		OS: domain.OSInfo{
			Name:       nullToString(r.OSName),
			Version:    nullToString(r.OSVersion),
			Family:     nullToString(r.OSFamily),
			Confidence: r.OSConfidence,
		},
		DeviceType:       domain.DeviceType(r.DeviceType),
		Vendor:           nullToString(r.Vendor),
		Subnet:           nullToString(r.Subnet),
		Active:           r.Active != 0,
		DeviceIdentityID: nullToString(r.DeviceIdentity),
		MergedInto:       nullToString(r.MergedInto),
		FirstSeen:        nullToTimePtr(r.FirstSeen),
		LastSeen:         nullToTimePtr(r.LastSeen),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if r.OpenPortsJSON.Valid && r.OpenPortsJSON.String != "" {
		if err := json.Unmarshal([]byte(r.OpenPortsJSON.String), &host.OpenPorts); err != nil {
			return nil, fmt.Errorf("unmarshal open_ports: %w", err)
		}
	}

	return host, nil
}

// hostWriteArgs prepares arguments for host INSERT/UPDATE.
// Order: ipv4, ipv6, mac, hostname, fqdn, netbios, os_name, os_version,
// os_family, os_confidence, device_type, vendor, subnet, open_ports,
// active, device_identity_id, merged_into, first_seen, last_seen
func hostWriteArgs(host *domain.Host) ([]interface{}, error) {
	var portsJSON sql.NullString
	if len(host.OpenPorts) > 0 {
		data, err := json.Marshal(host.OpenPorts)
		if err != nil {
			return nil, fmt.Errorf("marshal open_ports: %w", err)
		}
		portsJSON = sql.NullString{String: string(data), Valid: true}
	}

	deviceType := host.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}

	active := 0
	if host.Active {
		active = 1
	}

	return []interface{}{
		stringToNull(host.IPv4),
		stringToNull(host.IPv6),
		stringToNull(domain.NormalizeMAC(host.MAC)),
		stringToNull(host.Hostname),
		stringToNull(host.FQDN),
		stringToNull(host.NetBIOS),
		stringToNull(host.OS.Name),
		stringToNull(host.OS.Version),
		stringToNull(host.OS.Family),
		host.OS.Confidence,
		string(deviceType),
		stringToNull(host.Vendor),
		stringToNull(host.Subnet),
		portsJSON,
		active,
		stringToNull(host.DeviceIdentityID),
		stringToNull(host.MergedInto),
		timePtrToNull(host.FirstSeen),
		timePtrToNull(host.LastSeen),
	}, nil
}

// execer abstracts *sql.DB and *sql.Tx for helpers used inside and
// outside transactions
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// replaceSet rewrites a (host_id, value) side table for one host
func replaceSet(ctx context.Context, e execer, table, column, hostID string, values []string) error {
	if _, err := e.ExecContext(ctx, `DELETE FROM `+table+` WHERE host_id = ?`, hostID); err != nil {
		return err
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := e.ExecContext(ctx,
			`INSERT OR IGNORE INTO `+table+` (host_id, `+column+`) VALUES (?, ?)`, hostID, v); err != nil {
			return err
		}
	}
	return nil
}

// loadSet reads a (host_id, value) side table for one host in insert order
func loadSet(ctx context.Context, e execer, table, column, hostID string) ([]string, error) {
	rows, err := e.QueryContext(ctx,
		`SELECT `+column+` FROM `+table+` WHERE host_id = ? ORDER BY rowid`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ============================================================================
// Conflict Row Scanner
// ============================================================================

// conflictRow holds all columns from a conflict query for scanning
type conflictRow struct {
	ID            string
	HostAID       string
	HostBID       string
	Field         string
	ValueA        sql.NullString
	ValueB        sql.NullString
	Score         float64
	Status        string
	ResolvedValue sql.NullString
	ResolvedBy    sql.NullString
	DetectedAt    time.Time
	ResolvedAt    sql.NullTime
}

// conflictColumns is the SELECT column list for conflict queries
const conflictColumns = `id, host_a_id, host_b_id, field, value_a, value_b,
	score, status, resolved_value, resolved_by, detected_at, resolved_at`

// scanArgs returns pointers to all fields for sql.Scan()
func (r *conflictRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.HostAID,
		&r.HostBID,
		&r.Field,
		&r.ValueA,
		&r.ValueB,
		&r.Score,
		&r.Status,
		&r.ResolvedValue,
		&r.ResolvedBy,
		&r.DetectedAt,
		&r.ResolvedAt,
	}
}

// toDomain converts the scanned row to a domain.Conflict
func (r *conflictRow) toDomain() *domain.Conflict {
	return &domain.Conflict{
		ID:            r.ID,
		HostAID:       r.HostAID,
		HostBID:       r.HostBID,
		Field:         r.Field,
		ValueA:        nullToString(r.ValueA),
		ValueB:        nullToString(r.ValueB),
		Score:         r.Score,
		Status:        domain.ConflictStatus(r.Status),
		ResolvedValue: nullToString(r.ResolvedValue),
		ResolvedBy:    nullToString(r.ResolvedBy),
		DetectedAt:    r.DetectedAt,
		ResolvedAt:    nullToTimePtr(r.ResolvedAt),
	}
}
