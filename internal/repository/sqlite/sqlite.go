package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Repository implements repository.Store using SQLite
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
// Pass ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes access per connection; a single
	// connection avoids table-lock errors under concurrent writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hosts (
		id TEXT PRIMARY KEY,
		ipv4 TEXT,
		ipv6 TEXT,
		mac TEXT,
		hostname TEXT,
		fqdn TEXT,
		netbios TEXT,
		os_name TEXT,
		os_version TEXT,
		os_family TEXT,
		os_confidence REAL NOT NULL DEFAULT 0,
		device_type TEXT NOT NULL DEFAULT 'unknown',
		vendor TEXT,
		subnet TEXT,
		open_ports TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		device_identity_id TEXT REFERENCES device_identities(id),
		device_linked_at DATETIME,
		merged_into TEXT,
		first_seen DATETIME,
		last_seen DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS host_tags (
		host_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		PRIMARY KEY (host_id, tag),
		FOREIGN KEY (host_id) REFERENCES hosts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS host_sources (
		host_id TEXT NOT NULL,
		source TEXT NOT NULL,
		PRIMARY KEY (host_id, source),
		FOREIGN KEY (host_id) REFERENCES hosts(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS device_identities (
		id TEXT PRIMARY KEY,
		mac TEXT NOT NULL UNIQUE,
		device_type TEXT NOT NULL DEFAULT 'unknown',
		vendor TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		host_a_id TEXT NOT NULL,
		host_b_id TEXT NOT NULL,
		field TEXT NOT NULL,
		value_a TEXT,
		value_b TEXT,
		score REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		resolved_value TEXT,
		resolved_by TEXT,
		detected_at DATETIME NOT NULL,
		resolved_at DATETIME,
		FOREIGN KEY (host_a_id) REFERENCES hosts(id),
		FOREIGN KEY (host_b_id) REFERENCES hosts(id)
	);

	CREATE TABLE IF NOT EXISTS correlation_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		hosts_examined INTEGER NOT NULL DEFAULT 0,
		hosts_merged INTEGER NOT NULL DEFAULT 0,
		identities_created INTEGER NOT NULL DEFAULT 0,
		conflicts_raised INTEGER NOT NULL DEFAULT 0,
		pairs_skipped INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_hosts_ipv4 ON hosts(ipv4) WHERE ipv4 IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_hosts_mac ON hosts(mac) WHERE mac IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_hosts_active ON hosts(active);
	CREATE INDEX IF NOT EXISTS idx_hosts_device ON hosts(device_identity_id) WHERE device_identity_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_host_tags_tag ON host_tags(tag);
	CREATE INDEX IF NOT EXISTS idx_conflicts_status ON conflicts(status);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conflicts_pending_pair
		ON conflicts(host_a_id, host_b_id, field) WHERE status = 'pending';
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
