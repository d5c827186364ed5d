package domain

import "time"

// RecordKind distinguishes the shapes a scan source can contribute
type RecordKind string

const (
	RecordKindHost       RecordKind = "host"
	RecordKindPort       RecordKind = "port"
	RecordKindConnection RecordKind = "connection"
	RecordKindARP        RecordKind = "arp"
)

// NormalizedRecord is the single canonical shape produced by scan-output
// normalization. Fields are optional per kind: a host record may carry
// anything, a port record needs an address plus Port, an arp record pairs
// an IP with a MAC, a connection record names two endpoints.
type NormalizedRecord struct {
	Kind   RecordKind `json:"kind" yaml:"kind"`
	Source string     `json:"source" yaml:"source"`

	IPv4     string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6     string `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	MAC      string `json:"mac,omitempty" yaml:"mac,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	FQDN     string `json:"fqdn,omitempty" yaml:"fqdn,omitempty"`
	NetBIOS  string `json:"netbios,omitempty" yaml:"netbios,omitempty"`

	OS         OSInfo     `json:"os,omitempty" yaml:"os,omitempty"`
	DeviceType DeviceType `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Vendor     string     `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Subnet     string     `json:"subnet,omitempty" yaml:"subnet,omitempty"`

	// Port is set for port records
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	// RemoteIPv4 is the far endpoint of a connection record
	RemoteIPv4 string `json:"remote_ipv4,omitempty" yaml:"remote_ipv4,omitempty"`
	RemotePort int    `json:"remote_port,omitempty" yaml:"remote_port,omitempty"`

	ObservedAt *time.Time `json:"observed_at,omitempty" yaml:"observed_at,omitempty"`
}

// RunSummary reports what one correlation run did
type RunSummary struct {
	ID                      string     `json:"id"`
	StartedAt               time.Time  `json:"started_at"`
	FinishedAt              *time.Time `json:"finished_at,omitempty"`
	HostsExamined           int        `json:"hosts_examined"`
	HostsMerged             int        `json:"hosts_merged"`
	DeviceIdentitiesCreated int        `json:"device_identities_created"`
	ConflictsRaised         int        `json:"conflicts_raised"`
	PairsSkipped            int        `json:"pairs_skipped"`
}
