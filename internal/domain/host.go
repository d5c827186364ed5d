package domain

import (
	"strings"
	"time"
)

// DeviceType classifies what kind of device a host record describes
type DeviceType string

const (
	DeviceTypeRouter      DeviceType = "router"
	DeviceTypeSwitch      DeviceType = "switch"
	DeviceTypeFirewall    DeviceType = "firewall"
	DeviceTypeServer      DeviceType = "server"
	DeviceTypeWorkstation DeviceType = "workstation"
	DeviceTypePrinter     DeviceType = "printer"
	DeviceTypePhone       DeviceType = "phone"
	DeviceTypeIoT         DeviceType = "iot"
	DeviceTypeStorage     DeviceType = "storage"
	DeviceTypeVirtual     DeviceType = "virtual"
	DeviceTypeUnknown     DeviceType = "unknown"
)

// OSInfo holds operating system details reported by a scan source
type OSInfo struct {
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Version    string  `json:"version,omitempty" yaml:"version,omitempty"`
	Family     string  `json:"family,omitempty" yaml:"family,omitempty"`
	Confidence float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// Host is one candidate device record contributed by scan sources.
// Hosts are created by the import path and mutated only by import upserts,
// engine merges, and manual conflict resolution. The engine deactivates
// hosts on merge but never deletes them.
type Host struct {
	ID       string `json:"id" yaml:"id"`
	IPv4     string `json:"ipv4,omitempty" yaml:"ipv4,omitempty"`
	IPv6     string `json:"ipv6,omitempty" yaml:"ipv6,omitempty"`
	MAC      string `json:"mac,omitempty" yaml:"mac,omitempty"`
	Hostname string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	FQDN     string `json:"fqdn,omitempty" yaml:"fqdn,omitempty"`
	NetBIOS  string `json:"netbios,omitempty" yaml:"netbios,omitempty"`

	OS         OSInfo     `json:"os,omitempty" yaml:"os,omitempty"`
	DeviceType DeviceType `json:"device_type,omitempty" yaml:"device_type,omitempty"`
	Vendor     string     `json:"vendor,omitempty" yaml:"vendor,omitempty"`

	// Subnet is the declared VLAN/subnet assignment (CIDR), when known
	Subnet    string   `json:"subnet,omitempty" yaml:"subnet,omitempty"`
	OpenPorts []int    `json:"open_ports,omitempty" yaml:"open_ports,omitempty"`
	Tags      []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Sources   []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	Active           bool   `json:"active" yaml:"active"`
	DeviceIdentityID string `json:"device_identity_id,omitempty" yaml:"device_identity_id,omitempty"`
	// MergedInto points at the primary host this record was folded into
	MergedInto string `json:"merged_into,omitempty" yaml:"merged_into,omitempty"`

	FirstSeen *time.Time `json:"first_seen,omitempty" yaml:"first_seen,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty" yaml:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// NewHost creates an active host with timestamps initialized
func NewHost(id string) *Host {
	now := time.Now()
	return &Host{
		ID:        id,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasSource reports whether the given source marker is already recorded
func (h *Host) HasSource(source string) bool {
	for _, s := range h.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// AddSource records a source marker if not already present
func (h *Host) AddSource(source string) {
	if source == "" || h.HasSource(source) {
		return
	}
	h.Sources = append(h.Sources, source)
}

// Seen updates the first/last seen window to include t
func (h *Host) Seen(t time.Time) {
	if h.FirstSeen == nil || t.Before(*h.FirstSeen) {
		first := t
		h.FirstSeen = &first
	}
	if h.LastSeen == nil || t.After(*h.LastSeen) {
		last := t
		h.LastSeen = &last
	}
}

// PopulatedFields counts non-empty identifying fields; used as the merge
// tie-breaker when two candidates share the same last_seen
func (h *Host) PopulatedFields() int {
	count := 0
	for _, s := range []string{h.IPv4, h.IPv6, h.MAC, h.Hostname, h.FQDN, h.NetBIOS, h.Vendor, h.Subnet, h.OS.Name, h.OS.Family} {
		if s != "" {
			count++
		}
	}
	if h.DeviceType != "" && h.DeviceType != DeviceTypeUnknown {
		count++
	}
	if len(h.OpenPorts) > 0 {
		count++
	}
	return count
}

// NormalizeMAC canonicalizes a MAC address to lowercase colon-separated form.
// Returns "" for anything that does not look like a 48-bit address.
func NormalizeMAC(mac string) string {
	cleaned := strings.ToLower(strings.TrimSpace(mac))
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, ".", "")
	if len(cleaned) != 12 {
		return ""
	}
	for _, c := range cleaned {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return ""
		}
	}
	var b strings.Builder
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String()
}

// IsLocallyAdministeredMAC reports whether the locally-administered bit
// (bit 1 of the first octet) is set. Randomized MACs from VPN and
// virtualization software set this bit and must be excluded from
// MAC-based matching.
func IsLocallyAdministeredMAC(mac string) bool {
	normalized := NormalizeMAC(mac)
	if normalized == "" {
		return false
	}
	first := hexOctet(normalized[:2])
	return first&0x02 != 0
}

// MACPrefix returns the OUI (first three octets) of a normalized MAC,
// or "" if the address is invalid
func MACPrefix(mac string) string {
	normalized := NormalizeMAC(mac)
	if normalized == "" {
		return ""
	}
	return normalized[:8]
}

func hexOctet(s string) byte {
	var v byte
	for i := 0; i < len(s); i++ {
		v <<= 4
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			v |= c - '0'
		case c >= 'a' && c <= 'f':
			v |= c - 'a' + 10
		}
	}
	return v
}
