package domain

import "time"

// ConflictStatus tracks whether a conflict awaits operator review
type ConflictStatus string

const (
	ConflictStatusPending  ConflictStatus = "pending"
	ConflictStatusResolved ConflictStatus = "resolved"
)

// Resolution choices accepted by the resolve operation
const (
	ResolutionAcceptA    = "accept_a"
	ResolutionAcceptB    = "accept_b"
	ResolutionValue      = "value"
	ResolutionSuperseded = "superseded"
)

// Conflict records an irreconcilable field disagreement between two merge
// candidates. Ambiguous evidence is surfaced this way instead of merging
// automatically; an operator resolution triggers the deferred merge.
type Conflict struct {
	ID      string  `json:"id"`
	HostAID string  `json:"host_a_id"`
	HostBID string  `json:"host_b_id"`
	Field   string  `json:"field"`
	ValueA  string  `json:"value_a"`
	ValueB  string  `json:"value_b"`
	Score   float64 `json:"score,omitempty"`

	Status        ConflictStatus `json:"status"`
	ResolvedValue string         `json:"resolved_value,omitempty"`
	ResolvedBy    string         `json:"resolved_by,omitempty"`
	DetectedAt    time.Time      `json:"detected_at"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
}

// IsResolved reports whether the conflict has been resolved
func (c *Conflict) IsResolved() bool {
	return c.Status == ConflictStatusResolved
}

// Fields whose disagreement blocks an automatic merge
const (
	FieldMAC        = "mac"
	FieldOSFamily   = "os_family"
	FieldDeviceType = "device_type"
	FieldVendor     = "vendor"
	FieldHostname   = "hostname"
)

// FieldValue returns a host's current value for a conflict field name
func FieldValue(h *Host, field string) string {
	switch field {
	case FieldMAC:
		return NormalizeMAC(h.MAC)
	case FieldOSFamily:
		return h.OS.Family
	case FieldDeviceType:
		return string(h.DeviceType)
	case FieldVendor:
		return h.Vendor
	case FieldHostname:
		return h.Hostname
	}
	return ""
}

// Disagreements returns the conflict fields on which both hosts have
// non-empty, differing values. Empty-vs-set is not a disagreement: the
// merge rule fills nulls from the secondary.
func Disagreements(a, b *Host) []string {
	var fields []string
	for _, f := range []string{FieldMAC, FieldOSFamily, FieldDeviceType, FieldVendor, FieldHostname} {
		va, vb := FieldValue(a, f), FieldValue(b, f)
		if f == FieldDeviceType {
			if va == string(DeviceTypeUnknown) {
				va = ""
			}
			if vb == string(DeviceTypeUnknown) {
				vb = ""
			}
		}
		if va != "" && vb != "" && va != vb {
			fields = append(fields, f)
		}
	}
	return fields
}
