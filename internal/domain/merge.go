package domain

import (
	"fmt"
	"time"
)

// MergePlan describes the full effect of folding a secondary host into a
// primary: the updated primary value, the unioned tag and source sets,
// and the deactivation of the secondary. Plans are built purely from two
// host values; the repository applies them in a single transaction.
type MergePlan struct {
	PrimaryID   string
	SecondaryID string

	// Primary is the post-merge value of the surviving host
	Primary Host
	// Tags and Sources are the unioned sets persisted for the primary
	Tags    []string
	Sources []string

	// RelinkIdentity is set when the secondary's DeviceIdentity link
	// moves onto the primary
	RelinkIdentity string
}

// ChoosePrimary picks the surviving record of a merge pair: the host with
// the later last_seen, tie-broken by more populated fields, then by id
// for determinism
func ChoosePrimary(a, b *Host) (primary, secondary *Host) {
	switch {
	case a.LastSeen != nil && b.LastSeen == nil:
		return a, b
	case a.LastSeen == nil && b.LastSeen != nil:
		return b, a
	case a.LastSeen != nil && b.LastSeen != nil && !a.LastSeen.Equal(*b.LastSeen):
		if a.LastSeen.After(*b.LastSeen) {
			return a, b
		}
		return b, a
	}
	if pa, pb := a.PopulatedFields(), b.PopulatedFields(); pa != pb {
		if pa > pb {
			return a, b
		}
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}

// BuildMergePlan computes the merge of two hosts. Overrides map conflict
// field names to the value the merged record must carry (used when a
// resolved Conflict dictates the outcome).
//
// A plan is refused when both hosts carry different non-empty MACs and no
// mac override settles the disagreement: a merge must never silently
// overwrite one MAC with another.
func BuildMergePlan(a, b *Host, overrides map[string]string) (*MergePlan, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("merge requires two hosts")
	}
	if a.ID == b.ID {
		return nil, fmt.Errorf("cannot merge host %s with itself", a.ID)
	}

	macA, macB := NormalizeMAC(a.MAC), NormalizeMAC(b.MAC)
	if macA != "" && macB != "" && macA != macB {
		if _, ok := overrides[FieldMAC]; !ok {
			return nil, fmt.Errorf("hosts %s and %s disagree on mac (%s vs %s)", a.ID, b.ID, macA, macB)
		}
	}

	primary, secondary := ChoosePrimary(a, b)
	merged := *primary

	// Copy any null field on the primary from the secondary
	fillString(&merged.IPv4, secondary.IPv4)
	fillString(&merged.IPv6, secondary.IPv6)
	fillString(&merged.MAC, secondary.MAC)
	fillString(&merged.Hostname, secondary.Hostname)
	fillString(&merged.FQDN, secondary.FQDN)
	fillString(&merged.NetBIOS, secondary.NetBIOS)
	fillString(&merged.Vendor, secondary.Vendor)
	fillString(&merged.Subnet, secondary.Subnet)
	fillString(&merged.OS.Name, secondary.OS.Name)
	fillString(&merged.OS.Version, secondary.OS.Version)
	fillString(&merged.OS.Family, secondary.OS.Family)
	if merged.OS.Confidence == 0 {
		merged.OS.Confidence = secondary.OS.Confidence
	}
	if merged.DeviceType == "" || merged.DeviceType == DeviceTypeUnknown {
		if secondary.DeviceType != "" {
			merged.DeviceType = secondary.DeviceType
		}
	}
	merged.OpenPorts = unionPorts(primary.OpenPorts, secondary.OpenPorts)

	// Widen the seen window to cover both records
	if secondary.FirstSeen != nil {
		merged.Seen(*secondary.FirstSeen)
	}
	if secondary.LastSeen != nil {
		merged.Seen(*secondary.LastSeen)
	}

	// Apply resolved-conflict overrides last so they win over the
	// normal fill rules
	for field, value := range overrides {
		applyOverride(&merged, field, value)
	}

	plan := &MergePlan{
		PrimaryID:   primary.ID,
		SecondaryID: secondary.ID,
		Sources:     unionStrings(primary.Sources, secondary.Sources),
	}

	// Repoint the secondary's DeviceIdentity link onto the primary.
	// If both belong to identities, the primary's link stands.
	if merged.DeviceIdentityID == "" && secondary.DeviceIdentityID != "" {
		merged.DeviceIdentityID = secondary.DeviceIdentityID
		plan.RelinkIdentity = secondary.DeviceIdentityID
	}

	merged.Active = true
	merged.MergedInto = ""
	merged.UpdatedAt = time.Now()

	plan.Primary = merged
	plan.Tags = DeriveTags(&merged)
	return plan, nil
}

func applyOverride(h *Host, field, value string) {
	switch field {
	case FieldMAC:
		h.MAC = NormalizeMAC(value)
	case FieldOSFamily:
		h.OS.Family = value
	case FieldDeviceType:
		h.DeviceType = DeviceType(value)
	case FieldVendor:
		h.Vendor = value
	case FieldHostname:
		h.Hostname = value
	}
}

func fillString(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func unionPorts(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, p := range append(append([]int{}, a...), b...) {
		if p > 0 && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
