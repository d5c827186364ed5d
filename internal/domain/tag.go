package domain

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// Tag prefixes for derived correlation keys
const (
	TagPrefixIP       = "ip:"
	TagPrefixMAC      = "mac:"
	TagPrefixHostname = "hostname:"
	TagPrefixSubnet   = "subnet:"
	TagPrefixVendor   = "vendor:"
	TagPrefixPorts    = "ports:"
)

// placeholderHostnames are names that carry no identifying value and
// must not produce a hostname tag
var placeholderHostnames = map[string]bool{
	"":          true,
	"-":         true,
	"unknown":   true,
	"localhost": true,
	"localhost.localdomain": true,
}

// DeriveTags computes the canonical correlation tag set for a host from
// its current field values. Recomputing from identical inputs yields an
// identical set; callers persist the result wholesale, replacing the
// prior set.
func DeriveTags(h *Host) []string {
	var tags []string

	if h.IPv4 != "" {
		tags = append(tags, TagPrefixIP+h.IPv4)
	}
	if h.IPv6 != "" {
		tags = append(tags, TagPrefixIP+strings.ToLower(h.IPv6))
	}

	// Locally-administered (randomized) MACs never contribute a MAC tag
	if mac := NormalizeMAC(h.MAC); mac != "" && !IsLocallyAdministeredMAC(mac) {
		tags = append(tags, TagPrefixMAC+mac)
	}

	if name := normalizeHostname(h.Hostname); name != "" {
		tags = append(tags, TagPrefixHostname+name)
	}

	if subnet := SubnetFor(h); subnet != "" {
		tags = append(tags, TagPrefixSubnet+subnet)
	}

	if h.Vendor != "" {
		tags = append(tags, TagPrefixVendor+strings.ToLower(strings.TrimSpace(h.Vendor)))
	}

	if sig := PortSignature(h.OpenPorts); sig != "" {
		tags = append(tags, TagPrefixPorts+sig)
	}

	sort.Strings(tags)
	return tags
}

// SubnetFor returns the host's subnet key: the declared VLAN/subnet
// assignment when present, otherwise a /24 derived from the IPv4 address
func SubnetFor(h *Host) string {
	if h.Subnet != "" {
		if _, network, err := net.ParseCIDR(h.Subnet); err == nil {
			return network.String()
		}
		return h.Subnet
	}
	ip := net.ParseIP(h.IPv4)
	if ip == nil {
		return ""
	}
	v4 := ip.To4()
	if v4 == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d.%d.0/24", v4[0], v4[1], v4[2])
}

// PortSignature builds a stable signature string from a set of open ports
func PortSignature(ports []int) string {
	if len(ports) == 0 {
		return ""
	}
	sorted := make([]int, 0, len(ports))
	seen := make(map[int]bool, len(ports))
	for _, p := range ports {
		if p > 0 && !seen[p] {
			seen[p] = true
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return ""
	}
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ",")
}

func normalizeHostname(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if placeholderHostnames[name] {
		return ""
	}
	return name
}

// HasTag reports whether the tag set contains the exact tag
func HasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagValue returns the value of the first tag with the given prefix, or ""
func TagValue(tags []string, prefix string) string {
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			return strings.TrimPrefix(t, prefix)
		}
	}
	return ""
}
