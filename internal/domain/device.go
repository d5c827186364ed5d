package domain

import (
	"strings"
	"time"
)

// DeviceIdentity represents one physical device with interfaces on
// multiple subnets, identified by a shared MAC address. Linking is
// additive: the underlying Host rows stay intact and active, each
// pointing at the identity through DeviceIdentityID.
type DeviceIdentity struct {
	ID         string     `json:"id"`
	MAC        string     `json:"mac"`
	DeviceType DeviceType `json:"device_type"`
	Vendor     string     `json:"vendor,omitempty"`
	// HostIDs lists linked hosts in link order
	HostIDs   []string  `json:"host_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// deviceTypePatterns maps hostname substrings to inferred device types.
// Checked in order; first match wins.
var deviceTypePatterns = []struct {
	substr string
	dtype  DeviceType
}{
	{"firewall", DeviceTypeFirewall},
	{"fw-", DeviceTypeFirewall},
	{"-fw", DeviceTypeFirewall},
	{"pfsense", DeviceTypeFirewall},
	{"switch", DeviceTypeSwitch},
	{"-sw", DeviceTypeSwitch},
	{"sw-", DeviceTypeSwitch},
	{"router", DeviceTypeRouter},
	{"rtr", DeviceTypeRouter},
	{"gateway", DeviceTypeRouter},
	{"gw-", DeviceTypeRouter},
	{"-gw", DeviceTypeRouter},
	{"printer", DeviceTypePrinter},
	{"print", DeviceTypePrinter},
	{"mfp", DeviceTypePrinter},
	{"phone", DeviceTypePhone},
	{"voip", DeviceTypePhone},
	{"sip-", DeviceTypePhone},
	{"nas", DeviceTypeStorage},
	{"storage", DeviceTypeStorage},
	{"san-", DeviceTypeStorage},
	{"esx", DeviceTypeVirtual},
	{"hyperv", DeviceTypeVirtual},
	{"vm-", DeviceTypeVirtual},
	{"iot", DeviceTypeIoT},
	{"sensor", DeviceTypeIoT},
	{"cam-", DeviceTypeIoT},
	{"camera", DeviceTypeIoT},
	{"srv", DeviceTypeServer},
	{"server", DeviceTypeServer},
}

// InferDeviceType guesses a device type from hostname substring patterns,
// defaulting to unknown
func InferDeviceType(hostname string) DeviceType {
	name := strings.ToLower(strings.TrimSpace(hostname))
	if name == "" {
		return DeviceTypeUnknown
	}
	for _, p := range deviceTypePatterns {
		if strings.Contains(name, p.substr) {
			return p.dtype
		}
	}
	return DeviceTypeUnknown
}
