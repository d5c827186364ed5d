package domain

import "testing"

func TestInferDeviceType(t *testing.T) {
	tests := []struct {
		hostname string
		expected DeviceType
	}{
		{"core-switch-01", DeviceTypeSwitch},
		{"rtr-edge-2", DeviceTypeRouter},
		{"branch-fw", DeviceTypeFirewall},
		{"fw-dmz", DeviceTypeFirewall},
		{"printer-3f", DeviceTypePrinter},
		{"voip-lobby", DeviceTypePhone},
		{"nas-backup", DeviceTypeStorage},
		{"esx-host-4", DeviceTypeVirtual},
		{"cam-parking", DeviceTypeIoT},
		{"srv-db-01", DeviceTypeServer},
		{"GATEWAY", DeviceTypeRouter},
		{"laptop-jdoe", DeviceTypeUnknown},
		{"", DeviceTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			if got := InferDeviceType(tt.hostname); got != tt.expected {
				t.Errorf("InferDeviceType(%q) = %s, want %s", tt.hostname, got, tt.expected)
			}
		})
	}
}
