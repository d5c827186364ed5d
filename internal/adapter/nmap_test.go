package adapter

import (
	"testing"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"hostfold/internal/domain"
)

func TestRecordsFromRun(t *testing.T) {
	observed := time.Date(2026, 8, 16, 12, 0, 0, 0, time.UTC)

	run := &nmap.Run{
		Hosts: []nmap.Host{
			{
				Status: nmap.Status{State: "up"},
				Addresses: []nmap.Address{
					{Addr: "192.168.1.30", AddrType: "ipv4"},
					{Addr: "AA:BB:CC:DD:EE:30", AddrType: "mac", Vendor: "Cisco Systems"},
				},
				Hostnames: []nmap.Hostname{
					{Name: "sw-floor2.corp.example", Type: "PTR"},
				},
				OS: nmap.OS{
					Matches: []nmap.OSMatch{
						{
							Name:     "Cisco IOS 15.2",
							Accuracy: 92,
							Classes: []nmap.OSClass{
								{Family: "IOS", Vendor: "Cisco"},
							},
						},
					},
				},
				Ports: []nmap.Port{
					{ID: 22, Protocol: "tcp", State: nmap.State{State: "open"}},
					{ID: 23, Protocol: "tcp", State: nmap.State{State: "closed"}},
					{ID: 443, Protocol: "tcp", State: nmap.State{State: "open"}},
				},
			},
			{
				Status: nmap.Status{State: "down"},
				Addresses: []nmap.Address{
					{Addr: "192.168.1.31", AddrType: "ipv4"},
				},
			},
		},
	}

	records := recordsFromRun(run, observed)

	// One host record plus two open-port records; the down host dropped
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	host := records[0]
	if host.Kind != domain.RecordKindHost || host.Source != "nmap" {
		t.Errorf("unexpected host record header: %+v", host)
	}
	if host.IPv4 != "192.168.1.30" {
		t.Errorf("expected ipv4 address, got %q", host.IPv4)
	}
	if host.MAC != "AA:BB:CC:DD:EE:30" || host.Vendor != "Cisco Systems" {
		t.Errorf("expected mac and vendor from address, got %q / %q", host.MAC, host.Vendor)
	}
	if host.Hostname != "sw-floor2.corp.example" || host.FQDN != "sw-floor2.corp.example" {
		t.Errorf("unexpected names: hostname=%q fqdn=%q", host.Hostname, host.FQDN)
	}
	if host.OS.Name != "Cisco IOS 15.2" || host.OS.Family != "ios" {
		t.Errorf("unexpected OS: %+v", host.OS)
	}
	if host.OS.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", host.OS.Confidence)
	}
	if host.ObservedAt == nil || !host.ObservedAt.Equal(observed) {
		t.Errorf("expected observed time, got %v", host.ObservedAt)
	}

	ports := map[int]bool{}
	for _, rec := range records[1:] {
		if rec.Kind != domain.RecordKindPort {
			t.Errorf("expected port record, got %s", rec.Kind)
		}
		if rec.IPv4 != "192.168.1.30" {
			t.Errorf("port record missing address: %+v", rec)
		}
		ports[rec.Port] = true
	}
	if !ports[22] || !ports[443] || len(ports) != 2 {
		t.Errorf("expected open ports 22 and 443, got %v", ports)
	}
}

func TestRecordsFromRunEmptyHost(t *testing.T) {
	run := &nmap.Run{
		Hosts: []nmap.Host{
			{Status: nmap.Status{State: "up"}}, // no addresses
		},
	}
	if records := recordsFromRun(run, time.Now()); len(records) != 0 {
		t.Errorf("addressless host must produce no records, got %v", records)
	}
}
