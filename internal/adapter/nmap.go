package adapter

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"

	"hostfold/internal/domain"
)

// NmapScanner runs nmap against configured targets and converts the
// results into normalized records for import
type NmapScanner struct {
	targets          []string
	portRange        string
	serviceDetection bool
	osDetection      bool
	timeout          time.Duration
}

// NmapOption configures an NmapScanner
type NmapOption func(*NmapScanner)

// WithPortRange sets the ports nmap probes
func WithPortRange(ports string) NmapOption {
	return func(s *NmapScanner) { s.portRange = ports }
}

// WithServiceDetection toggles service/version probing
func WithServiceDetection(enabled bool) NmapOption {
	return func(s *NmapScanner) { s.serviceDetection = enabled }
}

// WithOSDetection toggles OS fingerprinting (requires root)
func WithOSDetection(enabled bool) NmapOption {
	return func(s *NmapScanner) { s.osDetection = enabled }
}

// WithTimeout sets the overall scan deadline
func WithTimeout(d time.Duration) NmapOption {
	return func(s *NmapScanner) { s.timeout = d }
}

// NewNmapScanner creates a scanner for the given CIDR ranges or IPs
func NewNmapScanner(targets []string, opts ...NmapOption) *NmapScanner {
	s := &NmapScanner{
		targets:   targets,
		portRange: "22,25,53,80,443,445,3389,5432,5900,8080,8443,9100",
		timeout:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one nmap pass over all targets and returns the normalized
// records it produced
func (s *NmapScanner) Scan(ctx context.Context) ([]domain.NormalizedRecord, error) {
	if len(s.targets) == 0 {
		return nil, nil
	}

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	options := []nmap.Option{
		nmap.WithTargets(s.targets...),
		nmap.WithPorts(s.portRange),
	}
	if s.serviceDetection {
		options = append(options, nmap.WithServiceInfo())
	}
	if s.osDetection {
		options = append(options, nmap.WithOSDetection())
	}

	scanner, err := nmap.NewScanner(scanCtx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create nmap scanner: %w", err)
	}

	log.Printf("Nmap: scanning %d targets: %v", len(s.targets), s.targets)
	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		log.Printf("Nmap: warnings: %v", *warnings)
	}
	if err != nil {
		return nil, fmt.Errorf("nmap scan failed: %w", err)
	}

	records := recordsFromRun(result, time.Now().UTC())
	log.Printf("Nmap: scan produced %d records from %d hosts", len(records), len(result.Hosts))
	return records, nil
}

// recordsFromRun converts an nmap result into normalized records: one
// host record per live host plus one port record per open port
func recordsFromRun(run *nmap.Run, observed time.Time) []domain.NormalizedRecord {
	var records []domain.NormalizedRecord

	for i := range run.Hosts {
		host := &run.Hosts[i]
		if host.Status.State != "up" {
			continue
		}

		rec := domain.NormalizedRecord{
			Kind:       domain.RecordKindHost,
			Source:     "nmap",
			ObservedAt: &observed,
		}

		for _, addr := range host.Addresses {
			switch addr.AddrType {
			case "ipv4":
				rec.IPv4 = addr.Addr
			case "ipv6":
				rec.IPv6 = addr.Addr
			case "mac":
				rec.MAC = addr.Addr
				rec.Vendor = addr.Vendor
			}
		}
		if rec.IPv4 == "" && rec.IPv6 == "" {
			continue
		}

		for _, name := range host.Hostnames {
			if rec.Hostname == "" {
				rec.Hostname = name.Name
			}
			if strings.Contains(name.Name, ".") && rec.FQDN == "" {
				rec.FQDN = name.Name
			}
		}

		if len(host.OS.Matches) > 0 {
			best := host.OS.Matches[0]
			rec.OS.Name = best.Name
			rec.OS.Confidence = float64(best.Accuracy) / 100.0
			if len(best.Classes) > 0 {
				rec.OS.Family = strings.ToLower(best.Classes[0].Family)
				if rec.Vendor == "" {
					rec.Vendor = best.Classes[0].Vendor
				}
			}
		}

		records = append(records, rec)

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			records = append(records, domain.NormalizedRecord{
				Kind:       domain.RecordKindPort,
				Source:     "nmap",
				IPv4:       rec.IPv4,
				IPv6:       rec.IPv6,
				MAC:        rec.MAC,
				Port:       int(port.ID),
				Protocol:   port.Protocol,
				ObservedAt: &observed,
			})
		}
	}

	return records
}
