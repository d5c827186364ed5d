package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

// ImportService turns normalized scan records into host rows. Matching
// prefers the MAC address (strong identifier) over the IP (weak, reused
// by DHCP); an ARP observation that contradicts a stored MAC creates a
// sibling record instead of overwriting, leaving the disagreement for
// the correlation engine to judge.
type ImportService struct {
	repo     repository.Store
	eventBus *EventBus
}

// NewImportService creates a new import service
func NewImportService(repo repository.Store, eventBus *EventBus) *ImportService {
	return &ImportService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// ImportResult reports what one record batch did
type ImportResult struct {
	Received int `json:"received"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// ImportRecords applies a batch of normalized records. Individual record
// failures are logged and counted, not fatal to the batch.
func (s *ImportService) ImportRecords(ctx context.Context, records []domain.NormalizedRecord) (*ImportResult, error) {
	result := &ImportResult{Received: len(records)}

	for i := range records {
		created, err := s.applyRecord(ctx, &records[i])
		if err != nil {
			log.Printf("import: skipping record %d (%s from %s): %v", i, records[i].Kind, records[i].Source, err)
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.eventBus.Publish(Event{Type: EventRecordsImported, Payload: result})
	return result, nil
}

func (s *ImportService) applyRecord(ctx context.Context, rec *domain.NormalizedRecord) (created bool, err error) {
	switch rec.Kind {
	case domain.RecordKindHost, domain.RecordKindPort, domain.RecordKindARP:
		return s.upsertHost(ctx, rec)
	case domain.RecordKindConnection:
		return s.applyConnection(ctx, rec)
	}
	return false, fmt.Errorf("unknown record kind %q", rec.Kind)
}

// upsertHost finds or creates the host a record describes and folds the
// record's fields into it
func (s *ImportService) upsertHost(ctx context.Context, rec *domain.NormalizedRecord) (bool, error) {
	if rec.IPv4 == "" && rec.IPv6 == "" && domain.NormalizeMAC(rec.MAC) == "" {
		return false, fmt.Errorf("record carries no address")
	}

	host, err := s.matchHost(ctx, rec)
	if err != nil {
		return false, err
	}

	created := false
	if host == nil {
		host = domain.NewHost(uuid.NewString())
		created = true
	}

	applyRecordFields(host, rec)

	if created {
		host.Tags = domain.DeriveTags(host)
		if err := s.repo.CreateHost(ctx, host); err != nil {
			return false, err
		}
		s.eventBus.Publish(Event{
			Type:    EventHostCreated,
			Payload: map[string]string{"host_id": host.ID, "source": rec.Source},
		})
		return true, nil
	}

	if err := s.repo.UpdateHost(ctx, host); err != nil {
		return false, err
	}
	if err := s.repo.ReplaceHostTags(ctx, host.ID, domain.DeriveTags(host)); err != nil {
		return false, err
	}
	if err := s.repo.ReplaceHostSources(ctx, host.ID, host.Sources); err != nil {
		return false, err
	}
	s.eventBus.Publish(Event{
		Type:    EventHostUpdated,
		Payload: map[string]string{"host_id": host.ID, "source": rec.Source},
	})
	return false, nil
}

// matchHost resolves a record to an existing host. MAC matches win over
// IP matches; an IP match whose stored MAC contradicts the record's MAC
// is rejected so the caller creates a sibling record.
func (s *ImportService) matchHost(ctx context.Context, rec *domain.NormalizedRecord) (*domain.Host, error) {
	if mac := domain.NormalizeMAC(rec.MAC); mac != "" && !domain.IsLocallyAdministeredMAC(mac) {
		hosts, err := s.repo.FindActiveByMAC(ctx, mac)
		if err != nil {
			return nil, err
		}
		if len(hosts) > 0 {
			return s.preferIP(hosts, rec), nil
		}
	}

	for _, ip := range []string{rec.IPv4, rec.IPv6} {
		if ip == "" {
			continue
		}
		hosts, err := s.repo.FindActiveByIP(ctx, ip)
		if err != nil {
			return nil, err
		}
		recMAC := domain.NormalizeMAC(rec.MAC)
		for i := range hosts {
			storedMAC := domain.NormalizeMAC(hosts[i].MAC)
			if recMAC != "" && storedMAC != "" && recMAC != storedMAC {
				continue
			}
			return &hosts[i], nil
		}
	}
	return nil, nil
}

// preferIP picks the MAC-matched host that also shares the record's IP,
// falling back to the first match
func (s *ImportService) preferIP(hosts []domain.Host, rec *domain.NormalizedRecord) *domain.Host {
	for i := range hosts {
		if (rec.IPv4 != "" && hosts[i].IPv4 == rec.IPv4) ||
			(rec.IPv6 != "" && hosts[i].IPv6 == rec.IPv6) {
			return &hosts[i]
		}
	}
	return &hosts[0]
}

// applyConnection ensures both endpoints of an observed connection exist
// as (possibly minimal) host records
func (s *ImportService) applyConnection(ctx context.Context, rec *domain.NormalizedRecord) (bool, error) {
	if rec.IPv4 == "" || rec.RemoteIPv4 == "" {
		return false, fmt.Errorf("connection record needs both endpoints")
	}

	local := *rec
	local.Kind = domain.RecordKindHost
	createdLocal, err := s.upsertHost(ctx, &local)
	if err != nil {
		return false, err
	}

	remote := domain.NormalizedRecord{
		Kind:       domain.RecordKindHost,
		Source:     rec.Source,
		IPv4:       rec.RemoteIPv4,
		ObservedAt: rec.ObservedAt,
	}
	if rec.RemotePort > 0 {
		remote.Port = rec.RemotePort
	}
	createdRemote, err := s.upsertHost(ctx, &remote)
	if err != nil {
		return false, err
	}

	return createdLocal || createdRemote, nil
}

// applyRecordFields folds a record's observations into a host, filling
// empty fields and never overwriting a stored MAC
func applyRecordFields(h *domain.Host, rec *domain.NormalizedRecord) {
	fill(&h.IPv4, rec.IPv4)
	fill(&h.IPv6, rec.IPv6)
	if mac := domain.NormalizeMAC(rec.MAC); mac != "" && domain.NormalizeMAC(h.MAC) == "" {
		h.MAC = mac
	}
	fill(&h.Hostname, rec.Hostname)
	fill(&h.FQDN, rec.FQDN)
	fill(&h.NetBIOS, rec.NetBIOS)
	fill(&h.Vendor, rec.Vendor)
	fill(&h.Subnet, rec.Subnet)

	fill(&h.OS.Name, rec.OS.Name)
	fill(&h.OS.Version, rec.OS.Version)
	fill(&h.OS.Family, rec.OS.Family)
	if rec.OS.Confidence > h.OS.Confidence {
		h.OS.Confidence = rec.OS.Confidence
	}

	if rec.DeviceType != "" && rec.DeviceType != domain.DeviceTypeUnknown {
		if h.DeviceType == "" || h.DeviceType == domain.DeviceTypeUnknown {
			h.DeviceType = rec.DeviceType
		}
	}

	if rec.Port > 0 && !hasPort(h.OpenPorts, rec.Port) {
		h.OpenPorts = append(h.OpenPorts, rec.Port)
	}

	h.AddSource(rec.Source)

	observed := time.Now().UTC()
	if rec.ObservedAt != nil {
		observed = *rec.ObservedAt
	}
	h.Seen(observed)
	h.UpdatedAt = time.Now().UTC()
}

func fill(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func hasPort(ports []int, port int) bool {
	for _, p := range ports {
		if p == port {
			return true
		}
	}
	return false
}
