package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

// ScoringConfig holds the tag-similarity weights and decision thresholds
// for the third correlation phase
type ScoringConfig struct {
	// AutoMergeThreshold is the minimum score for an unattended merge
	AutoMergeThreshold float64 `yaml:"auto_merge_threshold"`
	// ReviewThreshold is the minimum score for raising a conflict;
	// pairs below it are ignored
	ReviewThreshold float64 `yaml:"review_threshold"`

	WeightHostname  float64 `yaml:"weight_hostname"`
	WeightMACPrefix float64 `yaml:"weight_mac_prefix"`
	WeightPorts     float64 `yaml:"weight_ports"`
	WeightSubnet    float64 `yaml:"weight_subnet"`
	WeightVendor    float64 `yaml:"weight_vendor"`
}

// DefaultScoringConfig returns the stock weights and thresholds
func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		AutoMergeThreshold: 0.75,
		ReviewThreshold:    0.50,
		WeightHostname:     0.40,
		WeightMACPrefix:    0.25,
		WeightPorts:        0.20,
		WeightSubnet:       0.15,
		WeightVendor:       0.10,
	}
}

// CorrelationService runs the three-phase host correlation engine
type CorrelationService struct {
	repo     repository.Store
	eventBus *EventBus
	scoring  ScoringConfig
	lock     *RunLock
}

// NewCorrelationService creates a new correlation service
func NewCorrelationService(repo repository.Store, eventBus *EventBus, scoring ScoringConfig) *CorrelationService {
	if scoring.AutoMergeThreshold <= 0 {
		scoring = DefaultScoringConfig()
	}
	return &CorrelationService{
		repo:     repo,
		eventBus: eventBus,
		scoring:  scoring,
		lock:     &RunLock{},
	}
}

// Active reports whether a run is currently in progress
func (s *CorrelationService) Active() bool {
	return s.lock.Active()
}

// ListRuns returns recent run summaries, newest first
func (s *CorrelationService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	return s.repo.ListRunSummaries(ctx, limit)
}

// Run executes one full correlation pass: exact-IP merging, MAC-based
// device identity linking, then tag-similarity scoring. Returns
// ErrRunActive when another run holds the lock. Re-running over an
// already-correlated database finds no new work and reports zero counts.
func (s *CorrelationService) Run(ctx context.Context) (*domain.RunSummary, error) {
	if !s.lock.TryAcquire() {
		return nil, ErrRunActive
	}
	defer s.lock.Release()

	summary := &domain.RunSummary{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	if err := s.repo.SaveRunSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	s.eventBus.Publish(Event{
		Type:    EventRunStarted,
		Payload: map[string]string{"run_id": summary.ID},
	})

	if err := s.phaseIPMerge(ctx, summary); err != nil {
		return nil, fmt.Errorf("ip merge phase: %w", err)
	}
	if err := s.phaseDeviceIdentity(ctx, summary); err != nil {
		return nil, fmt.Errorf("device identity phase: %w", err)
	}
	if err := s.phaseTagSimilarity(ctx, summary); err != nil {
		return nil, fmt.Errorf("tag similarity phase: %w", err)
	}

	finished := time.Now().UTC()
	summary.FinishedAt = &finished
	if err := s.repo.SaveRunSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("failed to record run finish: %w", err)
	}

	log.Printf("correlation run %s: examined=%d merged=%d identities=%d conflicts=%d skipped=%d",
		summary.ID, summary.HostsExamined, summary.HostsMerged,
		summary.DeviceIdentitiesCreated, summary.ConflictsRaised, summary.PairsSkipped)

	s.eventBus.Publish(Event{Type: EventRunFinished, Payload: summary})
	return summary, nil
}

// phaseIPMerge folds together active hosts that share an exact IP
// address and do not disagree on MAC. Two records on the same IP with
// different MACs are distinct devices (address reuse) and are left for
// the later phases to judge.
func (s *CorrelationService) phaseIPMerge(ctx context.Context, summary *domain.RunSummary) error {
	hosts, err := s.repo.ListActiveHosts(ctx)
	if err != nil {
		return err
	}
	summary.HostsExamined = len(hosts)

	byID := make(map[string]*domain.Host, len(hosts))
	for i := range hosts {
		byID[hosts[i].ID] = &hosts[i]
	}

	groups := make(map[string][]string)
	for i := range hosts {
		if ip := hosts[i].IPv4; ip != "" {
			groups[ip] = append(groups[ip], hosts[i].ID)
		}
		if ip := strings.ToLower(hosts[i].IPv6); ip != "" {
			groups[ip] = append(groups[ip], hosts[i].ID)
		}
	}

	ips := make([]string, 0, len(groups))
	for ip := range groups {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	merged := make(map[string]bool)
	for _, ip := range ips {
		ids := groups[ip]
		if len(ids) < 2 {
			continue
		}

		var current *domain.Host
		for _, id := range ids {
			candidate := byID[id]
			if merged[candidate.ID] {
				continue
			}
			if current == nil || current.ID == candidate.ID {
				current = candidate
				continue
			}

			macA, macB := domain.NormalizeMAC(current.MAC), domain.NormalizeMAC(candidate.MAC)
			if macA != "" && macB != "" && macA != macB {
				summary.PairsSkipped++
				continue
			}

			plan, err := domain.BuildMergePlan(current, candidate, nil)
			if err != nil {
				log.Printf("ip merge: skipping %s + %s: %v", current.ID, candidate.ID, err)
				summary.PairsSkipped++
				continue
			}
			if err := s.applyPlan(ctx, plan); err != nil {
				log.Printf("ip merge: failed to apply %s + %s: %v", plan.PrimaryID, plan.SecondaryID, err)
				summary.PairsSkipped++
				continue
			}

			summary.HostsMerged++
			merged[plan.SecondaryID] = true
			*byID[plan.PrimaryID] = plan.Primary
			byID[plan.PrimaryID].Tags = plan.Tags
			byID[plan.PrimaryID].Sources = plan.Sources
			current = byID[plan.PrimaryID]
		}
	}
	return nil
}

// phaseDeviceIdentity links hosts that share a MAC address across
// distinct subnets under one DeviceIdentity. Linking never merges or
// deactivates: each host is a legitimate per-subnet view of one device.
func (s *CorrelationService) phaseDeviceIdentity(ctx context.Context, summary *domain.RunSummary) error {
	hosts, err := s.repo.ListActiveHosts(ctx)
	if err != nil {
		return err
	}

	byMAC := make(map[string][]*domain.Host)
	for i := range hosts {
		mac := domain.NormalizeMAC(hosts[i].MAC)
		if mac == "" || domain.IsLocallyAdministeredMAC(mac) {
			continue
		}
		byMAC[mac] = append(byMAC[mac], &hosts[i])
	}

	macs := make([]string, 0, len(byMAC))
	for mac := range byMAC {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	for _, mac := range macs {
		group := byMAC[mac]
		if len(group) < 2 || countSubnets(group) < 2 {
			continue
		}

		identity, err := s.repo.GetDeviceIdentityByMAC(ctx, mac)
		if err != nil {
			return err
		}
		if identity == nil {
			identity = &domain.DeviceIdentity{
				ID:         uuid.NewString(),
				MAC:        mac,
				DeviceType: inferGroupType(group),
				Vendor:     firstVendor(group),
			}
			if err := s.repo.CreateDeviceIdentity(ctx, identity); err != nil {
				return fmt.Errorf("failed to create device identity for %s: %w", mac, err)
			}
			summary.DeviceIdentitiesCreated++
			s.eventBus.Publish(Event{
				Type:    EventDeviceCreated,
				Payload: map[string]string{"device_id": identity.ID, "mac": mac},
			})
		}

		for _, h := range group {
			if h.DeviceIdentityID == identity.ID {
				continue
			}
			if h.DeviceIdentityID != "" {
				log.Printf("device identity: host %s already linked to %s, leaving", h.ID, h.DeviceIdentityID)
				continue
			}
			if err := s.repo.LinkHost(ctx, identity.ID, h.ID); err != nil {
				log.Printf("device identity: failed to link %s to %s: %v", h.ID, identity.ID, err)
				continue
			}
			h.DeviceIdentityID = identity.ID
			s.eventBus.Publish(Event{
				Type:    EventDeviceLinked,
				Payload: map[string]string{"device_id": identity.ID, "host_id": h.ID},
			})
		}
	}
	return nil
}

// phaseTagSimilarity scores every remaining active pair on shared
// correlation tags. High scores with no field disagreement merge
// unattended; contested or mid-band pairs raise conflicts for review.
func (s *CorrelationService) phaseTagSimilarity(ctx context.Context, summary *domain.RunSummary) error {
	hosts, err := s.repo.ListActiveHosts(ctx)
	if err != nil {
		return err
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].ID < hosts[j].ID })
	merged := make(map[string]bool)

	for i := range hosts {
		if merged[hosts[i].ID] {
			continue
		}
		for j := i + 1; j < len(hosts); j++ {
			a, b := &hosts[i], &hosts[j]
			if merged[a.ID] {
				break
			}
			if merged[b.ID] {
				continue
			}
			// Identity-linked hosts are intentionally separate per-subnet
			// records of known devices; only explicit unlink may change
			// their grouping, so they are out of scope here
			if a.DeviceIdentityID != "" || b.DeviceIdentityID != "" {
				continue
			}

			score := s.scorePair(a, b)
			if score < s.scoring.ReviewThreshold {
				continue
			}

			disagreements := domain.Disagreements(a, b)
			if score >= s.scoring.AutoMergeThreshold && len(disagreements) == 0 {
				plan, err := domain.BuildMergePlan(a, b, nil)
				if err != nil {
					log.Printf("similarity merge: skipping %s + %s: %v", a.ID, b.ID, err)
					summary.PairsSkipped++
					continue
				}
				if err := s.applyPlan(ctx, plan); err != nil {
					log.Printf("similarity merge: failed to apply %s + %s: %v", plan.PrimaryID, plan.SecondaryID, err)
					summary.PairsSkipped++
					continue
				}
				summary.HostsMerged++
				merged[plan.SecondaryID] = true
				if plan.PrimaryID == a.ID {
					*a = plan.Primary
					a.Tags, a.Sources = plan.Tags, plan.Sources
				} else {
					*b = plan.Primary
					b.Tags, b.Sources = plan.Tags, plan.Sources
				}
				continue
			}

			if len(disagreements) == 0 {
				// Mid-band agreement with nothing contested: not enough
				// evidence to act on
				summary.PairsSkipped++
				continue
			}

			raised, err := s.raiseConflicts(ctx, a, b, disagreements, score)
			if err != nil {
				log.Printf("similarity review: failed to record conflicts for %s + %s: %v", a.ID, b.ID, err)
				summary.PairsSkipped++
				continue
			}
			summary.ConflictsRaised += raised
		}
	}
	return nil
}

// scorePair computes the weighted tag-overlap score, capped at 1.0
func (s *CorrelationService) scorePair(a, b *domain.Host) float64 {
	tagsA, tagsB := domain.DeriveTags(a), domain.DeriveTags(b)
	score := 0.0

	if sharesTag(tagsA, tagsB, domain.TagPrefixHostname) {
		score += s.scoring.WeightHostname
	}
	prefixA, prefixB := domain.MACPrefix(a.MAC), domain.MACPrefix(b.MAC)
	if prefixA != "" && prefixA == prefixB &&
		!domain.IsLocallyAdministeredMAC(a.MAC) && !domain.IsLocallyAdministeredMAC(b.MAC) {
		score += s.scoring.WeightMACPrefix
	}
	if sharesTag(tagsA, tagsB, domain.TagPrefixPorts) {
		score += s.scoring.WeightPorts
	}
	if sharesTag(tagsA, tagsB, domain.TagPrefixSubnet) {
		score += s.scoring.WeightSubnet
	}
	if sharesTag(tagsA, tagsB, domain.TagPrefixVendor) {
		score += s.scoring.WeightVendor
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// raiseConflicts records one pending conflict per disagreement field,
// skipping disagreements that already have an open conflict
func (s *CorrelationService) raiseConflicts(ctx context.Context, a, b *domain.Host, fields []string, score float64) (int, error) {
	raised := 0
	for _, field := range fields {
		existing, err := s.repo.FindPendingConflict(ctx, a.ID, b.ID, field)
		if err != nil {
			return raised, err
		}
		if existing != nil {
			continue
		}

		conflict := &domain.Conflict{
			ID:         uuid.NewString(),
			HostAID:    a.ID,
			HostBID:    b.ID,
			Field:      field,
			ValueA:     domain.FieldValue(a, field),
			ValueB:     domain.FieldValue(b, field),
			Score:      score,
			Status:     domain.ConflictStatusPending,
			DetectedAt: time.Now().UTC(),
		}
		if err := s.repo.CreateConflict(ctx, conflict); err != nil {
			return raised, err
		}
		raised++

		s.eventBus.Publish(Event{
			Type: EventConflictRaised,
			Payload: map[string]interface{}{
				"conflict_id": conflict.ID,
				"host_a_id":   a.ID,
				"host_b_id":   b.ID,
				"field":       field,
				"score":       score,
			},
		})
	}
	return raised, nil
}

// applyPlan commits a merge plan and closes any open conflicts the
// merged pair had
func (s *CorrelationService) applyPlan(ctx context.Context, plan *domain.MergePlan) error {
	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		return err
	}
	if err := s.repo.ResolvePendingForPair(ctx, plan.PrimaryID, plan.SecondaryID, domain.ResolutionSuperseded); err != nil {
		log.Printf("merge: failed to close pair conflicts for %s + %s: %v", plan.PrimaryID, plan.SecondaryID, err)
	}
	s.eventBus.Publish(Event{
		Type: EventHostsMerged,
		Payload: map[string]string{
			"primary_id":   plan.PrimaryID,
			"secondary_id": plan.SecondaryID,
		},
	})
	return nil
}

func sharesTag(tagsA, tagsB []string, prefix string) bool {
	va, vb := domain.TagValue(tagsA, prefix), domain.TagValue(tagsB, prefix)
	return va != "" && va == vb
}

func countSubnets(group []*domain.Host) int {
	seen := make(map[string]bool)
	for _, h := range group {
		if subnet := domain.SubnetFor(h); subnet != "" {
			seen[subnet] = true
		}
	}
	return len(seen)
}

func inferGroupType(group []*domain.Host) domain.DeviceType {
	for _, h := range group {
		if h.DeviceType != "" && h.DeviceType != domain.DeviceTypeUnknown {
			return h.DeviceType
		}
	}
	for _, h := range group {
		if t := domain.InferDeviceType(h.Hostname); t != domain.DeviceTypeUnknown {
			return t
		}
	}
	return domain.DeviceTypeUnknown
}

func firstVendor(group []*domain.Host) string {
	for _, h := range group {
		if h.Vendor != "" {
			return h.Vendor
		}
	}
	return ""
}
