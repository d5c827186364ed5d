package service

import (
	"context"
	"fmt"
	"time"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

// HostService provides business logic for host record operations
type HostService struct {
	repo     repository.Store
	eventBus *EventBus
}

// NewHostService creates a new host service
func NewHostService(repo repository.Store, eventBus *EventBus) *HostService {
	return &HostService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// List returns hosts, optionally including merged-away records
func (s *HostService) List(ctx context.Context, includeInactive bool) ([]domain.Host, error) {
	return s.repo.ListHosts(ctx, includeInactive)
}

// Get retrieves a single host by ID
func (s *HostService) Get(ctx context.Context, id string) (*domain.Host, error) {
	return s.repo.GetHost(ctx, id)
}

// Merge folds the secondary host into the caller-chosen primary. Unlike
// engine merges the survivor is not picked by recency: the caller's
// choice stands, and when the pair disagrees on MAC the primary's MAC
// wins.
func (s *HostService) Merge(ctx context.Context, primaryID, secondaryID string) (*domain.Host, error) {
	primary, err := s.repo.GetHost(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		return nil, fmt.Errorf("host %s not found", primaryID)
	}
	secondary, err := s.repo.GetHost(ctx, secondaryID)
	if err != nil {
		return nil, err
	}
	if secondary == nil {
		return nil, fmt.Errorf("host %s not found", secondaryID)
	}
	if !primary.Active || primary.MergedInto != "" || !secondary.Active || secondary.MergedInto != "" {
		return nil, fmt.Errorf("merge %s + %s: %w", primaryID, secondaryID, ErrStateConflict)
	}

	overrides := map[string]string{}
	macP, macS := domain.NormalizeMAC(primary.MAC), domain.NormalizeMAC(secondary.MAC)
	if macP != "" && macS != "" && macP != macS {
		overrides[domain.FieldMAC] = macP
	}

	plan, err := domain.BuildMergePlan(primary, secondary, overrides)
	if err != nil {
		return nil, err
	}
	if plan.PrimaryID != primaryID {
		// ChoosePrimary preferred the other record; flip the plan to
		// honor the caller's choice by rebuilding with swapped roles
		plan, err = buildDirectedPlan(primary, secondary, overrides)
		if err != nil {
			return nil, err
		}
	}

	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		return nil, err
	}
	if err := s.repo.ResolvePendingForPair(ctx, primaryID, secondaryID, domain.ResolutionSuperseded); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type: EventHostsMerged,
		Payload: map[string]string{
			"primary_id":   primaryID,
			"secondary_id": secondaryID,
		},
	})
	return s.repo.GetHost(ctx, primaryID)
}

// buildDirectedPlan forces the merge direction by boosting the chosen
// primary's recency before planning, then restoring its real window
func buildDirectedPlan(primary, secondary *domain.Host, overrides map[string]string) (*domain.MergePlan, error) {
	boosted := *primary
	later := time.Now().UTC()
	if secondary.LastSeen != nil {
		later = secondary.LastSeen.Add(time.Nanosecond)
	}
	boosted.LastSeen = &later
	plan, err := domain.BuildMergePlan(&boosted, secondary, overrides)
	if err != nil {
		return nil, err
	}
	plan.Primary.LastSeen = primary.LastSeen
	if secondary.LastSeen != nil {
		plan.Primary.Seen(*secondary.LastSeen)
	}
	return plan, nil
}

// UnifiedView is the full picture of one device record: the host, its
// device identity with sibling records on other subnets, and the
// records that were merged into it
type UnifiedView struct {
	Host       domain.Host            `json:"host"`
	Identity   *domain.DeviceIdentity `json:"identity,omitempty"`
	Siblings   []domain.Host          `json:"siblings,omitempty"`
	MergedFrom []domain.Host          `json:"merged_from,omitempty"`
}

// Unified assembles the unified view for a host. For a merged-away host
// the view is built for the surviving primary.
func (s *HostService) Unified(ctx context.Context, hostID string) (*UnifiedView, error) {
	host, err := s.repo.GetHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	if host == nil {
		return nil, fmt.Errorf("host %s not found", hostID)
	}

	// Follow the merge chain to the surviving record
	for host.MergedInto != "" {
		next, err := s.repo.GetHost(ctx, host.MergedInto)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return nil, fmt.Errorf("host %s points at missing primary %s", host.ID, host.MergedInto)
		}
		host = next
	}

	view := &UnifiedView{Host: *host}

	if host.DeviceIdentityID != "" {
		identity, err := s.repo.GetDeviceIdentity(ctx, host.DeviceIdentityID)
		if err != nil {
			return nil, err
		}
		view.Identity = identity

		linked, err := s.repo.ListHostsByDevice(ctx, host.DeviceIdentityID)
		if err != nil {
			return nil, err
		}
		for i := range linked {
			if linked[i].ID != host.ID {
				view.Siblings = append(view.Siblings, linked[i])
			}
		}
	}

	merged, err := s.repo.ListMergedInto(ctx, host.ID)
	if err != nil {
		return nil, err
	}
	view.MergedFrom = merged

	return view, nil
}
