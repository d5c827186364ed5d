package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hostfold/internal/domain"
	"hostfold/internal/repository"
)

// ConflictService provides business logic for conflict review operations
type ConflictService struct {
	repo     repository.Store
	eventBus *EventBus
}

// NewConflictService creates a new conflict service
func NewConflictService(repo repository.Store, eventBus *EventBus) *ConflictService {
	return &ConflictService{
		repo:     repo,
		eventBus: eventBus,
	}
}

// Record creates a pending conflict between two hosts, deduplicating
// against an already-open conflict on the same field
func (s *ConflictService) Record(ctx context.Context, hostAID, hostBID, field, valueA, valueB string, score float64) (*domain.Conflict, error) {
	existing, err := s.repo.FindPendingConflict(ctx, hostAID, hostBID, field)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	conflict := &domain.Conflict{
		ID:         uuid.NewString(),
		HostAID:    hostAID,
		HostBID:    hostBID,
		Field:      field,
		ValueA:     valueA,
		ValueB:     valueB,
		Score:      score,
		Status:     domain.ConflictStatusPending,
		DetectedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateConflict(ctx, conflict); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type: EventConflictRaised,
		Payload: map[string]interface{}{
			"conflict_id": conflict.ID,
			"host_a_id":   hostAID,
			"host_b_id":   hostBID,
			"field":       field,
		},
	})
	return conflict, nil
}

// List returns conflicts filtered by status; pass "" for all
func (s *ConflictService) List(ctx context.Context, status domain.ConflictStatus) ([]domain.Conflict, error) {
	return s.repo.ListConflicts(ctx, status)
}

// Get retrieves a single conflict by ID
func (s *ConflictService) Get(ctx context.Context, id string) (*domain.Conflict, error) {
	return s.repo.GetConflict(ctx, id)
}

// Resolve applies an operator decision to a pending conflict and executes
// the merge that the conflict deferred. The chosen value wins over the
// normal fill rules; every other open conflict between the pair is closed
// as superseded.
//
// Returns ErrStateConflict when the conflict is no longer pending or when
// either host has been merged away since detection.
func (s *ConflictService) Resolve(ctx context.Context, id, resolution, value, resolvedBy string) (*domain.Host, error) {
	conflict, err := s.repo.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}
	if conflict == nil {
		return nil, fmt.Errorf("conflict %s not found", id)
	}
	if conflict.IsResolved() {
		return nil, fmt.Errorf("conflict %s: %w", id, ErrStateConflict)
	}

	resolvedValue, err := pickResolvedValue(conflict, resolution, value)
	if err != nil {
		return nil, err
	}

	hostA, err := s.repo.GetHost(ctx, conflict.HostAID)
	if err != nil {
		return nil, err
	}
	hostB, err := s.repo.GetHost(ctx, conflict.HostBID)
	if err != nil {
		return nil, err
	}
	if hostA == nil || hostB == nil {
		return nil, fmt.Errorf("conflict %s references a missing host: %w", id, ErrStateConflict)
	}
	if !hostA.Active || hostA.MergedInto != "" || !hostB.Active || hostB.MergedInto != "" {
		return nil, fmt.Errorf("conflict %s: a host was merged since detection: %w", id, ErrStateConflict)
	}

	overrides := map[string]string{conflict.Field: resolvedValue}
	plan, err := domain.BuildMergePlan(hostA, hostB, overrides)
	if err != nil {
		return nil, fmt.Errorf("failed to plan deferred merge: %w", err)
	}

	// Merge first: if the merge fails the conflict stays pending and the
	// operator can retry. Marking it resolved before a failed merge would
	// strand it.
	if err := s.repo.ApplyMerge(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to apply deferred merge: %w", err)
	}
	if err := s.repo.ResolveConflict(ctx, id, resolvedValue, resolvedBy); err != nil {
		return nil, err
	}
	if err := s.repo.ResolvePendingForPair(ctx, conflict.HostAID, conflict.HostBID, domain.ResolutionSuperseded); err != nil {
		return nil, err
	}

	s.eventBus.Publish(Event{
		Type: EventConflictResolved,
		Payload: map[string]interface{}{
			"conflict_id":    id,
			"resolution":     resolution,
			"resolved_value": resolvedValue,
			"primary_id":     plan.PrimaryID,
			"secondary_id":   plan.SecondaryID,
		},
	})
	s.eventBus.Publish(Event{
		Type: EventHostsMerged,
		Payload: map[string]string{
			"primary_id":   plan.PrimaryID,
			"secondary_id": plan.SecondaryID,
		},
	})

	return s.repo.GetHost(ctx, plan.PrimaryID)
}

func pickResolvedValue(conflict *domain.Conflict, resolution, value string) (string, error) {
	switch resolution {
	case domain.ResolutionAcceptA:
		return conflict.ValueA, nil
	case domain.ResolutionAcceptB:
		return conflict.ValueB, nil
	case domain.ResolutionValue:
		if value == "" {
			return "", fmt.Errorf("resolution %q requires a value", resolution)
		}
		return value, nil
	}
	return "", fmt.Errorf("unknown resolution %q", resolution)
}
